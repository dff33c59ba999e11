package session

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ZxingDecoder decodes QR code images with the gozxing reader.
type ZxingDecoder struct{}

var _ QRDecoder = ZxingDecoder{}

// Decode extracts the encoded text from a QR code image.
func (ZxingDecoder) Decode(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode qrcode image: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("build qrcode bitmap: %w", err)
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("read qrcode: %w", err)
	}
	return result.GetText(), nil
}
