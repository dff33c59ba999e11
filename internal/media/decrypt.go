package media

import "errors"

// ErrDecryptionFailed is returned when no known file signature matches the
// ciphertext, so the XOR key cannot be recovered.
var ErrDecryptionFailed = errors.New("media: thumbnail decryption failed")

// signature maps a known two-byte file header to its extension.
type signature struct {
	head [2]byte
	ext  string
}

var signatures = []signature{
	{[2]byte{0xff, 0xd8}, "jpg"},
	{[2]byte{0x89, 0x50}, "png"},
	{[2]byte{0x47, 0x49}, "gif"},
	{[2]byte{0x42, 0x4d}, "bmp"},
}

// DecryptThumb decrypts an XOR-obfuscated thumbnail blob. The single-byte
// repeating key is recovered by testing the first ciphertext bytes against
// each known signature: a candidate key derived from the first byte must
// also decrypt the second byte to the signature's second byte. Returns the
// plaintext and the detected file extension.
func DecryptThumb(data []byte) ([]byte, string, error) {
	if len(data) < 2 {
		return nil, "", ErrDecryptionFailed
	}

	for _, sig := range signatures {
		key := data[0] ^ sig.head[0]
		if data[1]^key != sig.head[1] {
			continue
		}

		plain := make([]byte, len(data))
		for i, b := range data {
			plain[i] = b ^ key
		}
		return plain, sig.ext, nil
	}

	return nil, "", ErrDecryptionFailed
}
