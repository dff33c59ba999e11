// Package media resolves CDN download descriptors embedded in message XML
// and decrypts locally cached thumbnail blobs.
package media

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openwx/wechatsdk-bridge/internal/sdk"
)

// bigAttachThreshold is the payload size above which the SDK requires the
// big-attachment file type code.
const bigAttachThreshold = 25 * 1024 * 1024

// Quality selects which rendition of an image to download.
type Quality int

const (
	QualityThumb Quality = iota
	QualityMid
	QualityFull
)

// CDNDescriptor is the decryption key reference plus file id recovered from
// a message's XML envelope.
type CDNDescriptor struct {
	AESKey   string
	FileID   string
	TotalLen int64
	FileExt  string
	FileType int // one of the sdk.CdnFile* codes
}

// cdnAPI is the slice of the transport client the downloader needs.
type cdnAPI interface {
	CdnDownload(ctx context.Context, fileID, aesKey string, fileType int, savePath string) error
}

// Downloader materializes CDN payloads into a per-day cache directory.
// Repeat requests for an already-materialized path are served from disk.
type Downloader struct {
	api     cdnAPI
	baseDir string
	log     *slog.Logger
	now     func() time.Time
}

// NewDownloader creates a downloader writing under dataDir/media.
func NewDownloader(api cdnAPI, dataDir string, log *slog.Logger) *Downloader {
	return &Downloader{
		api:     api,
		baseDir: filepath.Join(dataDir, "media"),
		log:     log,
		now:     time.Now,
	}
}

// cdnEnvelope covers the XML shapes that carry CDN references: attribute
// based for img/video/voice/emoji, element based for app attachments.
type cdnEnvelope struct {
	XMLName xml.Name `xml:"msg"`

	Img *struct {
		AESKey      string `xml:"aeskey,attr"`
		CdnThumbURL string `xml:"cdnthumburl,attr"`
		CdnMidURL   string `xml:"cdnmidimgurl,attr"`
		CdnBigURL   string `xml:"cdnbigimgurl,attr"`
		Length      int64  `xml:"length,attr"`
	} `xml:"img"`

	VideoMsg *struct {
		AESKey      string `xml:"aeskey,attr"`
		CdnVideoURL string `xml:"cdnvideourl,attr"`
		Length      int64  `xml:"length,attr"`
	} `xml:"videomsg"`

	VoiceMsg *struct {
		AESKey     string `xml:"aeskey,attr"`
		VoiceURL   string `xml:"voiceurl,attr"`
		Length     int64  `xml:"length,attr"`
		VoiceLenMs int64  `xml:"voicelength,attr"`
	} `xml:"voicemsg"`

	Emoji *struct {
		AESKey string `xml:"aeskey,attr"`
		CdnURL string `xml:"cdnurl,attr"`
		Len    int64  `xml:"len,attr"`
	} `xml:"emoji"`

	AppMsg *struct {
		AppAttach struct {
			AESKey       string `xml:"aeskey"`
			CdnAttachURL string `xml:"cdnattachurl"`
			AttachID     string `xml:"attachid"`
			TotalLen     int64  `xml:"totallen"`
			FileExt      string `xml:"fileext"`
		} `xml:"appattach"`
	} `xml:"appmsg"`
}

// ParseCDNEnvelope extracts a CDN descriptor from message XML. quality is
// only meaningful for images; other payload kinds carry a single rendition.
func ParseCDNEnvelope(content string, quality Quality) (*CDNDescriptor, error) {
	var env cdnEnvelope
	if err := xml.Unmarshal([]byte(content), &env); err != nil {
		return nil, fmt.Errorf("parse cdn envelope: %w", err)
	}

	switch {
	case env.Img != nil:
		d := &CDNDescriptor{AESKey: env.Img.AESKey, TotalLen: env.Img.Length, FileExt: "jpg"}
		switch quality {
		case QualityFull:
			d.FileID = env.Img.CdnBigURL
			d.FileType = sdk.CdnFileFull
		case QualityMid:
			d.FileID = env.Img.CdnMidURL
			d.FileType = sdk.CdnFileMid
		default:
			d.FileID = env.Img.CdnThumbURL
			d.FileType = sdk.CdnFileThumb
		}
		if d.FileID == "" {
			// Not every rendition exists for every image.
			d.FileID = env.Img.CdnThumbURL
			d.FileType = sdk.CdnFileThumb
		}
		if d.FileID == "" {
			return nil, fmt.Errorf("cdn envelope: image carries no file id")
		}
		return d, nil

	case env.VideoMsg != nil:
		if env.VideoMsg.CdnVideoURL == "" {
			return nil, fmt.Errorf("cdn envelope: video carries no file id")
		}
		return &CDNDescriptor{
			AESKey:   env.VideoMsg.AESKey,
			FileID:   env.VideoMsg.CdnVideoURL,
			TotalLen: env.VideoMsg.Length,
			FileExt:  "mp4",
			FileType: sdk.CdnFileVideo,
		}, nil

	case env.VoiceMsg != nil:
		if env.VoiceMsg.VoiceURL == "" {
			return nil, fmt.Errorf("cdn envelope: voice carries no file id")
		}
		return &CDNDescriptor{
			AESKey:   env.VoiceMsg.AESKey,
			FileID:   env.VoiceMsg.VoiceURL,
			TotalLen: env.VoiceMsg.Length,
			FileExt:  "silk",
			FileType: sdk.CdnFileAudio,
		}, nil

	case env.Emoji != nil:
		if env.Emoji.CdnURL == "" {
			return nil, fmt.Errorf("cdn envelope: emoticon carries no file id")
		}
		return &CDNDescriptor{
			AESKey:   env.Emoji.AESKey,
			FileID:   env.Emoji.CdnURL,
			TotalLen: env.Emoji.Len,
			FileExt:  "gif",
			FileType: sdk.CdnFileThumb,
		}, nil

	case env.AppMsg != nil:
		att := env.AppMsg.AppAttach
		fileID := att.CdnAttachURL
		if fileID == "" {
			fileID = att.AttachID
		}
		if fileID == "" {
			return nil, fmt.Errorf("cdn envelope: attachment carries no file id")
		}
		fileType := sdk.CdnFileAttach
		if att.TotalLen > bigAttachThreshold {
			fileType = sdk.CdnFileBigAttach
		}
		ext := att.FileExt
		if ext == "" {
			ext = "dat"
		}
		return &CDNDescriptor{
			AESKey:   att.AESKey,
			FileID:   fileID,
			TotalLen: att.TotalLen,
			FileExt:  ext,
			FileType: fileType,
		}, nil
	}

	return nil, fmt.Errorf("cdn envelope: no downloadable payload")
}

// Fetch resolves the CDN descriptor in content and materializes it for the
// given message id, returning the cached file path.
func (d *Downloader) Fetch(ctx context.Context, messageID, content string, quality Quality) (string, error) {
	desc, err := ParseCDNEnvelope(content, quality)
	if err != nil {
		return "", err
	}
	return d.FetchDescriptor(ctx, messageID, desc)
}

// FetchDescriptor downloads one described payload, serving repeats from disk.
func (d *Downloader) FetchDescriptor(ctx context.Context, messageID string, desc *CDNDescriptor) (string, error) {
	dir := filepath.Join(d.baseDir, d.now().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("message-%s-%d.%s", messageID, desc.FileType, desc.FileExt))
	if _, err := os.Stat(path); err == nil {
		d.log.Debug("media served from cache", "path", path)
		return path, nil
	}

	if err := d.api.CdnDownload(ctx, desc.FileID, desc.AESKey, desc.FileType, path); err != nil {
		return "", fmt.Errorf("cdn download: %w", err)
	}

	d.log.Info("media downloaded", "message_id", messageID, "file_type", desc.FileType, "path", path)
	return path, nil
}
