package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openwx/wechatsdk-bridge/internal/sdk"
)

const imgEnvelope = `<msg><img aeskey="key123" cdnthumburl="thumb-id" cdnmidimgurl="mid-id" cdnbigimgurl="big-id" length="2048"></img></msg>`

func TestParseCDNEnvelope_ImageQualities(t *testing.T) {
	cases := []struct {
		quality  Quality
		fileID   string
		fileType int
	}{
		{QualityThumb, "thumb-id", sdk.CdnFileThumb},
		{QualityMid, "mid-id", sdk.CdnFileMid},
		{QualityFull, "big-id", sdk.CdnFileFull},
	}

	for _, tc := range cases {
		desc, err := ParseCDNEnvelope(imgEnvelope, tc.quality)
		if err != nil {
			t.Fatalf("quality %d: %v", tc.quality, err)
		}
		if desc.FileID != tc.fileID {
			t.Errorf("quality %d: file id %q", tc.quality, desc.FileID)
		}
		if desc.FileType != tc.fileType {
			t.Errorf("quality %d: file type %d", tc.quality, desc.FileType)
		}
		if desc.AESKey != "key123" {
			t.Errorf("quality %d: aes key %q", tc.quality, desc.AESKey)
		}
	}
}

func TestParseCDNEnvelope_ImageFallsBackToThumb(t *testing.T) {
	env := `<msg><img aeskey="k" cdnthumburl="thumb-id" length="100"></img></msg>`
	desc, err := ParseCDNEnvelope(env, QualityFull)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if desc.FileID != "thumb-id" || desc.FileType != sdk.CdnFileThumb {
		t.Errorf("fallback: %+v", desc)
	}
}

func TestParseCDNEnvelope_Video(t *testing.T) {
	env := `<msg><videomsg aeskey="vk" cdnvideourl="vid-id" length="5000"></videomsg></msg>`
	desc, err := ParseCDNEnvelope(env, QualityFull)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if desc.FileType != sdk.CdnFileVideo || desc.FileExt != "mp4" {
		t.Errorf("video descriptor: %+v", desc)
	}
}

func TestParseCDNEnvelope_Attachment(t *testing.T) {
	env := `<msg><appmsg><appattach><aeskey>ak</aeskey><cdnattachurl>att-id</cdnattachurl><totallen>1000</totallen><fileext>pdf</fileext></appattach></appmsg></msg>`
	desc, err := ParseCDNEnvelope(env, QualityFull)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if desc.FileType != sdk.CdnFileAttach {
		t.Errorf("file type: %d", desc.FileType)
	}
	if desc.FileExt != "pdf" {
		t.Errorf("ext: %s", desc.FileExt)
	}
}

func TestParseCDNEnvelope_BigAttachment(t *testing.T) {
	total := bigAttachThreshold + 1
	env := fmt.Sprintf(`<msg><appmsg><appattach><aeskey>ak</aeskey><cdnattachurl>att-id</cdnattachurl><totallen>%d</totallen></appattach></appmsg></msg>`, total)
	desc, err := ParseCDNEnvelope(env, QualityFull)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if desc.FileType != sdk.CdnFileBigAttach {
		t.Errorf("file type: %d", desc.FileType)
	}
	if desc.FileExt != "dat" {
		t.Errorf("ext: %s", desc.FileExt)
	}
}

func TestParseCDNEnvelope_NoPayload(t *testing.T) {
	if _, err := ParseCDNEnvelope(`<msg></msg>`, QualityThumb); err == nil {
		t.Error("want error for empty envelope")
	}
}

type fakeCDN struct {
	calls int
}

func (f *fakeCDN) CdnDownload(ctx context.Context, fileID, aesKey string, fileType int, savePath string) error {
	f.calls++
	return os.WriteFile(savePath, []byte("payload"), 0o640)
}

func TestDownloader_CacheHit(t *testing.T) {
	dir := t.TempDir()
	api := &fakeCDN{}
	d := NewDownloader(api, dir, slog.Default())
	d.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	path1, err := d.Fetch(ctx, "msg42", imgEnvelope, QualityThumb)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	path2, err := d.Fetch(ctx, "msg42", imgEnvelope, QualityThumb)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if path1 != path2 {
		t.Errorf("paths differ: %s vs %s", path1, path2)
	}
	if api.calls != 1 {
		t.Errorf("download calls: %d", api.calls)
	}
	if filepath.Dir(path1) != filepath.Join(dir, "media", "2026-03-14") {
		t.Errorf("unexpected dir: %s", filepath.Dir(path1))
	}
}

func TestDownloader_DistinctQualities(t *testing.T) {
	dir := t.TempDir()
	api := &fakeCDN{}
	d := NewDownloader(api, dir, slog.Default())

	ctx := context.Background()
	thumb, err := d.Fetch(ctx, "msg42", imgEnvelope, QualityThumb)
	if err != nil {
		t.Fatalf("thumb fetch: %v", err)
	}
	full, err := d.Fetch(ctx, "msg42", imgEnvelope, QualityFull)
	if err != nil {
		t.Fatalf("full fetch: %v", err)
	}

	if thumb == full {
		t.Error("thumb and full renditions should cache separately")
	}
	if api.calls != 2 {
		t.Errorf("download calls: %d", api.calls)
	}
}
