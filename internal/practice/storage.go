package practice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"practice-service/internal/submission"
)

var (
	ErrUploadTooLarge   = errors.New("upload too large")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// DiskStorage keeps uploaded audio under dir and serves it at
// <baseURL>/audio/<name>.
type DiskStorage struct {
	dir      string
	baseURL  string
	maxBytes int64
}

func NewDiskStorage(dir, baseURL string, maxBytes int64) *DiskStorage {
	return &DiskStorage{
		dir:      dir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
	}
}

// Upload decodes a base64 audio data URI, writes it to disk and returns its
// public URL.
func (d *DiskStorage) Upload(_ context.Context, dataURI string) (string, error) {
	blob, err := submission.DecodeDataURI(dataURI)
	if err != nil {
		return "", err
	}
	ext, ok := audioExt(blob.MimeType)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, blob.MimeType)
	}
	if d.maxBytes > 0 && int64(blob.Size()) > d.maxBytes {
		return "", ErrUploadTooLarge
	}
	if blob.Size() == 0 {
		return "", fmt.Errorf("%w: empty payload", submission.ErrInvalidDataURI)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(d.dir, name), blob.Data, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	return d.URL(name), nil
}

func (d *DiskStorage) URL(name string) string {
	return d.baseURL + "/audio/" + name
}

// Path resolves a served file name. Names with path elements are rejected.
func (d *DiskStorage) Path(name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return filepath.Join(d.dir, name), true
}

// Remove deletes the file behind url. URLs not issued by this storage are
// ignored.
func (d *DiskStorage) Remove(url string) error {
	name, ok := strings.CutPrefix(url, d.baseURL+"/audio/")
	if !ok {
		return nil
	}
	path, ok := d.Path(name)
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func audioExt(mime string) (string, bool) {
	base, _, _ := strings.Cut(mime, ";")
	switch strings.TrimSpace(strings.ToLower(base)) {
	case "audio/webm":
		return ".webm", true
	case "audio/ogg":
		return ".ogg", true
	case "audio/wav", "audio/wave", "audio/x-wav":
		return ".wav", true
	case "audio/mpeg":
		return ".mp3", true
	case "audio/mp4", "audio/aac":
		return ".m4a", true
	}
	return "", false
}
