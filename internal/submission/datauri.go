package submission

import (
	"encoding/base64"
	"fmt"
	"strings"

	"practice-service/internal/recorder"
)

// EncodeDataURI renders a blob as "data:<mime>;base64,<payload>".
func EncodeDataURI(b recorder.Blob) string {
	mime := b.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
}

// DecodeDataURI parses a base64 data URI produced by EncodeDataURI.
func DecodeDataURI(uri string) (recorder.Blob, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return recorder.Blob{}, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURI)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return recorder.Blob{}, fmt.Errorf("%w: missing payload", ErrInvalidDataURI)
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return recorder.Blob{}, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
	}
	// Codec parameters like "audio/webm;codecs=opus" stay part of the mime type.
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return recorder.Blob{}, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if mime == "" {
		mime = "text/plain"
	}
	return recorder.Blob{Data: data, MimeType: mime}, nil
}
