package recorder

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned by a Device when the user refuses
// microphone access.
var ErrPermissionDenied = errors.New("microphone permission denied")

// ErrDeviceUnavailable is returned by a Device when no input is present.
var ErrDeviceUnavailable = errors.New("microphone unavailable")

// MimePCM16 marks raw little-endian 16-bit PCM streams. They are finalized
// as WAV on Stop.
const MimePCM16 = "audio/pcm"

// Format describes the data a Stream delivers.
type Format struct {
	MimeType   string
	SampleRate int
	Channels   int
}

// Device is the capture capability, typically a browser microphone reached
// over a session connection. Open may block until the user answers the
// permission prompt.
type Device interface {
	Open(ctx context.Context, onChunk func([]byte)) (Stream, error)
}

// Stream is an open capture. Stop must deliver any final chunk to onChunk
// before it returns.
type Stream interface {
	Pause() error
	Resume() error
	Stop() error
	Format() Format
}
