package recorder

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	err    error
	format Format
	stream *fakeStream
	opens  int
}

func (d *fakeDevice) Open(_ context.Context, onChunk func([]byte)) (Stream, error) {
	d.opens++
	if d.err != nil {
		return nil, d.err
	}
	d.stream = &fakeStream{onChunk: onChunk, format: d.format}
	return d.stream, nil
}

type fakeStream struct {
	mu       sync.Mutex
	onChunk  func([]byte)
	format   Format
	final    []byte
	pauseErr error
	paused   bool
	stopped  int
}

func (s *fakeStream) emit(b []byte) { s.onChunk(b) }

func (s *fakeStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pauseErr != nil {
		return s.pauseErr
	}
	s.paused = true
	return nil
}

func (s *fakeStream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	s.stopped++
	final := s.final
	s.final = nil
	s.mu.Unlock()
	if final != nil {
		s.onChunk(final)
	}
	return nil
}

func (s *fakeStream) Format() Format { return s.format }

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time          { return c.now }
func (c *stepClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMachine(dev *fakeDevice) (*Machine, *MemoryURLStore, *stepClock) {
	clock := &stepClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	urls := NewMemoryURLStore("/blobs/")
	return NewMachine(dev, urls, WithClock(clock.Now)), urls, clock
}

func TestMachine_PermissionDeniedGoesToError(t *testing.T) {
	dev := &fakeDevice{err: ErrPermissionDenied}
	m, _, _ := newTestMachine(dev)

	var seen []string
	m.onChange = func(s State) { seen = append(seen, s.Name()) }

	s := m.Start(context.Background())
	failed, ok := s.(Failed)
	require.True(t, ok)
	assert.Contains(t, failed.Message, "denied")
	assert.Equal(t, []string{"error"}, seen, "recording must never be observed")

	// error is terminal until reset
	assert.Equal(t, s, m.Start(context.Background()))
	assert.Equal(t, 1, dev.opens)
	assert.Equal(t, Idle{}, m.Reset())
}

func TestMachine_InvalidTransitionsAreNoops(t *testing.T) {
	m, _, _ := newTestMachine(&fakeDevice{format: Format{MimeType: "audio/webm"}})

	assert.Equal(t, Idle{}, m.Pause())
	assert.Equal(t, Idle{}, m.Resume())
	assert.Equal(t, Idle{}, m.Stop())

	m.Start(context.Background())
	rec := m.State()
	assert.Equal(t, rec, m.Resume())
	assert.Equal(t, rec, m.Start(context.Background()))
}

func TestMachine_PauseResumeExcludesPausedTime(t *testing.T) {
	m, _, clock := newTestMachine(&fakeDevice{format: Format{MimeType: "audio/webm"}})
	start := clock.now

	s := m.Start(context.Background())
	assert.Equal(t, Recording{StartedAt: start}, s)

	clock.Advance(3 * time.Second)
	s = m.Pause()
	assert.Equal(t, Paused{StartedAt: start, PausedAt: start.Add(3 * time.Second)}, s)

	clock.Advance(10 * time.Second)
	assert.Equal(t, 3*time.Second, m.Elapsed(clock.now))

	s = m.Resume()
	rec, ok := s.(Recording)
	require.True(t, ok)
	assert.Equal(t, start.Add(10*time.Second), rec.StartedAt)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 5*time.Second, m.Elapsed(clock.now))
}

func TestMachine_StopProducesBlobAndURL(t *testing.T) {
	dev := &fakeDevice{format: Format{MimeType: "audio/webm"}}
	m, urls, _ := newTestMachine(dev)

	m.Start(context.Background())
	dev.stream.emit([]byte("ab"))
	m.Pause()
	m.Resume()
	dev.stream.emit([]byte("cd"))
	dev.stream.final = []byte("ef")

	s := m.Stop()
	st, ok := s.(Stopped)
	require.True(t, ok)
	assert.Equal(t, []byte("abcdef"), st.Blob.Data)
	assert.Equal(t, "audio/webm", st.Blob.MimeType)
	assert.Equal(t, 1, dev.stream.stopped)

	id := st.AudioURL[len("/blobs/"):]
	got, ok := urls.Get(id)
	require.True(t, ok)
	assert.Equal(t, st.Blob, got)

	// chunks after stop are dropped
	dev.stream.emit([]byte("zz"))
	assert.Equal(t, s, m.State())
}

func TestMachine_StopFromPaused(t *testing.T) {
	dev := &fakeDevice{format: Format{MimeType: "audio/ogg"}}
	m, _, _ := newTestMachine(dev)

	m.Start(context.Background())
	dev.stream.emit([]byte{1, 2})
	m.Pause()

	_, ok := m.Stop().(Stopped)
	assert.True(t, ok)
}

func TestMachine_StopWithoutAudioFails(t *testing.T) {
	dev := &fakeDevice{format: Format{MimeType: "audio/webm"}}
	m, urls, _ := newTestMachine(dev)

	m.Start(context.Background())
	_, ok := m.Stop().(Failed)
	assert.True(t, ok)
	assert.Zero(t, urls.Len())
}

func TestMachine_PCMIsWrappedAsWAV(t *testing.T) {
	dev := &fakeDevice{format: Format{MimeType: MimePCM16, SampleRate: 44100, Channels: 2}}
	m, _, _ := newTestMachine(dev)

	m.Start(context.Background())
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	dev.stream.emit(pcm)

	st, ok := m.Stop().(Stopped)
	require.True(t, ok)
	assert.Equal(t, "audio/wav", st.Blob.MimeType)
	require.Len(t, st.Blob.Data, 44+len(pcm))
	assert.Equal(t, pcm, st.Blob.Data[44:])
	assert.Equal(t, uint32(44100), binary.LittleEndian.Uint32(st.Blob.Data[24:28]))
}

func TestMachine_ResetRevokesURL(t *testing.T) {
	dev := &fakeDevice{format: Format{MimeType: "audio/webm"}}
	m, urls, _ := newTestMachine(dev)

	m.Start(context.Background())
	dev.stream.emit([]byte("x"))
	m.Stop()
	require.Equal(t, 1, urls.Len())

	assert.Equal(t, Idle{}, m.Reset())
	assert.Zero(t, urls.Len())
	assert.Equal(t, 1, dev.stream.stopped, "stream already released on stop")
}

func TestMachine_ResetWhileRecordingReleasesDevice(t *testing.T) {
	dev := &fakeDevice{format: Format{MimeType: "audio/webm"}}
	m, _, _ := newTestMachine(dev)

	m.Start(context.Background())
	dev.stream.emit([]byte("x"))
	assert.Equal(t, Idle{}, m.Reset())
	assert.Equal(t, 1, dev.stream.stopped)

	// a fresh recording does not see old chunks
	m.Start(context.Background())
	dev.stream.emit([]byte("y"))
	st, ok := m.Stop().(Stopped)
	require.True(t, ok)
	assert.Equal(t, []byte("y"), st.Blob.Data)
}

func TestMachine_DeviceFailureOnPause(t *testing.T) {
	dev := &fakeDevice{format: Format{MimeType: "audio/webm"}}
	m, _, _ := newTestMachine(dev)

	m.Start(context.Background())
	dev.stream.pauseErr = errors.New("track ended")

	failed, ok := m.Pause().(Failed)
	require.True(t, ok)
	assert.Contains(t, failed.Message, "track ended")
	assert.Equal(t, 1, dev.stream.stopped)
}

func TestMachine_CloseRevokesWithoutNotify(t *testing.T) {
	dev := &fakeDevice{format: Format{MimeType: "audio/webm"}}
	m, urls, _ := newTestMachine(dev)

	m.Start(context.Background())
	dev.stream.emit([]byte("x"))
	m.Stop()

	notified := false
	m.onChange = func(State) { notified = true }
	m.Close()
	assert.False(t, notified)
	assert.Zero(t, urls.Len())
	assert.Equal(t, Idle{}, m.State())
}

func TestSnapshotOf(t *testing.T) {
	snap := SnapshotOf(Stopped{Blob: Blob{Data: []byte("abc"), MimeType: "audio/wav"}, AudioURL: "/blobs/1"})
	assert.Equal(t, Snapshot{State: "stopped", AudioURL: "/blobs/1", MimeType: "audio/wav", Size: 3}, snap)

	snap = SnapshotOf(Failed{Message: "nope"})
	assert.Equal(t, "error", snap.State)
	assert.Equal(t, "nope", snap.Message)
}

func TestEncodeWAVDefaults(t *testing.T) {
	out := encodeWAV([]byte{0, 0}, 0, 0)
	require.Len(t, out, 46)
	assert.True(t, bytes.HasPrefix(out, []byte("RIFF")))
	assert.Equal(t, []byte("WAVE"), out[8:12])
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(out[24:28]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(out[40:44]))
}

func TestMemoryURLStore(t *testing.T) {
	s := NewMemoryURLStore("/blobs/")
	a := s.Create(Blob{Data: []byte("a")})
	b := s.Create(Blob{Data: []byte("b")})
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, s.Len())

	s.Revoke(a)
	s.Revoke(a)
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get(b[len("/blobs/"):])
	assert.True(t, ok)
}

func TestMachine_OpenErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"Denied", ErrPermissionDenied, "denied"},
		{"Unavailable", ErrDeviceUnavailable, "No microphone"},
		{"TimedOut", context.DeadlineExceeded, "timed out"},
		{"Cancelled", context.Canceled, "cancelled"},
		{"Other", errors.New("no format"), "no format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newTestMachine(&fakeDevice{err: tt.err})
			failed, ok := m.Start(context.Background()).(Failed)
			require.True(t, ok)
			assert.Contains(t, failed.Message, tt.want)
		})
	}
}
