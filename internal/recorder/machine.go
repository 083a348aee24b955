// Package recorder implements the microphone capture lifecycle:
// idle -> recording <-> paused -> stopped, with error as a terminal state
// until reset.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Machine drives one recording session. Invalid transitions are no-ops that
// return the unchanged state; device failures end in Failed.
type Machine struct {
	device Device
	urls   URLStore
	log    *zap.Logger
	clock  func() time.Time

	mu       sync.Mutex
	state    State
	stream   Stream
	chunks   [][]byte
	starting bool
	capture  bool
	onChange func(State)
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(m *Machine) { m.clock = clock }
}

// WithLogger sets the machine logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

// OnChange registers a callback run after every state transition.
func OnChange(fn func(State)) Option {
	return func(m *Machine) { m.onChange = fn }
}

func NewMachine(device Device, urls URLStore, opts ...Option) *Machine {
	m := &Machine{
		device: device,
		urls:   urls,
		log:    zap.NewNop(),
		clock:  time.Now,
		state:  Idle{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Elapsed returns the recorded duration at now, excluding paused time.
func (m *Machine) Elapsed(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch s := m.state.(type) {
	case Recording:
		return now.Sub(s.StartedAt)
	case Paused:
		return s.PausedAt.Sub(s.StartedAt)
	}
	return 0
}

// Start asks the device for the microphone and begins buffering. It is only
// valid from Idle. A refused or missing microphone moves to Failed.
func (m *Machine) Start(ctx context.Context) State {
	m.mu.Lock()
	if _, ok := m.state.(Idle); !ok || m.starting {
		s := m.state
		m.mu.Unlock()
		return s
	}
	m.starting = true
	m.chunks = nil
	m.capture = true
	m.mu.Unlock()

	stream, err := m.device.Open(ctx, m.appendChunk)

	m.mu.Lock()
	wasStarting := m.starting
	m.starting = false
	if !wasStarting {
		// Reset or Close ran while the permission prompt was open.
		m.capture = false
		s := m.state
		m.mu.Unlock()
		if stream != nil {
			_ = stream.Stop()
		}
		return s
	}
	if err != nil {
		m.capture = false
		m.log.Warn("microphone open failed", zap.Error(err))
		return m.setLocked(Failed{Message: permissionMessage(err)})
	}
	m.stream = stream
	return m.setLocked(Recording{StartedAt: m.clock()})
}

// Pause suspends capture. It is only valid from Recording.
func (m *Machine) Pause() State {
	m.mu.Lock()
	cur, ok := m.state.(Recording)
	if !ok {
		s := m.state
		m.mu.Unlock()
		return s
	}
	stream := m.stream
	m.mu.Unlock()

	if err := stream.Pause(); err != nil {
		return m.fail("pause", err)
	}

	m.mu.Lock()
	if _, still := m.state.(Recording); !still {
		s := m.state
		m.mu.Unlock()
		return s
	}
	return m.setLocked(Paused{StartedAt: cur.StartedAt, PausedAt: m.clock()})
}

// Resume continues a paused capture. StartedAt moves forward by the paused
// duration so Elapsed keeps excluding pauses.
func (m *Machine) Resume() State {
	m.mu.Lock()
	cur, ok := m.state.(Paused)
	if !ok {
		s := m.state
		m.mu.Unlock()
		return s
	}
	stream := m.stream
	m.mu.Unlock()

	if err := stream.Resume(); err != nil {
		return m.fail("resume", err)
	}

	m.mu.Lock()
	if _, still := m.state.(Paused); !still {
		s := m.state
		m.mu.Unlock()
		return s
	}
	now := m.clock()
	return m.setLocked(Recording{StartedAt: cur.StartedAt.Add(now.Sub(cur.PausedAt))})
}

// Stop finalizes the buffered chunks into one blob and derives a playable
// URL for it. It is valid from Recording or Paused.
func (m *Machine) Stop() State {
	m.mu.Lock()
	switch m.state.(type) {
	case Recording, Paused:
	default:
		s := m.state
		m.mu.Unlock()
		return s
	}
	stream := m.stream
	m.stream = nil
	m.mu.Unlock()

	// Stop flushes the last chunk through appendChunk, so mu must not be held.
	if err := stream.Stop(); err != nil {
		m.log.Warn("stopping capture stream", zap.Error(err))
	}

	m.mu.Lock()
	m.capture = false
	chunks := m.chunks
	m.chunks = nil
	switch m.state.(type) {
	case Recording, Paused:
	default:
		s := m.state
		m.mu.Unlock()
		return s
	}
	if len(chunks) == 0 {
		return m.setLocked(Failed{Message: "no audio was captured"})
	}

	format := stream.Format()
	data := bytes.Join(chunks, nil)
	mime := format.MimeType
	if mime == MimePCM16 {
		data = encodeWAV(data, format.SampleRate, format.Channels)
		mime = "audio/wav"
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	blob := Blob{Data: data, MimeType: mime}
	url := m.urls.Create(blob)
	m.log.Info("recording finalized",
		zap.Int("chunks", len(chunks)),
		zap.Int("bytes", len(data)),
		zap.String("mime", mime),
	)
	return m.setLocked(Stopped{Blob: blob, AudioURL: url})
}

// Reset returns to Idle from any state, releasing the device and revoking
// any playable URL.
func (m *Machine) Reset() State {
	m.mu.Lock()
	stream, url := m.releaseLocked()
	if _, ok := m.state.(Idle); ok && stream == nil && url == "" {
		m.mu.Unlock()
		return Idle{}
	}
	s := m.setLocked(Idle{})
	m.cleanup(stream, url)
	return s
}

// Close releases everything held by the machine. It is meant for session
// teardown and does not notify OnChange.
func (m *Machine) Close() {
	m.mu.Lock()
	stream, url := m.releaseLocked()
	m.state = Idle{}
	m.mu.Unlock()
	m.cleanup(stream, url)
}

// releaseLocked detaches the stream, buffer and URL. mu must be held.
func (m *Machine) releaseLocked() (Stream, string) {
	stream := m.stream
	m.stream = nil
	m.chunks = nil
	m.capture = false
	m.starting = false

	var url string
	if st, ok := m.state.(Stopped); ok {
		url = st.AudioURL
	}
	return stream, url
}

func (m *Machine) cleanup(stream Stream, url string) {
	if stream != nil {
		if err := stream.Stop(); err != nil {
			m.log.Warn("releasing capture stream", zap.Error(err))
		}
	}
	if url != "" {
		m.urls.Revoke(url)
	}
}

func (m *Machine) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.capture {
		return
	}
	m.chunks = append(m.chunks, buf)
}

func (m *Machine) fail(op string, err error) State {
	m.log.Error("capture device failure", zap.String("op", op), zap.Error(err))

	m.mu.Lock()
	stream := m.stream
	m.stream = nil
	m.chunks = nil
	m.capture = false
	s := m.setLocked(Failed{Message: "recording device failed: " + err.Error()})
	if stream != nil {
		_ = stream.Stop()
	}
	return s
}

// setLocked stores s, releases mu and fires OnChange.
func (m *Machine) setLocked(s State) State {
	m.state = s
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(s)
	}
	return s
}

func permissionMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access was denied. Allow microphone access and try again."
	case errors.Is(err, ErrDeviceUnavailable):
		return "No microphone was found."
	case errors.Is(err, context.DeadlineExceeded):
		return "The microphone request timed out. Try again."
	case errors.Is(err, context.Canceled):
		return "Microphone request was cancelled."
	}
	return "Could not access the microphone: " + err.Error()
}
