package practice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"practice-service/internal/playback"
	"practice-service/internal/recorder"
)

// remotePlayer drives the player in the browser. Position reports keep a
// local timeline current; commands are sent over the session.
type remotePlayer struct {
	tl   *playback.Timeline
	send func(any)
}

func newRemotePlayer(send func(any)) *remotePlayer {
	return &remotePlayer{tl: playback.NewTimeline(0), send: send}
}

func (p *remotePlayer) CurrentTime() float64 { return p.tl.CurrentTime() }
func (p *remotePlayer) Duration() float64    { return p.tl.Duration() }

func (p *remotePlayer) SeekTo(t float64) {
	p.tl.SeekTo(t)
	p.send(map[string]any{"type": "seek", "time": t})
}

func (p *remotePlayer) Play() {
	p.tl.Play()
	p.send(map[string]any{"type": "play"})
}

func (p *remotePlayer) Pause() {
	p.tl.Pause()
	p.send(map[string]any{"type": "pause"})
}

func (p *remotePlayer) SetPlaybackRate(rate float64) {
	p.tl.SetPlaybackRate(rate)
	p.send(map[string]any{"type": "rate", "rate": rate})
}

func (p *remotePlayer) PlaybackRate() float64 { return p.tl.PlaybackRate() }

func (p *remotePlayer) report(m clientMessage) {
	p.tl.Report(m.CurrentTime, m.Duration, m.Playing, m.Rate)
}

// micReply is the browser's answer to a mic_request.
type micReply struct {
	granted bool
	reason  string
	format  recorder.Format
}

// remoteDevice is the browser microphone. Open sends mic_request and waits
// for the permission answer; audio then arrives as binary frames.
type remoteDevice struct {
	send        func(any)
	stopTimeout time.Duration

	mu      sync.Mutex
	replies chan micReply
	stream  *remoteStream
}

func newRemoteDevice(send func(any)) *remoteDevice {
	return &remoteDevice{send: send, stopTimeout: 5 * time.Second}
}

func (d *remoteDevice) Open(ctx context.Context, onChunk func([]byte)) (recorder.Stream, error) {
	replies := make(chan micReply, 1)
	d.mu.Lock()
	d.replies = replies
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		if d.replies == replies {
			d.replies = nil
		}
		d.mu.Unlock()
	}()

	d.send(map[string]any{"type": "mic_request"})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-replies:
		if !r.granted {
			if r.reason == "unavailable" {
				return nil, recorder.ErrDeviceUnavailable
			}
			if r.reason != "" && r.reason != "denied" {
				return nil, fmt.Errorf("%w: %s", recorder.ErrPermissionDenied, r.reason)
			}
			return nil, recorder.ErrPermissionDenied
		}
		if r.format.MimeType == "" {
			return nil, errMissingFormat
		}
		st := &remoteStream{
			dev:     d,
			format:  r.format,
			onChunk: onChunk,
			stopped: make(chan struct{}),
		}
		d.mu.Lock()
		d.stream = st
		d.mu.Unlock()
		d.send(map[string]any{"type": "capture", "action": "start"})
		return st, nil
	}
}

// answer delivers a mic reply to a pending Open. Unsolicited replies are
// dropped.
func (d *remoteDevice) answer(m clientMessage) {
	d.mu.Lock()
	replies := d.replies
	d.mu.Unlock()
	if replies == nil {
		return
	}
	select {
	case replies <- micReply{
		granted: m.Granted,
		reason:  m.Reason,
		format:  recorder.Format{MimeType: m.MimeType, SampleRate: m.SampleRate, Channels: m.Channels},
	}:
	default:
	}
}

func (d *remoteDevice) chunk(b []byte) {
	d.mu.Lock()
	st := d.stream
	d.mu.Unlock()
	if st != nil {
		st.onChunk(b)
	}
}

func (d *remoteDevice) captureStopped() {
	d.mu.Lock()
	st := d.stream
	d.mu.Unlock()
	if st != nil {
		st.markStopped()
	}
}

func (d *remoteDevice) detach(st *remoteStream) {
	d.mu.Lock()
	if d.stream == st {
		d.stream = nil
	}
	d.mu.Unlock()
}

var (
	errStopTimeout   = errors.New("capture did not confirm stop")
	errMissingFormat = errors.New("the browser did not report an audio format")
)

type remoteStream struct {
	dev     *remoteDevice
	format  recorder.Format
	onChunk func([]byte)

	once    sync.Once
	stopped chan struct{}
}

func (s *remoteStream) Pause() error {
	s.dev.send(map[string]any{"type": "capture", "action": "pause"})
	return nil
}

func (s *remoteStream) Resume() error {
	s.dev.send(map[string]any{"type": "capture", "action": "resume"})
	return nil
}

// Stop asks the browser to stop and waits for capture_stopped, which the
// browser sends after its final chunk.
func (s *remoteStream) Stop() error {
	defer s.dev.detach(s)
	s.dev.send(map[string]any{"type": "capture", "action": "stop"})

	t := time.NewTimer(s.dev.stopTimeout)
	defer t.Stop()
	select {
	case <-s.stopped:
		return nil
	case <-t.C:
		return errStopTimeout
	}
}

func (s *remoteStream) Format() recorder.Format { return s.format }

func (s *remoteStream) markStopped() {
	s.once.Do(func() { close(s.stopped) })
}
