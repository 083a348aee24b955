package playback

import (
	"sync"
	"time"
)

// Timeline is an in-memory player. While playing, its position advances with
// the wall clock scaled by the playback rate and stops at the duration.
//
// It is used to mirror a remote player from its periodic position reports.
type Timeline struct {
	mu       sync.Mutex
	clock    func() time.Time
	anchor   float64   // position at anchorAt
	anchorAt time.Time // wall time of the last anchor
	duration float64
	rate     float64
	playing  bool
}

// TimelineOption configures a Timeline.
type TimelineOption func(*Timeline)

// WithClock replaces time.Now, mainly for tests.
func WithClock(clock func() time.Time) TimelineOption {
	return func(t *Timeline) { t.clock = clock }
}

// NewTimeline creates a paused timeline at position 0.
func NewTimeline(duration float64, opts ...TimelineOption) *Timeline {
	t := &Timeline{
		clock:    time.Now,
		duration: duration,
		rate:     1,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.anchorAt = t.clock()
	return t
}

func (t *Timeline) position(now time.Time) float64 {
	pos := t.anchor
	if t.playing {
		pos += now.Sub(t.anchorAt).Seconds() * t.rate
	}
	if t.duration > 0 && pos > t.duration {
		pos = t.duration
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

// reanchor must be called with mu held before changing rate or play state.
func (t *Timeline) reanchor() {
	now := t.clock()
	t.anchor = t.position(now)
	t.anchorAt = now
}

func (t *Timeline) CurrentTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position(t.clock())
}

func (t *Timeline) SeekTo(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	t.anchor = seconds
	t.anchorAt = t.clock()
}

func (t *Timeline) Duration() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

func (t *Timeline) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reanchor()
	t.playing = true
}

func (t *Timeline) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reanchor()
	t.playing = false
}

// Playing reports whether the timeline is advancing.
func (t *Timeline) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

func (t *Timeline) SetPlaybackRate(rate float64) {
	if rate <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reanchor()
	t.rate = rate
}

func (t *Timeline) PlaybackRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rate
}

// Report overwrites the timeline with a position report from the real player.
func (t *Timeline) Report(position, duration float64, playing bool, rate float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.anchor = position
	t.anchorAt = t.clock()
	if duration > 0 {
		t.duration = duration
	}
	t.playing = playing
	if rate > 0 {
		t.rate = rate
	}
}
