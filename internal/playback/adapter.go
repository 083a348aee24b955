// Package playback defines the minimal contract a timeline player (video or
// waveform) must satisfy to be driven by the loop engine.
package playback

// Adapter is the capability set every player exposes. Times are seconds.
type Adapter interface {
	CurrentTime() float64
	SeekTo(seconds float64)
	Duration() float64
	Play()
	Pause()
}

// RateController is implemented by players that support playback speed.
type RateController interface {
	SetPlaybackRate(rate float64)
	PlaybackRate() float64
}

// SetRate applies rate when a supports it and reports whether it did.
func SetRate(a Adapter, rate float64) bool {
	rc, ok := a.(RateController)
	if !ok || rate <= 0 {
		return false
	}
	rc.SetPlaybackRate(rate)
	return true
}

// Rate returns the playback rate of a, or 1 when a has no rate control.
func Rate(a Adapter) float64 {
	if rc, ok := a.(RateController); ok {
		return rc.PlaybackRate()
	}
	return 1
}
