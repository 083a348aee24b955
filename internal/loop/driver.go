package loop

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"practice-service/internal/playback"
)

// DefaultPollInterval is how often an active loop checks the player position.
const DefaultPollInterval = 100 * time.Millisecond

// Driver owns the loop state of one playback session and, while the state is
// Looping, polls the player and seeks back to Start once the position
// reaches End.
//
// The poller runs only in Looping: it starts once per entry and is stopped
// once per exit and on Close.
type Driver struct {
	player   playback.Adapter
	interval time.Duration
	log      *zap.Logger
	onChange func(State)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithInterval overrides DefaultPollInterval.
func WithInterval(d time.Duration) DriverOption {
	return func(dr *Driver) {
		if d > 0 {
			dr.interval = d
		}
	}
}

// WithLogger sets the driver logger.
func WithLogger(l *zap.Logger) DriverOption {
	return func(dr *Driver) {
		if l != nil {
			dr.log = l
		}
	}
}

// OnChange registers a callback invoked after every state change.
func OnChange(fn func(State)) DriverOption {
	return func(dr *Driver) { dr.onChange = fn }
}

func NewDriver(player playback.Adapter, opts ...DriverOption) *Driver {
	d := &Driver{
		player:   player,
		interval: DefaultPollInterval,
		log:      zap.NewNop(),
		state:    Idle{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current loop state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Polling reports whether the poll goroutine is running.
func (d *Driver) Polling() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

// Dispatch reduces a into the current state and starts or stops polling to
// match the result.
func (d *Driver) Dispatch(a Action) State {
	d.mu.Lock()
	if d.closed {
		s := d.state
		d.mu.Unlock()
		return s
	}
	prev := d.state
	next := Reduce(prev, a)
	d.state = next

	_, wasLooping := prev.(Looping)
	_, isLooping := next.(Looping)

	var stopped chan struct{}
	switch {
	case isLooping && !wasLooping:
		d.startLocked()
	case wasLooping && !isLooping:
		stopped = d.stopLocked()
	}
	d.mu.Unlock()

	if stopped != nil {
		<-stopped
	}
	if next != prev && d.onChange != nil {
		d.onChange(next)
	}
	return next
}

// Close stops polling for good. Further dispatches are ignored.
func (d *Driver) Close() {
	d.mu.Lock()
	d.closed = true
	stopped := d.stopLocked()
	d.mu.Unlock()
	if stopped != nil {
		<-stopped
	}
}

func (d *Driver) startLocked() {
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done

	ticker := time.NewTicker(d.interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.check()
			}
		}
	}()
	d.log.Debug("loop poller started", zap.Duration("interval", d.interval))
}

// stopLocked cancels the poller and returns a channel closed once it has
// exited. The caller must wait on it after releasing mu.
func (d *Driver) stopLocked() chan struct{} {
	if d.cancel == nil {
		return nil
	}
	d.cancel()
	done := d.done
	d.cancel = nil
	d.done = nil
	d.log.Debug("loop poller stopped")
	return done
}

// check runs one poll: if the player has reached the end marker it seeks back
// to the start marker.
func (d *Driver) check() {
	d.mu.Lock()
	cur, ok := d.state.(Looping)
	d.mu.Unlock()
	if !ok {
		return
	}

	if d.player.CurrentTime() >= cur.End {
		d.player.SeekTo(cur.Start)
	}
}
