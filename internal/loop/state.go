package loop

import "fmt"

// State is the loop marker state of one playback session. Exactly one of
// Idle, StartSet, Ready or Looping is active at a time.
type State interface {
	// Name is the wire name of the variant ("idle", "start_set", "ready", "looping").
	Name() string
	isState()
}

// Idle means no markers are set.
type Idle struct{}

// StartSet means only the start marker exists.
type StartSet struct {
	Start float64 `json:"startTime"`
}

// Ready means both markers exist and looping is inactive.
type Ready struct {
	Start float64 `json:"startTime"`
	End   float64 `json:"endTime"`
}

// Looping means both markers exist and playback is being re-seeked to Start.
type Looping struct {
	Start float64 `json:"startTime"`
	End   float64 `json:"endTime"`
}

func (Idle) Name() string     { return "idle" }
func (StartSet) Name() string { return "start_set" }
func (Ready) Name() string    { return "ready" }
func (Looping) Name() string  { return "looping" }

func (Idle) isState()     {}
func (StartSet) isState() {}
func (Ready) isState()    {}
func (Looping) isState()  {}

func (s StartSet) String() string { return fmt.Sprintf("start_set{%.2f}", s.Start) }
func (s Ready) String() string    { return fmt.Sprintf("ready{%.2f, %.2f}", s.Start, s.End) }
func (s Looping) String() string  { return fmt.Sprintf("looping{%.2f, %.2f}", s.Start, s.End) }

// Bounds returns the start and end markers of s. ok is false unless both
// markers are set.
func Bounds(s State) (start, end float64, ok bool) {
	switch v := s.(type) {
	case Ready:
		return v.Start, v.End, true
	case Looping:
		return v.Start, v.End, true
	}
	return 0, 0, false
}

// Snapshot is the JSON shape of a State sent to clients.
type Snapshot struct {
	State     string   `json:"state"`
	StartTime *float64 `json:"startTime,omitempty"`
	EndTime   *float64 `json:"endTime,omitempty"`
	Looping   bool     `json:"isLooping"`
}

// SnapshotOf flattens s for serialization.
func SnapshotOf(s State) Snapshot {
	snap := Snapshot{State: s.Name()}
	switch v := s.(type) {
	case StartSet:
		snap.StartTime = &v.Start
	case Ready:
		snap.StartTime, snap.EndTime = &v.Start, &v.End
	case Looping:
		snap.StartTime, snap.EndTime = &v.Start, &v.End
		snap.Looping = true
	}
	return snap
}
