package recorder

import "time"

// State is the capture lifecycle state. Exactly one of Idle, Recording,
// Paused, Stopped or Failed is active.
type State interface {
	Name() string
	isState()
}

// Idle is the initial state and the state after Reset.
type Idle struct{}

// Recording means the device is capturing into the buffer.
type Recording struct {
	StartedAt time.Time
}

// Paused means capture is suspended. StartedAt is the anchor of the
// recording, PausedAt when the pause began.
type Paused struct {
	StartedAt time.Time
	PausedAt  time.Time
}

// Stopped holds the finished recording until it is submitted or reset.
type Stopped struct {
	Blob     Blob
	AudioURL string
}

// Failed is terminal until Reset. Message is user facing.
type Failed struct {
	Message string
}

func (Idle) Name() string      { return "idle" }
func (Recording) Name() string { return "recording" }
func (Paused) Name() string    { return "paused" }
func (Stopped) Name() string   { return "stopped" }
func (Failed) Name() string    { return "error" }

func (Idle) isState()      {}
func (Recording) isState() {}
func (Paused) isState()    {}
func (Stopped) isState()   {}
func (Failed) isState()    {}

// Blob is a finished audio artifact.
type Blob struct {
	Data     []byte
	MimeType string
}

// Size returns the blob length in bytes.
func (b Blob) Size() int { return len(b.Data) }

// Snapshot is the JSON shape of a State sent to clients.
type Snapshot struct {
	State     string     `json:"state"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	PausedAt  *time.Time `json:"pausedAt,omitempty"`
	AudioURL  string     `json:"audioUrl,omitempty"`
	MimeType  string     `json:"mimeType,omitempty"`
	Size      int        `json:"size,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// SnapshotOf flattens s for serialization. The blob bytes are never included.
func SnapshotOf(s State) Snapshot {
	snap := Snapshot{State: s.Name()}
	switch v := s.(type) {
	case Recording:
		snap.StartedAt = &v.StartedAt
	case Paused:
		snap.StartedAt, snap.PausedAt = &v.StartedAt, &v.PausedAt
	case Stopped:
		snap.AudioURL = v.AudioURL
		snap.MimeType = v.Blob.MimeType
		snap.Size = v.Blob.Size()
	case Failed:
		snap.Message = v.Message
	}
	return snap
}
