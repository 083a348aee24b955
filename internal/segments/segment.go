// Package segments keeps the ordered phrase segments of a lesson in sync
// between a region editor and the persisted segment list.
package segments

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// LocalIDPrefix marks ids that were never persisted.
const LocalIDPrefix = "local-"

var (
	ErrUnknownSegment   = errors.New("segment not found")
	ErrDuplicateSegment = errors.New("segment already exists")
	ErrInvalidRange     = errors.New("invalid time range")
	ErrSaveInProgress   = errors.New("save already in progress")
)

// Segment is a labeled time range of a lesson. Position is 1-based and
// follows ascending StartTime.
type Segment struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Position  int     `json:"position"`
}

// ValidationError rejects a save before any network call.
type ValidationError struct {
	Message    string
	SegmentIDs []string
}

func (e *ValidationError) Error() string { return e.Message }

// NewLocalID returns a placeholder id for a segment created in the editor.
func NewLocalID() string {
	return LocalIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id is a placeholder.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// RoundTime rounds seconds to hundredths.
func RoundTime(t float64) float64 {
	return math.Round(t*100) / 100
}

// CheckRange rejects negative or non-finite times. End before start is
// allowed.
func CheckRange(start, end float64) error {
	for _, v := range []float64{start, end} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %v..%v", ErrInvalidRange, start, end)
		}
	}
	return nil
}

// Normalize sorts list by start time, keeping the relative order of equal
// starts, and renumbers positions 1..n in place.
func Normalize(list []Segment) {
	slices.SortStableFunc(list, func(a, b Segment) int {
		switch {
		case a.StartTime < b.StartTime:
			return -1
		case a.StartTime > b.StartTime:
			return 1
		}
		return 0
	})
	for i := range list {
		list[i].Position = i + 1
	}
}

// ValidateLabels returns a *ValidationError listing segments with blank labels.
func ValidateLabels(list []Segment) error {
	var blank []string
	for _, s := range list {
		if strings.TrimSpace(s.Label) == "" {
			blank = append(blank, s.ID)
		}
	}
	if len(blank) == 0 {
		return nil
	}
	msg := "every segment needs a label"
	if len(blank) == 1 {
		msg = "1 segment has no label"
	} else if len(blank) < len(list) {
		msg = fmt.Sprintf("%d segments have no label", len(blank))
	}
	return &ValidationError{Message: msg, SegmentIDs: blank}
}

func clone(list []Segment) []Segment {
	if list == nil {
		return nil
	}
	return slices.Clone(list)
}
