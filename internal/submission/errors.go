package submission

import (
	"errors"
	"fmt"
)

// Steps of the submission flow, reported in Error.Step.
const (
	StepEncode = "encode"
	StepUpload = "upload"
	StepAttach = "attach"
	StepDelete = "delete"
)

var (
	// ErrNotStopped is returned when Submit is called without a finished recording.
	ErrNotStopped = errors.New("no finished recording to submit")
	// ErrInvalidDataURI is returned by DecodeDataURI for malformed input.
	ErrInvalidDataURI = errors.New("invalid data uri")
)

// Error reports which collaborator call failed. The recording is kept when it
// is returned.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError is a non-2xx response from a remote collaborator.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s failed: %d: %s", e.Op, e.Status, e.Body)
}
