// Package submission sends a finished recording to the lesson: upload the
// audio, then attach the returned reference. Nothing is committed locally
// unless both calls succeed.
package submission

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"practice-service/internal/recorder"
)

// StatusSubmitted is the lesson status after a successful attach.
const StatusSubmitted = "submitted"

// Uploader stores encoded audio and returns a reference to it.
type Uploader interface {
	Upload(ctx context.Context, dataURI string) (string, error)
}

// LessonAudio attaches and removes the audio of a lesson.
type LessonAudio interface {
	AttachAudio(ctx context.Context, lessonID, audioURL string) error
	DeleteAudio(ctx context.Context, lessonID string) error
}

// Recorder is the part of recorder.Machine the flow needs.
type Recorder interface {
	State() recorder.State
	Reset() recorder.State
}

// Result describes a successful submission.
type Result struct {
	LessonID string `json:"lessonId"`
	AudioURL string `json:"audioUrl"`
	Status   string `json:"status"`
}

type Flow struct {
	uploader Uploader
	lessons  LessonAudio
	log      *zap.Logger

	deletes singleflight.Group

	mu       sync.Mutex
	deleting map[string]bool
}

func NewFlow(uploader Uploader, lessons LessonAudio, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{
		uploader: uploader,
		lessons:  lessons,
		log:      log,
		deleting: make(map[string]bool),
	}
}

// Submit uploads the stopped recording held by rec and attaches it to
// lessonID. On success rec is reset. On failure rec is left untouched and an
// *Error names the failed step.
func (f *Flow) Submit(ctx context.Context, rec Recorder, lessonID string) (Result, error) {
	st, ok := rec.State().(recorder.Stopped)
	if !ok {
		return Result{}, ErrNotStopped
	}
	if st.Blob.Size() == 0 {
		return Result{}, &Error{Step: StepEncode, Err: ErrNotStopped}
	}

	log := f.log.With(zap.String("lesson_id", lessonID))
	ref, err := f.uploader.Upload(ctx, EncodeDataURI(st.Blob))
	if err != nil {
		log.Warn("upload failed", zap.Error(err))
		return Result{}, &Error{Step: StepUpload, Err: err}
	}
	if err := f.lessons.AttachAudio(ctx, lessonID, ref); err != nil {
		log.Warn("attach failed", zap.String("audio_url", ref), zap.Error(err))
		return Result{}, &Error{Step: StepAttach, Err: err}
	}

	rec.Reset()
	log.Info("recording submitted", zap.String("audio_url", ref), zap.Int("bytes", st.Blob.Size()))
	return Result{LessonID: lessonID, AudioURL: ref, Status: StatusSubmitted}, nil
}

// DeleteAndResubmit removes the lesson audio and resets rec so a new take can
// be recorded. Concurrent calls for the same lesson share one delete call.
func (f *Flow) DeleteAndResubmit(ctx context.Context, rec Recorder, lessonID string) error {
	_, err, shared := f.deletes.Do(lessonID, func() (any, error) {
		f.setDeleting(lessonID, true)
		defer f.setDeleting(lessonID, false)

		if err := f.lessons.DeleteAudio(ctx, lessonID); err != nil {
			return nil, err
		}
		rec.Reset()
		return nil, nil
	})
	if shared {
		f.log.Debug("delete already in flight", zap.String("lesson_id", lessonID))
	}
	if err != nil {
		f.log.Warn("delete failed", zap.String("lesson_id", lessonID), zap.Error(err))
		return &Error{Step: StepDelete, Err: err}
	}
	return nil
}

// Deleting reports whether a delete for lessonID is in flight, so triggers
// can be disabled.
func (f *Flow) Deleting(lessonID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleting[lessonID]
}

func (f *Flow) setDeleting(lessonID string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v {
		f.deleting[lessonID] = true
	} else {
		delete(f.deleting, lessonID)
	}
}
