package practice

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// localMedia is the in-process upload and lesson audio collaborator used by
// practice sessions.
type localMedia struct {
	s *Server
}

func (m localMedia) Upload(ctx context.Context, dataURI string) (string, error) {
	return m.s.files.Upload(ctx, dataURI)
}

func (m localMedia) AttachAudio(ctx context.Context, lessonID, audioURL string) error {
	return m.s.attachAudio(ctx, lessonID, audioURL)
}

func (m localMedia) DeleteAudio(ctx context.Context, lessonID string) error {
	return m.s.deleteAudio(ctx, lessonID)
}

func (s *Server) attachAudio(ctx context.Context, lessonID, audioURL string) error {
	if err := s.lessons.AttachAudio(ctx, lessonID, audioURL); err != nil {
		return err
	}
	s.publishEvent(ctx, eventSubmitted, map[string]any{
		"lessonId": lessonID,
		"audioUrl": audioURL,
		"status":   statusSubmitted,
	})
	return nil
}

func (s *Server) deleteAudio(ctx context.Context, lessonID string) error {
	prev, err := s.lessons.ClearAudio(ctx, lessonID)
	if err != nil {
		return err
	}
	if prev != "" {
		if err := s.files.Remove(prev); err != nil {
			s.log.Warn("remove audio file", zap.String("audio_url", prev), zap.Error(err))
		}
	}
	s.publishEvent(ctx, eventAudioDeleted, map[string]any{
		"lessonId": lessonID,
		"status":   statusPending,
	})
	return nil
}

// requireLesson writes 404 or 500 and returns false unless the lesson exists.
func (s *Server) requireLesson(w http.ResponseWriter, r *http.Request, lessonID string) bool {
	ok, err := s.lessons.Exists(r.Context(), lessonID)
	if err != nil {
		s.log.Error("lesson lookup", zap.String("lesson_id", lessonID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return false
	}
	if !ok {
		writeError(w, http.StatusNotFound, "lesson not found")
		return false
	}
	return true
}

// POST /lessons
func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	var body createLessonRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, "title is required and videoUrl must be a url")
		return
	}

	lesson, err := s.lessons.Create(r.Context(), body.Title, body.VideoURL)
	if err != nil {
		s.log.Error("create lesson", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusCreated, lesson)
}

// GET /lessons/{id}
func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "id")

	lesson, err := s.lessons.Get(r.Context(), lessonID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "lesson not found")
		return
	}
	if err != nil {
		s.log.Error("get lesson", zap.String("lesson_id", lessonID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

// PUT /lessons/{id}/audio
func (s *Server) handleAttachAudio(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "id")

	var body attachAudioRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, "audioUrl is required")
		return
	}

	err := s.attachAudio(r.Context(), lessonID, body.AudioURL)
	if errors.Is(err, ErrLessonNotFound) {
		writeError(w, http.StatusNotFound, "lesson not found")
		return
	}
	if err != nil {
		s.log.Error("attach audio", zap.String("lesson_id", lessonID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lessonId": lessonID,
		"audioUrl": body.AudioURL,
		"status":   statusSubmitted,
	})
}

// DELETE /lessons/{id}/audio
func (s *Server) handleDeleteAudio(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "id")

	err := s.deleteAudio(r.Context(), lessonID)
	if errors.Is(err, ErrLessonNotFound) {
		writeError(w, http.StatusNotFound, "lesson not found")
		return
	}
	if err != nil {
		s.log.Error("delete audio", zap.String("lesson_id", lessonID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lessonId": lessonID,
		"status":   statusPending,
	})
}
