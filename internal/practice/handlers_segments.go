package practice

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"practice-service/internal/segments"
)

// GET /lessons/{id}/segments
func (s *Server) handleGetSegments(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "id")
	if !s.requireLesson(w, r, lessonID) {
		return
	}

	list, err := s.segments.LoadSegments(r.Context(), lessonID)
	if err != nil {
		s.log.Error("load segments", zap.String("lesson_id", lessonID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, segmentsResponse{LessonID: lessonID, Segments: list})
}

// PUT /lessons/{id}/segments replaces the whole list. Positions are derived
// from start times, not taken from the body.
func (s *Server) handlePutSegments(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "id")

	var body saveSegmentsRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, segments.ErrInvalidRange.Error())
		return
	}

	list := make([]segments.Segment, 0, len(body.Segments))
	for _, in := range body.Segments {
		if err := segments.CheckRange(in.StartTime, in.EndTime); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		list = append(list, segments.Segment{
			ID:        in.ID,
			Label:     in.Label,
			StartTime: segments.RoundTime(in.StartTime),
			EndTime:   segments.RoundTime(in.EndTime),
		})
	}
	var verr *segments.ValidationError
	if err := segments.ValidateLabels(list); errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	}
	segments.Normalize(list)

	if !s.requireLesson(w, r, lessonID) {
		return
	}
	if err := s.segments.SaveSegments(r.Context(), lessonID, list); err != nil {
		s.log.Error("save segments", zap.String("lesson_id", lessonID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	saved, err := s.segments.LoadSegments(r.Context(), lessonID)
	if err != nil {
		s.log.Error("reload segments", zap.String("lesson_id", lessonID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(r.Context(), eventSegmentsSaved, map[string]any{
		"lessonId": lessonID,
		"count":    len(saved),
	})
	writeJSON(w, http.StatusOK, segmentsResponse{LessonID: lessonID, Segments: saved})
}
