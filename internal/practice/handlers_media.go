package practice

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"practice-service/internal/submission"
)

// POST /uploads
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		// base64 plus the JSON envelope
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*4/3+4096)
	}

	var body uploadRequest
	if err := decodeJSON(r, &body); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, "data must be a data uri")
		return
	}

	url, err := s.files.Upload(r.Context(), body.Data)
	switch {
	case errors.Is(err, ErrUploadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	case errors.Is(err, submission.ErrInvalidDataURI), errors.Is(err, ErrUnsupportedMedia):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error("store upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cannot save audio")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// GET /audio/{name}
func (s *Server) handleServeAudio(w http.ResponseWriter, r *http.Request) {
	path, ok := s.files.Path(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}
	http.ServeFile(w, r, path)
}

// GET /blobs/{id} serves a recording that has not been submitted yet.
func (s *Server) handleServeBlob(w http.ResponseWriter, r *http.Request) {
	blob, ok := s.blobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	w.Header().Set("Content-Type", blob.MimeType)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(blob.Data))
}
