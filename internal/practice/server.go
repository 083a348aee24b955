// Package practice serves lessons, their segments and recorded audio, and
// hosts the segment editing and practice websocket sessions.
package practice

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"practice-service/internal/loop"
	"practice-service/internal/recorder"
	"practice-service/internal/segments"
	"practice-service/internal/submission"
)

const broadcastChannel = "broadcast"

// Config holds the tunables of the service.
type Config struct {
	AudioDir       string
	PublicBaseURL  string
	MaxUploadBytes int64
	LoopInterval   time.Duration
	MicTimeout     time.Duration
	AllowedOrigins []string
}

type Server struct {
	db       DB
	rdb      *redis.Client
	log      *zap.Logger
	cfg      Config
	validate *validator.Validate
	upgrader websocket.Upgrader
	hub      *Hub

	lessons  *LessonStore
	segments segments.Store
	files    *DiskStorage
	blobs    *recorder.MemoryURLStore
	flow     *submission.Flow
}

func NewServer(db DB, rdb *redis.Client, cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.LoopInterval <= 0 {
		cfg.LoopInterval = loop.DefaultPollInterval
	}
	if cfg.MicTimeout <= 0 {
		cfg.MicTimeout = time.Minute
	}
	s := &Server{
		db:       db,
		rdb:      rdb,
		log:      log,
		cfg:      cfg,
		validate: validator.New(),
		hub:      NewHub(),
		lessons:  NewLessonStore(db),
		segments: segments.NewPostgresStore(db),
		files:    NewDiskStorage(cfg.AudioDir, cfg.PublicBaseURL, cfg.MaxUploadBytes),
		blobs:    recorder.NewMemoryURLStore("/blobs/"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	local := localMedia{s: s}
	s.flow = submission.NewFlow(local, local, log.Named("submission"))
	return s
}

// UseRemoteMedia routes session uploads and lesson audio changes to a remote
// media service instead of this process.
func (s *Server) UseRemoteMedia(up submission.Uploader, audio submission.LessonAudio) {
	s.flow = submission.NewFlow(up, audio, s.log.Named("submission"))
}

// Hub returns the hub that routes events to open sessions.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)

	r.Post("/lessons", s.handleCreateLesson)
	r.Get("/lessons/{id}", s.handleGetLesson)
	r.Get("/lessons/{id}/segments", s.handleGetSegments)
	r.Put("/lessons/{id}/segments", s.handlePutSegments)
	r.Put("/lessons/{id}/audio", s.handleAttachAudio)
	r.Delete("/lessons/{id}/audio", s.handleDeleteAudio)

	r.Post("/uploads", s.handleUpload)
	r.Get("/audio/{name}", s.handleServeAudio)
	r.Get("/blobs/{id}", s.handleServeBlob)

	r.Get("/ws/lessons/{id}/segments", s.handleSegmentsWS)
	r.Get("/ws/lessons/{id}/practice", s.handlePracticeWS)

	return r
}

// RunRedisSubscriber forwards broadcast events to the sessions of the lesson
// they mention until ctx is done.
func (s *Server) RunRedisSubscriber(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	sub := s.rdb.Subscribe(ctx, broadcastChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.hub.Publish([]byte(msg.Payload))
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "practice-service",
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}
