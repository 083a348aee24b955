package practice

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"practice-service/internal/segments"
)

// segmentSession connects one waveform editor to a Synchronizer. It is the
// RegionView of that synchronizer.
type segmentSession struct {
	srv    *Server
	c      *wsClient
	sync   *segments.Synchronizer
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// GET /ws/lessons/{id}/segments
func (s *Server) handleSegmentsWS(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "id")
	if !s.requireLesson(w, r, lessonID) {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade", zap.Error(err))
		return
	}

	log := s.log.Named("segments").With(zap.String("lesson_id", lessonID))
	ctx, cancel := context.WithCancel(context.Background())
	sess := &segmentSession{
		srv:    s,
		c:      newWSClient(conn, lessonID, log),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	sess.sync = segments.NewSynchronizer(lessonID, s.segments,
		segments.WithView(sess),
		segments.WithLogger(log),
	)

	s.hub.register(sess.c)
	go sess.c.writePump()
	go sess.run()
}

func (ss *segmentSession) run() {
	cmds := make(chan clientMessage, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ss.load()
		for m := range cmds {
			ss.handle(m)
		}
	}()

	ss.c.readPump(func(m clientMessage) { cmds <- m }, nil)

	ss.cancel()
	close(cmds)
	<-done
	ss.srv.hub.unregister(ss.c)
	ss.c.shutdown()
}

func (ss *segmentSession) load() {
	if err := ss.sync.Load(ss.ctx); err != nil {
		ss.log.Error("load segments", zap.Error(err))
		ss.sendError("could not load segments")
	}
	ss.sendSegments()
}

func (ss *segmentSession) handle(m clientMessage) {
	var err error
	switch m.Type {
	case "region_updated":
		err = ss.sync.UpdateSegmentTimes(m.ID, m.Start, m.End)
	case "region_created":
		_, err = ss.sync.RegionCreated(m.ID, m.Start, m.End)
	case "add":
		_, err = ss.sync.AddSegment("", m.Start, m.End)
	case "label":
		err = ss.sync.UpdateSegmentLabel(m.ID, m.Label)
	case "remove":
		err = ss.sync.RemoveSegment(m.ID)
	case "save":
		err = ss.save()
	case "reset":
		ss.sync.ResetSegments()
	default:
		ss.sendError("unknown message type: " + m.Type)
		return
	}

	var verr *segments.ValidationError
	switch {
	case errors.As(err, &verr):
		ss.c.sendJSON(map[string]any{
			"type":       "validation_error",
			"message":    verr.Message,
			"segmentIds": verr.SegmentIDs,
		})
	case errors.Is(err, segments.ErrUnknownSegment),
		errors.Is(err, segments.ErrDuplicateSegment),
		errors.Is(err, segments.ErrInvalidRange),
		errors.Is(err, segments.ErrSaveInProgress):
		ss.sendError(err.Error())
	}
	// save failures are reported through the status below
	ss.sendSegments()
}

func (ss *segmentSession) save() error {
	if err := ss.sync.SaveSegments(ss.ctx); err != nil {
		return err
	}
	list := ss.sync.Segments()
	ss.srv.publishEvent(ss.ctx, eventSegmentsSaved, map[string]any{
		"lessonId": ss.c.lessonID,
		"count":    len(list),
	})
	return nil
}

func (ss *segmentSession) sendSegments() {
	ss.c.sendJSON(map[string]any{
		"type":     "segments",
		"segments": ss.sync.Segments(),
		"status":   ss.sync.Status(),
	})
}

func (ss *segmentSession) sendError(msg string) {
	ss.c.sendJSON(map[string]any{"type": "error", "message": msg})
}

func (ss *segmentSession) AddRegion(r segments.Region) {
	ss.c.sendJSON(map[string]any{
		"type":  "region_add",
		"id":    r.ID,
		"start": r.Start,
		"end":   r.End,
		"label": r.Label,
	})
}

func (ss *segmentSession) RemoveRegion(id string) {
	ss.c.sendJSON(map[string]any{"type": "region_remove", "id": id})
}

func (ss *segmentSession) SetRegionLabel(id, label string) {
	ss.c.sendJSON(map[string]any{"type": "region_label", "id": id, "label": label})
}
