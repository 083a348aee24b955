package practice

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"practice-service/internal/loop"
	"practice-service/internal/playback"
	"practice-service/internal/recorder"
	"practice-service/internal/submission"
)

// practiceSession hosts the loop driver, recorder and submission flow for
// one student in front of one lesson. The browser is both the player and the
// microphone.
type practiceSession struct {
	srv    *Server
	c      *wsClient
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	player  *remotePlayer
	device  *remoteDevice
	driver  *loop.Driver
	machine *recorder.Machine

	// starts tracks microphone requests still waiting for the browser.
	starts sync.WaitGroup
}

const commandBuffer = 64

// GET /ws/lessons/{id}/practice
func (s *Server) handlePracticeWS(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "id")
	if !s.requireLesson(w, r, lessonID) {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade", zap.Error(err))
		return
	}

	log := s.log.Named("practice").With(zap.String("lesson_id", lessonID))
	ps := s.newPracticeSession(newWSClient(conn, lessonID, log), log)

	s.hub.register(ps.c)
	go ps.c.writePump()
	go ps.run()
}

func (s *Server) newPracticeSession(c *wsClient, log *zap.Logger) *practiceSession {
	ctx, cancel := context.WithCancel(context.Background())
	ps := &practiceSession{
		srv:    s,
		c:      c,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	ps.player = newRemotePlayer(c.sendJSON)
	ps.device = newRemoteDevice(c.sendJSON)
	ps.driver = loop.NewDriver(ps.player,
		loop.WithInterval(s.cfg.LoopInterval),
		loop.WithLogger(log),
		loop.OnChange(func(st loop.State) {
			c.sendJSON(map[string]any{"type": "loop_state", "loop": loop.SnapshotOf(st)})
		}),
	)
	ps.machine = recorder.NewMachine(ps.device, s.blobs,
		recorder.WithLogger(log),
		recorder.OnChange(func(st recorder.State) {
			c.sendJSON(map[string]any{"type": "recorder_state", "recorder": recorder.SnapshotOf(st)})
		}),
	)
	return ps
}

func (ps *practiceSession) run() {
	cmds := make(chan clientMessage, commandBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := range cmds {
			ps.handle(m)
		}
	}()

	ps.c.sendJSON(map[string]any{"type": "loop_state", "loop": loop.SnapshotOf(ps.driver.State())})
	ps.c.sendJSON(map[string]any{"type": "recorder_state", "recorder": recorder.SnapshotOf(ps.machine.State())})

	// Replies the worker may be blocked on are handled on the read goroutine.
	ps.c.readPump(func(m clientMessage) {
		switch m.Type {
		case "player":
			ps.player.report(m)
		case "mic":
			ps.device.answer(m)
		case "capture_stopped":
			ps.device.captureStopped()
		default:
			ps.enqueue(cmds, m)
		}
	}, ps.device.chunk)

	ps.close()
	close(cmds)
	<-done
	ps.starts.Wait()
	ps.srv.hub.unregister(ps.c)
	ps.c.shutdown()
}

// enqueue hands m to the worker without ever blocking the read goroutine,
// which must stay free to deliver mic and capture replies.
func (ps *practiceSession) enqueue(cmds chan<- clientMessage, m clientMessage) {
	select {
	case cmds <- m:
	case <-ps.ctx.Done():
	default:
		ps.log.Warn("practice command queue full", zap.String("type", m.Type))
		ps.sendError("too many pending commands, dropped: " + m.Type)
	}
}

// close releases the poller, the microphone and any recording URL.
func (ps *practiceSession) close() {
	ps.cancel()
	ps.device.captureStopped()
	ps.driver.Close()
	ps.machine.Close()
}

func (ps *practiceSession) handle(m clientMessage) {
	switch m.Type {
	case "loop":
		a := loop.ParseAction(m.Action, m.Time, m.Start, m.End)
		if a == nil {
			ps.sendError("unknown loop action: " + m.Action)
			return
		}
		ps.driver.Dispatch(a)
	case "loop_segment":
		ps.loopSegment(m.SegmentID)
	case "rate":
		if m.Rate <= 0 || !playback.SetRate(ps.player, m.Rate) {
			ps.sendError("invalid playback rate")
		}
	case "record":
		ps.record(m.Action)
	case "submit":
		ps.submit()
	case "delete_resubmit":
		ps.deleteResubmit()
	default:
		ps.sendError("unknown message type: " + m.Type)
	}
}

func (ps *practiceSession) loopSegment(id string) {
	list, err := ps.srv.segments.LoadSegments(ps.ctx, ps.c.lessonID)
	if err != nil {
		ps.log.Error("load segments for loop", zap.Error(err))
		ps.sendError("could not load segments")
		return
	}
	for _, seg := range list {
		if seg.ID == id {
			ps.driver.Dispatch(loop.SetRange{Start: seg.StartTime, End: seg.EndTime})
			ps.player.SeekTo(seg.StartTime)
			return
		}
	}
	ps.sendError("segment not found")
}

func (ps *practiceSession) record(action string) {
	switch action {
	case "start":
		// The permission prompt can stay open for a while; loop and rate
		// commands keep flowing meanwhile.
		ps.starts.Add(1)
		go func() {
			defer ps.starts.Done()
			ctx, cancel := context.WithTimeout(ps.ctx, ps.srv.cfg.MicTimeout)
			defer cancel()
			ps.machine.Start(ctx)
		}()
	case "pause":
		ps.machine.Pause()
	case "resume":
		ps.machine.Resume()
	case "stop":
		ps.machine.Stop()
	case "reset":
		ps.machine.Reset()
	default:
		ps.sendError("unknown record action: " + action)
	}
}

func (ps *practiceSession) submit() {
	res, err := ps.srv.flow.Submit(ps.ctx, ps.machine, ps.c.lessonID)
	if errors.Is(err, submission.ErrNotStopped) {
		ps.sendError("stop a recording before submitting")
		return
	}
	if err != nil {
		step := submission.StepEncode
		var serr *submission.Error
		if errors.As(err, &serr) {
			step = serr.Step
		}
		ps.c.sendJSON(map[string]any{"type": "submit_error", "step": step, "message": err.Error()})
		return
	}
	ps.c.sendJSON(map[string]any{"type": "submitted", "audioUrl": res.AudioURL, "status": res.Status})
}

func (ps *practiceSession) deleteResubmit() {
	if err := ps.srv.flow.DeleteAndResubmit(ps.ctx, ps.machine, ps.c.lessonID); err != nil {
		ps.c.sendJSON(map[string]any{"type": "submit_error", "step": submission.StepDelete, "message": err.Error()})
		return
	}
	ps.c.sendJSON(map[string]any{"type": "deleted", "status": statusPending})
}

func (ps *practiceSession) sendError(msg string) {
	ps.c.sendJSON(map[string]any{"type": "error", "message": msg})
}
