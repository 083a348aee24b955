package practice

import (
	"encoding/json"
	"sync"
)

// Hub tracks the open sessions per lesson and fans broadcast events out to
// the sessions of the lesson an event is about.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*wsClient]struct{})}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.lessonID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[c.lessonID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.lessonID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.lessonID)
	}
}

// Count returns the number of sessions open on lessonID.
func (h *Hub) Count(lessonID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[lessonID])
}

// Total returns the number of open sessions across all lessons.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Publish delivers a broadcast event {type, payload{lessonId}} to the
// sessions of that lesson as {"type":"event","event":...}. Events without a
// lesson id are dropped.
func (h *Hub) Publish(event []byte) int {
	var probe struct {
		Payload struct {
			LessonID string `json:"lessonId"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(event, &probe); err != nil || probe.Payload.LessonID == "" {
		return 0
	}
	msg, err := json.Marshal(map[string]json.RawMessage{
		"type":  json.RawMessage(`"event"`),
		"event": json.RawMessage(event),
	})
	if err != nil {
		return 0
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients[probe.Payload.LessonID]))
	for c := range h.clients[probe.Payload.LessonID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.enqueue(msg) {
			sent++
		}
	}
	return sent
}
