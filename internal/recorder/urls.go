package recorder

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// URLStore turns blobs into locally playable URLs. Every URL returned by
// Create must eventually be passed to Revoke.
type URLStore interface {
	Create(b Blob) string
	Revoke(url string)
}

// MemoryURLStore keeps blobs in memory under "<prefix><uuid>" URLs and can
// serve them back by id.
type MemoryURLStore struct {
	prefix string

	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewMemoryURLStore creates a store whose URLs start with prefix, e.g.
// "/blobs/".
func NewMemoryURLStore(prefix string) *MemoryURLStore {
	return &MemoryURLStore{
		prefix: prefix,
		blobs:  make(map[string]Blob),
	}
}

func (s *MemoryURLStore) Create(b Blob) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.blobs[id] = b
	s.mu.Unlock()
	return s.prefix + id
}

func (s *MemoryURLStore) Revoke(url string) {
	id := strings.TrimPrefix(url, s.prefix)
	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()
}

// Get returns the blob stored under id.
func (s *MemoryURLStore) Get(id string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[id]
	return b, ok
}

// Len returns the number of live URLs.
func (s *MemoryURLStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
