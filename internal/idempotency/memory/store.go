package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

type entry struct {
	response ports.StoredResponse
	savedAt  time.Time
}

// Store keeps idempotent responses in process memory. Bodies are copied on the way in and out.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{items: make(map[string]entry), now: time.Now}
}

// Get returns the stored response for key, or nil when none was saved.
func (s *Store) Get(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	resp := e.response
	resp.Body = append([]byte(nil), resp.Body...)
	return &resp, nil
}

// Save stores the response for a key. The first response saved for a key wins.
func (s *Store) Save(_ context.Context, key string, response ports.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[key]; exists {
		return nil
	}
	response.Body = append([]byte(nil), response.Body...)
	s.items[key] = entry{response: response, savedAt: s.now()}
	return nil
}

// Purge drops responses saved before the cutoff and reports how many were removed.
func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for key, e := range s.items {
		if e.savedAt.Before(before) {
			delete(s.items, key)
			removed++
		}
	}
	return removed, nil
}
