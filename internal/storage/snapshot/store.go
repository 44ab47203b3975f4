// Package snapshot
package snapshot

import (
	"sync"
	"time"
)

type Store[T any] struct {
	mu    sync.RWMutex
	data  T
	at    time.Time
	valid bool
}

func (s *Store[T]) Set(v T) {
	s.mu.Lock()
	s.data = v
	s.at = time.Now().UTC()
	s.valid = true
	s.mu.Unlock()
}

// Get returns the last value and when it was set. ok is false when nothing
// was set since creation or the last Clear.
func (s *Store[T]) Get() (v T, at time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, s.at, s.valid
}

func (s *Store[T]) Clear() {
	s.mu.Lock()
	var zero T
	s.data = zero
	s.at = time.Time{}
	s.valid = false
	s.mu.Unlock()
}
