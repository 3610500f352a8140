// Package guard holds best-effort duplicate suppression for the
// command relay. The seen set is an optimization, not the correctness
// mechanism: economic handlers stay idempotent by command id.
package guard

import "sync"

// DefaultSeenCapacity bounds the in-memory seen set.
const DefaultSeenCapacity = 1000

// SeenSet remembers recently observed command ids in insertion order.
// When full, the oldest half is evicted.
type SeenSet struct {
	mu    sync.Mutex
	cap   int
	seen  map[string]struct{}
	order []string
}

// NewSeenSet creates a set with the given capacity; capacity <= 0 uses
// DefaultSeenCapacity.
func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	return &SeenSet{
		cap:  capacity,
		seen: make(map[string]struct{}, capacity),
	}
}

// Add records id and reports whether it was newly seen. Empty ids are
// never tracked and always pass.
func (s *SeenSet) Add(id string) bool {
	if id == "" {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return false
	}

	if len(s.order) >= s.cap {
		half := len(s.order) / 2
		for _, old := range s.order[:half] {
			delete(s.seen, old)
		}
		s.order = append(s.order[:0], s.order[half:]...)
	}

	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Len returns the number of tracked ids.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
