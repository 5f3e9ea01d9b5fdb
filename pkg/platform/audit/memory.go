package audit

import (
	"context"
	"sync"
)

const defaultCapacity = 1000

// InMemoryStore keeps the most recent events in a ring buffer. When full
// the oldest event is overwritten.
type InMemoryStore struct {
	mu      sync.Mutex
	events  []Event
	head    int
	count   int
	dropped int64
}

func NewInMemoryStore(capacity int) *InMemoryStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &InMemoryStore{events: make([]Event, capacity)}
}

func (s *InMemoryStore) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == len(s.events) {
		s.dropped++
	} else {
		s.count++
	}
	s.events[s.head] = event
	s.head = (s.head + 1) % len(s.events)
}

// ListRecent returns up to limit events, newest first. limit <= 0 returns
// everything held.
func (s *InMemoryStore) ListRecent(limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > s.count {
		limit = s.count
	}
	out := make([]Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.head - i + len(s.events)) % len(s.events)
		out = append(out, s.events[idx])
	}
	return out
}

// ListByUser returns the held events for userID, oldest first.
func (s *InMemoryStore) ListByUser(userID string) []Event {
	recent := s.ListRecent(0)
	var out []Event
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].UserID == userID {
			out = append(out, recent[i])
		}
	}
	return out
}

// Dropped returns how many events were overwritten.
func (s *InMemoryStore) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
