package audit

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps the event log in process memory. Suitable for tests and
// single-node development; production deployments use the Postgres outbox
// store so events survive restarts and reach Kafka.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	if event.Category == "" {
		event.Category = CategoryOf(event.Action)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return append([]Event{}, events...), nil
}
