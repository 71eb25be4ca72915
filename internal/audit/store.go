package audit

import (
	"context"
	"sync"

	"inspekta/pkg/domain"
)

// Store is an append-only event sink. There is no delete: the trail is the
// testable record that bookings are only ever appended to.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByBooking(ctx context.Context, id domain.BookingID) ([]Event, error)
}

// InMemoryStore keeps the trail in process memory for tests and single-node
// deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByBooking(_ context.Context, id domain.BookingID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.BookingID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len reports the total number of recorded events.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
