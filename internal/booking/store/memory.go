package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"inspekta/internal/booking/code"
	"inspekta/internal/booking/models"
	"inspekta/pkg/domain"
	"inspekta/pkg/platform/sentinel"
)

// InMemory keeps bookings in process memory behind a single RWMutex. The
// mutex is the linearization point for ClaimCode and Cancel; all reads hand
// out copies so callers never share mutable state with the store.
type InMemory struct {
	mu       sync.RWMutex
	bookings map[domain.BookingID]*models.Booking
	byCode   map[string]domain.BookingID // keyed by normalized code
}

func NewInMemory() *InMemory {
	return &InMemory{
		bookings: make(map[domain.BookingID]*models.Booking),
		byCode:   make(map[string]domain.BookingID),
	}
}

func (s *InMemory) Create(_ context.Context, b *models.Booking, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := code.Normalize(b.Code)
	if _, taken := s.byCode[key]; taken {
		return ErrCodeTaken
	}
	for _, existing := range s.bookings {
		if existing.ClientRef == b.ClientRef && existing.PropertyRef == b.PropertyRef && existing.Active(now) {
			return ErrAlreadyBooked
		}
	}

	cp := *b
	s.bookings[b.ID] = &cp
	s.byCode[key] = b.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.BookingID) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *InMemory) FindByCode(_ context.Context, c string) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.lookupByCode(c)
	if err != nil {
		return nil, err
	}
	cp := *b
	return &cp, nil
}

func (s *InMemory) ClaimCode(_ context.Context, c string, now time.Time) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.lookupByCode(c)
	if err != nil {
		return nil, err
	}
	if err := b.Claimable(now); err != nil {
		return nil, err
	}

	before := *b
	b.CodeUsed = true
	b.FeeBucket = models.FeeBucketCertified
	return &before, nil
}

func (s *InMemory) Cancel(_ context.Context, id domain.BookingID, by models.CancelActor, now time.Time) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := b.Cancellable(by, now); err != nil {
		return nil, err
	}

	before := *b
	b.CancelledBy = by
	b.FeeBucket = models.FeeBucketNone
	return &before, nil
}

func (s *InMemory) AdvanceFeeBucket(_ context.Context, id domain.BookingID, from, to models.FeeBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if b.FeeBucket != from {
		return sentinel.ErrInvalidState
	}
	b.FeeBucket = to
	return nil
}

func (s *InMemory) ListByAgent(_ context.Context, agent domain.AgentRef) ([]*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Booking
	for _, b := range s.bookings {
		if b.AgentRef == agent {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) ListFeePending(_ context.Context) ([]*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Booking
	for _, b := range s.bookings {
		if b.FeeBucket == models.FeeBucketPending {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

// lookupByCode resolves a normalized code. Callers hold s.mu.
func (s *InMemory) lookupByCode(c string) (*models.Booking, error) {
	id, ok := s.byCode[code.Normalize(c)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	b, ok := s.bookings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return b, nil
}
