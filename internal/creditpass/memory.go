package creditpass

import (
	"context"
	"sync"
	"time"

	"inspekta/pkg/domain"
	"inspekta/pkg/platform/sentinel"
)

// InMemory keeps passes in process memory behind a single RWMutex. Reads hand
// out copies.
type InMemory struct {
	mu     sync.RWMutex
	passes map[domain.ClientRef]*CreditPass
}

func NewInMemory() *InMemory {
	return &InMemory{passes: make(map[domain.ClientRef]*CreditPass)}
}

func (s *InMemory) Create(_ context.Context, pass *CreditPass, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.passes[pass.ClientRef]; ok && !existing.ExpiredAt(now) {
		return sentinel.ErrConflict
	}
	cp := *pass
	s.passes[pass.ClientRef] = &cp
	return nil
}

func (s *InMemory) FindByClient(_ context.Context, client domain.ClientRef) (*CreditPass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.passes[client]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) Consume(_ context.Context, client domain.ClientRef, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.passes[client]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if p.ExpiredAt(now) {
		return false, sentinel.ErrExpired
	}
	if p.Remaining == 0 {
		return false, sentinel.ErrExhausted
	}

	feeFree := p.Consumed == 0
	p.Remaining--
	p.Consumed++
	return feeFree, nil
}

func (s *InMemory) Restore(_ context.Context, client domain.ClientRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.passes[client]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.Remaining >= p.TotalCredits {
		return sentinel.ErrAtCapacity
	}
	p.Remaining++
	return nil
}
