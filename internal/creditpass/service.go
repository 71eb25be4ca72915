package creditpass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inspekta/pkg/domain"
	dErrors "inspekta/pkg/domain-errors"
	"inspekta/pkg/platform/sentinel"
)

// Clock supplies the current time; injected for tests.
type Clock func() time.Time

// Service owns credit-pass lifecycle rules on top of the store.
type Service struct {
	store  Store
	logger *slog.Logger
	clock  Clock
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("credit pass store is required")
	}
	svc := &Service{store: store, logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue creates a fresh pass for the client. A client holding a non-expired
// pass cannot be issued another.
func (s *Service) Issue(ctx context.Context, client domain.ClientRef, totalCredits int, validity time.Duration) (*CreditPass, error) {
	if err := client.Validate(); err != nil {
		return nil, err
	}
	if totalCredits <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "total credits must be positive")
	}
	if validity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "validity duration must be positive")
	}

	now := s.clock()
	pass := &CreditPass{
		ID:           domain.NewPassID(),
		ClientRef:    client,
		TotalCredits: totalCredits,
		Remaining:    totalCredits,
		IssuedAt:     now,
		ExpiresAt:    now.Add(validity),
	}
	if err := s.store.Create(ctx, pass, now); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "client already holds an active pass")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue pass")
	}

	s.logger.InfoContext(ctx, "credit pass issued",
		"client", string(client),
		"credits", totalCredits,
		"expires_at", pass.ExpiresAt,
	)
	return pass, nil
}

// Consume spends one credit and reports whether it was the pass's fee-free
// first use.
func (s *Service) Consume(ctx context.Context, client domain.ClientRef) (bool, error) {
	feeFree, err := s.store.Consume(ctx, client, s.clock())
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return false, dErrors.Wrap(err, dErrors.CodeNotFound, "client holds no pass")
		case errors.Is(err, sentinel.ErrExpired):
			return false, dErrors.Wrap(err, dErrors.CodeConflict, "pass has expired")
		case errors.Is(err, sentinel.ErrExhausted):
			return false, dErrors.Wrap(err, dErrors.CodeConflict, "pass has no credits remaining")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume credit")
	}
	return feeFree, nil
}

// Restore returns one credit to the pass, capped at the original total.
// ErrAtCapacity is surfaced unwrapped so callers can treat it as non-fatal.
func (s *Service) Restore(ctx context.Context, client domain.ClientRef) error {
	err := s.store.Restore(ctx, client)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAtCapacity):
			return err
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeNotFound, "client holds no pass")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to restore credit")
	}
	return nil
}

// Status reports the effective remaining credits and expiry for the client.
func (s *Service) Status(ctx context.Context, client domain.ClientRef) (remaining int, expiresAt time.Time, err error) {
	if err := client.Validate(); err != nil {
		return 0, time.Time{}, err
	}
	pass, err := s.store.FindByClient(ctx, client)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, time.Time{}, dErrors.Wrap(err, dErrors.CodeNotFound, "client holds no pass")
		}
		return 0, time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pass")
	}
	return pass.RemainingAt(s.clock()), pass.ExpiresAt, nil
}
