package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"inspekta/pkg/domain"
	dErrors "inspekta/pkg/domain-errors"
	"inspekta/pkg/platform/sentinel"
)

// Service is the only holder of ledger mutation rights. The settlement engine
// calls it in response to booking transitions; the HTTP layer sees balances
// only. Insufficient-funds failures are invariant violations: the detailed
// cause is logged for operators and callers get a generic internal error.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	svc := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Credit adds amount to the agent's bucket.
func (s *Service) Credit(ctx context.Context, agent domain.AgentRef, bucket Bucket, amount domain.Money) error {
	if err := s.store.Credit(ctx, agent, bucket, amount); err != nil {
		return s.internal(ctx, err, "ledger credit failed",
			"agent", string(agent), "bucket", string(bucket), "amount", amount.String())
	}
	return nil
}

// Move shifts amount between two of the agent's buckets.
func (s *Service) Move(ctx context.Context, agent domain.AgentRef, from, to Bucket, amount domain.Money) error {
	if err := s.store.Move(ctx, agent, from, to, amount); err != nil {
		return s.internal(ctx, err, "ledger move failed",
			"agent", string(agent), "from", string(from), "to", string(to), "amount", amount.String())
	}
	return nil
}

// Debit removes amount from the agent's bucket. Used on cancellation, where
// the fee leaves the agent's ledger entirely (the refund travels through the
// payment collaborator, not these buckets).
func (s *Service) Debit(ctx context.Context, agent domain.AgentRef, bucket Bucket, amount domain.Money) error {
	if err := s.store.Debit(ctx, agent, bucket, amount); err != nil {
		return s.internal(ctx, err, "ledger debit failed",
			"agent", string(agent), "bucket", string(bucket), "amount", amount.String())
	}
	return nil
}

// Promote moves audit-cleared funds certified → withdrawable. The audit
// collaborator decides when and how much; promoting more than is certified is
// that caller's mistake, not an internal invariant violation.
func (s *Service) Promote(ctx context.Context, agent domain.AgentRef, amount domain.Money) error {
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "promotion amount must be positive")
	}
	err := s.store.Move(ctx, agent, BucketCertified, BucketWithdrawable, amount)
	if err != nil {
		if errors.Is(err, sentinel.ErrInsufficientFunds) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "certified balance is less than the promotion amount")
		}
		return s.internal(ctx, err, "ledger promote failed",
			"agent", string(agent), "amount", amount.String())
	}
	return nil
}

// Balances returns a read-only snapshot of the agent's buckets.
func (s *Service) Balances(ctx context.Context, agent domain.AgentRef) (Balances, error) {
	bal, err := s.store.Balances(ctx, agent)
	if err != nil {
		return Balances{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger balances")
	}
	return bal, nil
}

func (s *Service) internal(ctx context.Context, err error, msg string, args ...any) error {
	s.logger.ErrorContext(ctx, msg, append(args, "error", err.Error())...)
	return dErrors.Wrap(err, dErrors.CodeInternal, "ledger operation failed")
}
