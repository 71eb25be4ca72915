package ledger

import (
	"context"

	"inspekta/pkg/domain"
)

// Store persists per-agent balances. All mutations for one agent are atomic
// with respect to each other. Moves and debits fail with
// sentinel.ErrInsufficientFunds when the source bucket holds less than the
// requested amount; under a respected booking state machine that never
// happens, so the service layer treats it as an invariant violation.
type Store interface {
	Credit(ctx context.Context, agent domain.AgentRef, bucket Bucket, amount domain.Money) error
	Move(ctx context.Context, agent domain.AgentRef, from, to Bucket, amount domain.Money) error
	Debit(ctx context.Context, agent domain.AgentRef, bucket Bucket, amount domain.Money) error
	Balances(ctx context.Context, agent domain.AgentRef) (Balances, error)
}
