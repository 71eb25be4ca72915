package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inspekta/pkg/domain"
	"inspekta/pkg/platform/sentinel"
)

// Postgres persists one row per agent. Guarded UPDATEs (WHERE bucket >= amount)
// make moves and debits atomic and let the non-negative constraint live in the
// query rather than application code.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// LedgerSchema is the agent-accounts DDL, applied by Migrate.
const LedgerSchema = `
CREATE TABLE IF NOT EXISTS agent_ledgers (
	agent_ref    TEXT PRIMARY KEY,
	currency     TEXT NOT NULL,
	pending      BIGINT NOT NULL DEFAULT 0 CHECK (pending >= 0),
	locked       BIGINT NOT NULL DEFAULT 0 CHECK (locked >= 0),
	certified    BIGINT NOT NULL DEFAULT 0 CHECK (certified >= 0),
	withdrawable BIGINT NOT NULL DEFAULT 0 CHECK (withdrawable >= 0)
);
`

// Migrate applies the ledger schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, LedgerSchema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

func (s *Postgres) Credit(ctx context.Context, agent domain.AgentRef, bucket Bucket, amount domain.Money) error {
	if err := validateAmount(bucket, amount); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO agent_ledgers (agent_ref, currency, %[1]s)
		VALUES ($1, $2, $3)
		ON CONFLICT (agent_ref) DO UPDATE SET %[1]s = agent_ledgers.%[1]s + EXCLUDED.%[1]s
		WHERE agent_ledgers.currency = EXCLUDED.currency`, string(bucket))
	res, err := s.db.ExecContext(ctx, query, string(agent), amount.Currency, amount.Amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", bucket, err)
	}
	return requireRow(res, "credit currency mismatch")
}

func (s *Postgres) Move(ctx context.Context, agent domain.AgentRef, from, to Bucket, amount domain.Money) error {
	if err := validateAmount(from, amount); err != nil {
		return err
	}
	if !to.Valid() {
		return fmt.Errorf("ledger: invalid bucket %q", to)
	}
	query := fmt.Sprintf(`
		UPDATE agent_ledgers
		SET %[1]s = %[1]s - $2, %[2]s = %[2]s + $2
		WHERE agent_ref = $1 AND currency = $3 AND %[1]s >= $2`, string(from), string(to))
	res, err := s.db.ExecContext(ctx, query, string(agent), amount.Amount, amount.Currency)
	if err != nil {
		return fmt.Errorf("move %s to %s: %w", from, to, err)
	}
	if err := requireRow(res, ""); err != nil {
		return fmt.Errorf("%w: move %s to %s for agent %s", sentinel.ErrInsufficientFunds, from, to, agent)
	}
	return nil
}

func (s *Postgres) Debit(ctx context.Context, agent domain.AgentRef, bucket Bucket, amount domain.Money) error {
	if err := validateAmount(bucket, amount); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE agent_ledgers
		SET %[1]s = %[1]s - $2
		WHERE agent_ref = $1 AND currency = $3 AND %[1]s >= $2`, string(bucket))
	res, err := s.db.ExecContext(ctx, query, string(agent), amount.Amount, amount.Currency)
	if err != nil {
		return fmt.Errorf("debit %s: %w", bucket, err)
	}
	if err := requireRow(res, ""); err != nil {
		return fmt.Errorf("%w: debit %s for agent %s", sentinel.ErrInsufficientFunds, bucket, agent)
	}
	return nil
}

func (s *Postgres) Balances(ctx context.Context, agent domain.AgentRef) (Balances, error) {
	var (
		currency                                 string
		pending, locked, certified, withdrawable int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT currency, pending, locked, certified, withdrawable
		FROM agent_ledgers WHERE agent_ref = $1`, string(agent)).
		Scan(&currency, &pending, &locked, &certified, &withdrawable)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			zero := domain.Zero("ngn")
			return Balances{Pending: zero, Locked: zero, Certified: zero, Withdrawable: zero}, nil
		}
		return Balances{}, fmt.Errorf("read balances: %w", err)
	}
	money := func(v int64) domain.Money { return domain.Money{Amount: v, Currency: currency} }
	return Balances{
		Pending:      money(pending),
		Locked:       money(locked),
		Certified:    money(certified),
		Withdrawable: money(withdrawable),
	}, nil
}

func requireRow(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if msg == "" {
			return errors.New("no row updated")
		}
		return errors.New(msg)
	}
	return nil
}
