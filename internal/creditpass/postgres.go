package creditpass

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"inspekta/pkg/domain"
	"inspekta/pkg/platform/sentinel"
)

// Postgres persists one pass row per client. Counter mutations are guarded
// UPDATEs so concurrent consumes serialize on the row.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// PassSchema is the credit-passes DDL, applied by Migrate.
const PassSchema = `
CREATE TABLE IF NOT EXISTS credit_passes (
	client_ref    TEXT PRIMARY KEY,
	id            UUID NOT NULL,
	total_credits INT NOT NULL CHECK (total_credits > 0),
	remaining     INT NOT NULL CHECK (remaining >= 0 AND remaining <= total_credits),
	consumed      INT NOT NULL DEFAULT 0,
	issued_at     TIMESTAMPTZ NOT NULL,
	expires_at    TIMESTAMPTZ NOT NULL
);
`

// Migrate applies the credit-pass schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, PassSchema); err != nil {
		return fmt.Errorf("migrate credit-pass schema: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, pass *CreditPass, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO credit_passes (client_ref, id, total_credits, remaining, consumed, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (client_ref) DO UPDATE SET
			id = EXCLUDED.id,
			total_credits = EXCLUDED.total_credits,
			remaining = EXCLUDED.remaining,
			consumed = EXCLUDED.consumed,
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at
		WHERE credit_passes.expires_at < $8`,
		string(pass.ClientRef), uuid.UUID(pass.ID), pass.TotalCredits, pass.Remaining,
		pass.Consumed, pass.IssuedAt, pass.ExpiresAt, now)
	if err != nil {
		return fmt.Errorf("insert credit pass: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert credit pass: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) FindByClient(ctx context.Context, client domain.ClientRef) (*CreditPass, error) {
	var (
		p  CreditPass
		id uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_credits, remaining, consumed, issued_at, expires_at
		FROM credit_passes WHERE client_ref = $1`, string(client)).
		Scan(&id, &p.TotalCredits, &p.Remaining, &p.Consumed, &p.IssuedAt, &p.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credit pass: %w", err)
	}
	p.ID = domain.PassID(id)
	p.ClientRef = client
	return &p, nil
}

func (s *Postgres) Consume(ctx context.Context, client domain.ClientRef, now time.Time) (bool, error) {
	var feeFree bool
	err := s.db.QueryRowContext(ctx, `
		UPDATE credit_passes
		SET remaining = remaining - 1, consumed = consumed + 1
		WHERE client_ref = $1 AND remaining > 0 AND expires_at >= $2
		RETURNING consumed = 1`, string(client), now).Scan(&feeFree)
	if err == nil {
		return feeFree, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("consume credit: %w", err)
	}

	// Nothing updated: work out which fact blocked the consume.
	p, ferr := s.FindByClient(ctx, client)
	if ferr != nil {
		return false, ferr
	}
	if p.ExpiredAt(now) {
		return false, sentinel.ErrExpired
	}
	return false, sentinel.ErrExhausted
}

func (s *Postgres) Restore(ctx context.Context, client domain.ClientRef) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE credit_passes
		SET remaining = remaining + 1
		WHERE client_ref = $1 AND remaining < total_credits`, string(client))
	if err != nil {
		return fmt.Errorf("restore credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("restore credit: %w", err)
	}
	if n == 0 {
		if _, ferr := s.FindByClient(ctx, client); ferr != nil {
			return ferr
		}
		return sentinel.ErrAtCapacity
	}
	return nil
}
