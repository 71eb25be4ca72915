package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"inspekta/internal/booking/code"
	"inspekta/internal/booking/models"
	"inspekta/pkg/domain"
	"inspekta/pkg/platform/sentinel"
)

// Postgres persists bookings in PostgreSQL. The unique index on the
// normalized code column enforces collision safety, and claim/cancel run in a
// transaction with a row lock so concurrent attempts serialize on the row.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const bookingColumns = `id, redemption_code, client_ref, agent_ref, property_ref,
	inspection_at, fee_amount, fee_currency, fee_free, code_used, cancelled_by,
	fee_bucket, created_at`

func (s *Postgres) Create(ctx context.Context, b *models.Booking, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create booking: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Serialize concurrent creates for the same client+property slot. Under
	// read committed two transactions could both pass the EXISTS check below
	// before either insert commits; the advisory lock is held until commit.
	_, err = tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`,
		string(b.ClientRef), string(b.PropertyRef))
	if err != nil {
		return fmt.Errorf("acquire booking slot lock: %w", err)
	}

	// Scheduled-or-locked at `now` means not used, not cancelled, not past
	// its inspection time.
	var active bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE client_ref = $1 AND property_ref = $2
			  AND NOT code_used AND cancelled_by = ''
			  AND inspection_at >= $3
		)`, string(b.ClientRef), string(b.PropertyRef), now).Scan(&active)
	if err != nil {
		return fmt.Errorf("check active booking: %w", err)
	}
	if active {
		return ErrAlreadyBooked
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(b.ID), code.Normalize(b.Code), string(b.ClientRef), string(b.AgentRef),
		string(b.PropertyRef), b.InspectionAt, b.Fee.Amount, b.Fee.Currency, b.FeeFree,
		b.CodeUsed, string(b.CancelledBy), string(b.FeeBucket), b.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrCodeTaken
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return tx.Commit()
}

func (s *Postgres) FindByID(ctx context.Context, id domain.BookingID) (*models.Booking, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, uuid.UUID(id))
	return scanBooking(row)
}

func (s *Postgres) FindByCode(ctx context.Context, c string) (*models.Booking, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE redemption_code = $1`, code.Normalize(c))
	return scanBooking(row)
}

func (s *Postgres) ClaimCode(ctx context.Context, c string, now time.Time) (*models.Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE redemption_code = $1 FOR UPDATE`,
		code.Normalize(c))
	b, err := scanBooking(row)
	if err != nil {
		return nil, err
	}
	if err := b.Claimable(now); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET code_used = TRUE, fee_bucket = $2 WHERE id = $1`,
		uuid.UUID(b.ID), string(models.FeeBucketCertified))
	if err != nil {
		return nil, fmt.Errorf("claim code: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return b, nil
}

func (s *Postgres) Cancel(ctx context.Context, id domain.BookingID, by models.CancelActor, now time.Time) (*models.Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, uuid.UUID(id))
	b, err := scanBooking(row)
	if err != nil {
		return nil, err
	}
	if err := b.Cancellable(by, now); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET cancelled_by = $2, fee_bucket = '' WHERE id = $1`,
		uuid.UUID(b.ID), string(by))
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}
	return b, nil
}

func (s *Postgres) AdvanceFeeBucket(ctx context.Context, id domain.BookingID, from, to models.FeeBucket) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET fee_bucket = $3 WHERE id = $1 AND fee_bucket = $2`,
		uuid.UUID(id), string(from), string(to))
	if err != nil {
		return fmt.Errorf("advance fee bucket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance fee bucket: %w", err)
	}
	if n == 0 {
		// Either the booking is unknown or another writer advanced it first.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, uuid.UUID(id)).Scan(&exists); err != nil {
			return fmt.Errorf("advance fee bucket: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) ListByAgent(ctx context.Context, agent domain.AgentRef) ([]*models.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE agent_ref = $1 ORDER BY created_at`,
		string(agent))
	if err != nil {
		return nil, fmt.Errorf("list bookings by agent: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (s *Postgres) ListFeePending(ctx context.Context) ([]*models.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE fee_bucket = $1`,
		string(models.FeeBucketPending))
	if err != nil {
		return nil, fmt.Errorf("list fee-pending bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b           models.Booking
		id          uuid.UUID
		client      string
		agent       string
		property    string
		cancelledBy string
		feeBucket   string
	)
	err := row.Scan(&id, &b.Code, &client, &agent, &property, &b.InspectionAt,
		&b.Fee.Amount, &b.Fee.Currency, &b.FeeFree, &b.CodeUsed, &cancelledBy,
		&feeBucket, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	b.ID = domain.BookingID(id)
	b.ClientRef = domain.ClientRef(client)
	b.AgentRef = domain.AgentRef(agent)
	b.PropertyRef = domain.PropertyRef(property)
	b.CancelledBy = models.CancelActor(cancelledBy)
	b.FeeBucket = models.FeeBucket(feeBucket)
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var out []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
