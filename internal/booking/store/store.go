// Package store persists booking aggregates. Conditional mutations apply the
// domain rules from models under the store's own lock so the check and the
// write are one atomic step.
package store

import (
	"context"
	"fmt"
	"time"

	"inspekta/internal/booking/models"
	"inspekta/pkg/domain"
	"inspekta/pkg/platform/sentinel"
)

// Distinct conflict facts so callers can tell a code collision (regenerate and
// retry) from a duplicate active booking (user-facing rejection). Both unwrap
// to sentinel.ErrConflict.
var (
	ErrCodeTaken     = fmt.Errorf("%w: redemption code taken", sentinel.ErrConflict)
	ErrAlreadyBooked = fmt.Errorf("%w: active booking exists for client and property", sentinel.ErrConflict)
)

// Store is the booking repository. Implementations must make ClaimCode and
// Cancel linearizable per booking: of two concurrent ClaimCode calls on the
// same code exactly one succeeds. Bookings are never deleted.
type Store interface {
	// Create inserts a booking. Fails with ErrCodeTaken when the code is
	// already held (case-insensitive) and with ErrAlreadyBooked when the
	// client already has an active booking for the property at now.
	Create(ctx context.Context, b *models.Booking, now time.Time) error

	FindByID(ctx context.Context, id domain.BookingID) (*models.Booking, error)

	// FindByCode looks a booking up by normalized redemption code.
	FindByCode(ctx context.Context, code string) (*models.Booking, error)

	// ClaimCode atomically consumes the redemption code: it re-checks
	// Claimable under the store lock, flips CodeUsed, advances FeeBucket to
	// certified, and returns the booking as it was before the claim (so the
	// caller knows which bucket funded the move).
	ClaimCode(ctx context.Context, code string, now time.Time) (*models.Booking, error)

	// Cancel atomically records a cancellation: it re-checks Cancellable
	// under the store lock, sets CancelledBy, clears FeeBucket, and returns
	// the booking as it was before the cancellation.
	Cancel(ctx context.Context, id domain.BookingID, by models.CancelActor, now time.Time) (*models.Booking, error)

	// AdvanceFeeBucket moves FeeBucket from→to, failing with
	// sentinel.ErrInvalidState if the current bucket is no longer from.
	AdvanceFeeBucket(ctx context.Context, id domain.BookingID, from, to models.FeeBucket) error

	// ListByAgent returns all bookings for an agent, oldest first.
	ListByAgent(ctx context.Context, agent domain.AgentRef) ([]*models.Booking, error)

	// ListFeePending returns bookings whose fee still sits in the pending
	// bucket, for the lock-window sweeper.
	ListFeePending(ctx context.Context) ([]*models.Booking, error)
}
