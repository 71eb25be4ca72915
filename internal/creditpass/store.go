package creditpass

import (
	"context"
	"time"

	"inspekta/pkg/domain"
)

// Store persists credit passes, one per client (the storage key is the client
// reference). Consume and Restore are conditional mutations applied under the
// store's lock so counter checks and writes are a single atomic step.
type Store interface {
	// Create inserts a pass for the client, replacing an expired one. Fails
	// with sentinel.ErrConflict when a non-expired pass already exists at now.
	Create(ctx context.Context, pass *CreditPass, now time.Time) error

	FindByClient(ctx context.Context, client domain.ClientRef) (*CreditPass, error)

	// Consume decrements the remaining counter and reports whether this is
	// the pass's fee-free first consumption. Fails with sentinel.ErrExpired
	// past ExpiresAt and sentinel.ErrExhausted at zero remaining.
	Consume(ctx context.Context, client domain.ClientRef, now time.Time) (feeFree bool, err error)

	// Restore increments the remaining counter up to the original cap. Fails
	// with sentinel.ErrAtCapacity when already full; callers treat that as
	// non-fatal.
	Restore(ctx context.Context, client domain.ClientRef) error
}
