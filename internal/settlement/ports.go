// Package settlement orchestrates booking creation, code verification,
// cancellation, and payout promotion. It is the only component allowed to
// move ledger funds or spend pass credits; the HTTP layer is a thin client.
package settlement

import (
	"context"
	"time"

	"inspekta/pkg/domain"
)

// Clock supplies the current time; injected for tests.
type Clock func() time.Time

// PaymentProvider is the external capture/disbursement collaborator. The
// engine asks for captures and refunds but implements no settlement rails.
type PaymentProvider interface {
	// Capture charges the client the mobilization fee at booking time.
	Capture(ctx context.Context, client domain.ClientRef, amount domain.Money, bookingID domain.BookingID) error

	// Refund returns a captured fee to the client (client-initiated
	// cancellation inside the free window).
	Refund(ctx context.Context, client domain.ClientRef, amount domain.Money, bookingID domain.BookingID) error

	// RefundFromPool pays the client from the platform-held pool (agent
	// cancellation). The agent's ledger is never the source.
	RefundFromPool(ctx context.Context, client domain.ClientRef, amount domain.Money, bookingID domain.BookingID) error
}

// NotificationKind names a user-facing lifecycle alert.
type NotificationKind string

const (
	NotifyBookingCreated   NotificationKind = "booking_created"
	NotifyBookingLocked    NotificationKind = "booking_locked"
	NotifyBookingCompleted NotificationKind = "booking_completed"
	NotifyBookingCancelled NotificationKind = "booking_cancelled"
)

// Notification is the payload handed to the notification collaborator on
// phase transitions.
type Notification struct {
	Kind         NotificationKind   `json:"kind"`
	BookingID    domain.BookingID   `json:"booking_id"`
	ClientRef    domain.ClientRef   `json:"client_ref"`
	AgentRef     domain.AgentRef    `json:"agent_ref"`
	PropertyRef  domain.PropertyRef `json:"property_ref"`
	InspectionAt time.Time          `json:"inspection_at"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// Notifier delivers lifecycle alerts. Delivery failures are logged, never
// propagated: notifications must not fail settlements.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
