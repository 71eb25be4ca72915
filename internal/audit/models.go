package audit

import (
	"time"

	"inspekta/internal/booking/models"
	"inspekta/pkg/domain"
)

// Action names a booking lifecycle transition recorded on the audit trail.
type Action string

const (
	ActionBookingCreated   Action = "booking_created"
	ActionFeeLocked        Action = "fee_locked"
	ActionCodeVerified     Action = "code_verified"
	ActionBookingCancelled Action = "booking_cancelled"
	ActionCreditRestored   Action = "credit_restored"
	ActionFundsPromoted    Action = "funds_promoted"
	ActionPassIssued       Action = "pass_issued"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. The trail is
// append-only: bookings are never deleted, their history only grows.
type Event struct {
	Timestamp time.Time
	Action    Action
	BookingID domain.BookingID
	ClientRef domain.ClientRef
	AgentRef  domain.AgentRef
	Actor     models.CancelActor
	Amount    domain.Money
	Reason    string
}
