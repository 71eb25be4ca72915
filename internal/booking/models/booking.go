// Package models defines the booking aggregate and its time-derived phase.
// Only three primitive facts are stored (InspectionAt, CodeUsed, CancelledBy);
// the phase is computed on every read so it can never drift from the clock.
package models

import (
	"time"

	"inspekta/pkg/domain"
	"inspekta/pkg/platform/sentinel"
)

// LockWindow is the period before a scheduled inspection during which
// client-initiated cancellation is restricted.
const LockWindow = 24 * time.Hour

// Phase is the derived lifecycle state of a booking at a given instant.
type Phase string

const (
	PhaseScheduled       Phase = "scheduled"
	PhaseLocked          Phase = "locked"
	PhaseCompleted       Phase = "completed"
	PhaseExpired         Phase = "expired"
	PhaseClientCancelled Phase = "client_cancelled"
	PhaseAgentCancelled  Phase = "agent_cancelled"
)

// Terminal reports whether a booking in this phase can never transition again.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseExpired, PhaseClientCancelled, PhaseAgentCancelled:
		return true
	}
	return false
}

// CancelActor identifies which party requested a cancellation.
type CancelActor string

const (
	CancelActorNone   CancelActor = ""
	CancelActorClient CancelActor = "client"
	CancelActorAgent  CancelActor = "agent"
)

// FeeBucket records which ledger bucket currently holds the booking's fee.
// Unlike the phase this is a real stored fact — the location of money — and
// it is advanced by the settlement engine as transitions are observed.
type FeeBucket string

const (
	FeeBucketNone      FeeBucket = ""
	FeeBucketPending   FeeBucket = "pending"
	FeeBucketLocked    FeeBucket = "locked"
	FeeBucketCertified FeeBucket = "certified"
)

// Booking is the redemption-code aggregate. CodeUsed and CancelledBy are the
// only business facts mutated after creation; FeeBucket tracks the fee's
// ledger placement. Bookings are never deleted.
type Booking struct {
	ID           domain.BookingID
	Code         string
	ClientRef    domain.ClientRef
	AgentRef     domain.AgentRef
	PropertyRef  domain.PropertyRef
	InspectionAt time.Time
	Fee          domain.Money
	FeeFree      bool
	CodeUsed     bool
	CancelledBy  CancelActor
	FeeBucket    FeeBucket
	CreatedAt    time.Time
}

// PhaseAt derives the booking phase at the given instant. Precedence matters:
// a cancellation or completion recorded before expiry always wins, even when
// evaluated after the inspection time has passed.
func (b *Booking) PhaseAt(now time.Time) Phase {
	switch b.CancelledBy {
	case CancelActorClient:
		return PhaseClientCancelled
	case CancelActorAgent:
		return PhaseAgentCancelled
	}
	if b.CodeUsed {
		return PhaseCompleted
	}
	until := b.InspectionAt.Sub(now)
	if until > 0 && until <= LockWindow {
		return PhaseLocked
	}
	if b.InspectionAt.Before(now) {
		return PhaseExpired
	}
	return PhaseScheduled
}

// Active reports whether the booking still occupies the client+property slot
// (Scheduled or Locked at the given instant).
func (b *Booking) Active(now time.Time) bool {
	p := b.PhaseAt(now)
	return p == PhaseScheduled || p == PhaseLocked
}

// Claimable decides whether the redemption code may be consumed at the given
// instant. Stores call this under their own lock so the check and the CodeUsed
// flip are a single atomic step. The error names the precise fact so callers
// can surface AlreadyUsed / Cancelled / Expired distinctly.
func (b *Booking) Claimable(now time.Time) error {
	if b.CodeUsed {
		return sentinel.ErrAlreadyUsed
	}
	if b.CancelledBy != CancelActorNone {
		return sentinel.ErrInvalidState
	}
	if b.PhaseAt(now) == PhaseExpired {
		return sentinel.ErrExpired
	}
	return nil
}

// Cancellable decides whether the given actor may cancel at the given instant.
// A client is blocked inside the lock window; an agent may cancel any
// non-terminal booking. Terminal phases are never cancellable.
func (b *Booking) Cancellable(by CancelActor, now time.Time) error {
	phase := b.PhaseAt(now)
	if phase.Terminal() {
		return sentinel.ErrInvalidState
	}
	if by == CancelActorClient && phase == PhaseLocked {
		return sentinel.ErrConflict
	}
	return nil
}
