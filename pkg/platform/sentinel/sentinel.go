package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique constraint hit (redemption code collision, duplicate pass)
// - ErrExpired: pass or booking has passed its expiry instant
// - ErrAlreadyUsed: redemption code already consumed
// - ErrInvalidState: entity in wrong state for the requested transition
// - ErrExhausted: credit pass has no credits remaining
// - ErrAtCapacity: credit restore would exceed the pass cap (non-fatal)
// - ErrInsufficientFunds: ledger bucket holds less than the requested move;
//   never expected when the booking state machine is respected
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrExpired           = errors.New("expired")
	ErrAlreadyUsed       = errors.New("already used")
	ErrInvalidState      = errors.New("invalid state")
	ErrExhausted         = errors.New("exhausted")
	ErrAtCapacity        = errors.New("at capacity")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
