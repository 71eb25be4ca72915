package handler

import (
	"time"

	"inspekta/internal/booking/models"
	"inspekta/internal/ledger"
)

// MoneyResponse is the wire form of a fixed-point amount.
type MoneyResponse struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// BookingResponse is the HTTP shape of a booking. Phase is derived at
// response time; it is never stored.
type BookingResponse struct {
	ID           string        `json:"id"`
	Code         string        `json:"code"`
	ClientRef    string        `json:"client_ref"`
	AgentRef     string        `json:"agent_ref"`
	PropertyRef  string        `json:"property_ref"`
	InspectionAt time.Time     `json:"inspection_at"`
	Phase        string        `json:"phase"`
	Fee          MoneyResponse `json:"fee"`
	FeeFree      bool          `json:"fee_free"`
	FeeBucket    string        `json:"fee_bucket,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// FromBooking converts a domain booking to its HTTP response at now.
func FromBooking(b *models.Booking, now time.Time) *BookingResponse {
	return &BookingResponse{
		ID:           b.ID.String(),
		Code:         b.Code,
		ClientRef:    string(b.ClientRef),
		AgentRef:     string(b.AgentRef),
		PropertyRef:  string(b.PropertyRef),
		InspectionAt: b.InspectionAt,
		Phase:        string(b.PhaseAt(now)),
		Fee:          MoneyResponse{Amount: b.Fee.Amount, Currency: b.Fee.Currency},
		FeeFree:      b.FeeFree,
		FeeBucket:    string(b.FeeBucket),
		CreatedAt:    b.CreatedAt,
	}
}

// LedgerResponse is the HTTP shape of an agent's four-bucket balances.
type LedgerResponse struct {
	Pending      MoneyResponse `json:"pending"`
	Locked       MoneyResponse `json:"locked"`
	Certified    MoneyResponse `json:"certified"`
	Withdrawable MoneyResponse `json:"withdrawable"`
}

// FromBalances converts ledger balances to their HTTP response.
func FromBalances(b ledger.Balances) *LedgerResponse {
	return &LedgerResponse{
		Pending:      MoneyResponse{Amount: b.Pending.Amount, Currency: b.Pending.Currency},
		Locked:       MoneyResponse{Amount: b.Locked.Amount, Currency: b.Locked.Currency},
		Certified:    MoneyResponse{Amount: b.Certified.Amount, Currency: b.Certified.Currency},
		Withdrawable: MoneyResponse{Amount: b.Withdrawable.Amount, Currency: b.Withdrawable.Currency},
	}
}

// PassStatusResponse is the HTTP shape of a client's credit pass standing.
type PassStatusResponse struct {
	Remaining int       `json:"remaining"`
	ExpiresAt time.Time `json:"expires_at"`
}
