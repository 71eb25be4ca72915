package handler

import (
	"strings"
	"time"

	"inspekta/internal/booking/models"
	"inspekta/pkg/domain"
	dErrors "inspekta/pkg/domain-errors"
)

// CreateBookingRequest is the HTTP request body for POST /bookings.
type CreateBookingRequest struct {
	ClientRef    string    `json:"client_ref"`
	AgentRef     string    `json:"agent_ref"`
	PropertyRef  string    `json:"property_ref"`
	InspectionAt time.Time `json:"inspection_at"`
}

// Validate checks presence; reference content is opaque to the engine.
func (r *CreateBookingRequest) Validate() error {
	r.ClientRef = strings.TrimSpace(r.ClientRef)
	r.AgentRef = strings.TrimSpace(r.AgentRef)
	r.PropertyRef = strings.TrimSpace(r.PropertyRef)
	if r.ClientRef == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "client_ref is required")
	}
	if r.AgentRef == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "agent_ref is required")
	}
	if r.PropertyRef == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "property_ref is required")
	}
	if r.InspectionAt.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "inspection_at is required")
	}
	return nil
}

// VerifyCodeRequest is the HTTP request body for POST /codes/verify.
type VerifyCodeRequest struct {
	Code string `json:"code"`
}

func (r *VerifyCodeRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "code is required")
	}
	return nil
}

// CancelBookingRequest is the HTTP request body for POST /bookings/{id}/cancel.
type CancelBookingRequest struct {
	By string `json:"by"`
}

func (r *CancelBookingRequest) Validate() error {
	switch models.CancelActor(r.By) {
	case models.CancelActorClient, models.CancelActorAgent:
		return nil
	}
	return dErrors.New(dErrors.CodeInvalidInput, `by must be "client" or "agent"`)
}

// Actor returns the parsed cancellation actor. Call after Validate.
func (r *CancelBookingRequest) Actor() models.CancelActor {
	return models.CancelActor(r.By)
}

// IssuePassRequest is the HTTP request body for POST /clients/{ref}/pass.
// Zero fields fall back to the platform defaults.
type IssuePassRequest struct {
	TotalCredits int    `json:"total_credits"`
	ValidFor     string `json:"valid_for"`

	parsedValidity time.Duration
}

func (r *IssuePassRequest) Validate() error {
	if r.TotalCredits < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "total_credits must not be negative")
	}
	if r.ValidFor != "" {
		d, err := time.ParseDuration(r.ValidFor)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "valid_for must be a duration such as 720h")
		}
		if d <= 0 {
			return dErrors.New(dErrors.CodeInvalidInput, "valid_for must be positive")
		}
		r.parsedValidity = d
	}
	return nil
}

// Validity returns the parsed pass lifetime, zero when unset.
func (r *IssuePassRequest) Validity() time.Duration { return r.parsedValidity }

// PromoteRequest is the HTTP request body for POST /agents/{ref}/promote.
type PromoteRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (r *PromoteRequest) Validate() error {
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if strings.TrimSpace(r.Currency) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "currency is required")
	}
	return nil
}

// Money returns the parsed promotion amount. Call after Validate.
func (r *PromoteRequest) Money() domain.Money {
	return domain.Money{Amount: r.Amount, Currency: strings.ToLower(r.Currency)}
}
