// Package domain holds the identifier and money types shared across the
// engine. IDs we mint ourselves are typed UUIDs; references owned by external
// collaborators (identity, listings) are opaque typed strings validated only
// for presence.
package domain

import (
	"github.com/google/uuid"

	dErrors "inspekta/pkg/domain-errors"
)

// BookingID identifies a booking aggregate. Minted by the engine.
type BookingID uuid.UUID

// PassID identifies a credit pass. Minted by the engine.
type PassID uuid.UUID

// ClientRef is an opaque client identifier supplied by the identity provider.
type ClientRef string

// AgentRef is an opaque agent identifier supplied by the identity provider.
type AgentRef string

// PropertyRef is an opaque listing identifier owned by the listings service.
type PropertyRef string

// SubjectRef is the authenticated token subject. Depending on the caller's
// role it names a client or an agent.
type SubjectRef string

func (id BookingID) String() string { return uuid.UUID(id).String() }
func (id BookingID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id PassID) String() string { return uuid.UUID(id).String() }
func (id PassID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders IDs in canonical UUID form so JSON payloads carry
// strings, not byte arrays.
func (id BookingID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id PassID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func (id *BookingID) UnmarshalText(text []byte) error {
	parsed, err := ParseBookingID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PassID) UnmarshalText(text []byte) error {
	parsed, err := ParsePassID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewBookingID mints a fresh booking identifier.
func NewBookingID() BookingID { return BookingID(uuid.New()) }

// NewPassID mints a fresh pass identifier.
func NewPassID() PassID { return PassID(uuid.New()) }

// ParseBookingID validates and parses a booking ID at a trust boundary.
// IDs must be valid, non-nil UUIDs.
func ParseBookingID(s string) (BookingID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return BookingID{}, err
	}
	return BookingID(u), nil
}

// ParsePassID validates and parses a pass ID at a trust boundary.
func ParsePassID(s string) (PassID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return PassID{}, err
	}
	return PassID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}

// Validate rejects empty external references. The engine treats the content
// as opaque; only presence is checked.
func (r ClientRef) Validate() error {
	if r == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "client reference is required")
	}
	return nil
}

func (r AgentRef) Validate() error {
	if r == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "agent reference is required")
	}
	return nil
}

func (r PropertyRef) Validate() error {
	if r == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "property reference is required")
	}
	return nil
}
