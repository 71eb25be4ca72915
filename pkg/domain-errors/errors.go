// Package domainerrors provides coded errors for the service and handler
// layers. Stores return sentinel errors (pkg/platform/sentinel) describing
// facts; services wrap them with a code here so transports can map them to
// responses without inspecting store internals.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and caller branching.
type Code string

const (
	// CodeInvalidInput marks validation failures rejected before any mutation.
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound marks lookups of entities that do not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks state conflicts: the request was well-formed but the
	// entity is in a state that forbids it (code already used, pass exhausted,
	// booking inside the lock window). Non-retriable until the state changes.
	CodeConflict Code = "conflict"
	// CodeUnauthorized marks missing or invalid identity claims.
	CodeUnauthorized Code = "unauthorized"
	// CodeInternal marks invariant violations and infrastructure failures.
	// Callers see only this generic code; the detailed cause is logged.
	CodeInternal Code = "internal"
)

// Error carries a code, a human-readable reason, and an optional cause so
// errors.Is can still reach the underlying sentinel.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not pass through this package.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the human-readable reason from err. Internal errors
// surface a generic reason; the detail stays in logs.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Code != CodeInternal {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to the HTTP status the transport layer writes.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
