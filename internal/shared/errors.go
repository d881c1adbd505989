package shared

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ValidationError collects every violated condition for one action. User-facing
// forms get the whole list, not just the first failure.
type ValidationError struct {
	Violations []string
}

// NewValidationError builds a ValidationError from one or more violations.
func NewValidationError(violations ...string) *ValidationError {
	return &ValidationError{Violations: violations}
}

// Add appends a violation.
func (e *ValidationError) Add(violation string) {
	e.Violations = append(e.Violations, violation)
}

// HasViolations reports whether any condition failed.
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, "; ")
}

// StateError indicates an action attempted from an invalid lifecycle state.
type StateError struct {
	Msg string
}

// NewStateError builds a StateError.
func NewStateError(msg string) *StateError {
	return &StateError{Msg: msg}
}

func (e *StateError) Error() string {
	return e.Msg
}

// IntegrityError indicates a blocked deletion of a referenced entity.
type IntegrityError struct {
	Msg string
}

// NewIntegrityError builds an IntegrityError.
func NewIntegrityError(msg string) *IntegrityError {
	return &IntegrityError{Msg: msg}
}

func (e *IntegrityError) Error() string {
	return e.Msg
}

// TransientError wraps persistence or network failures that are safe to retry
// with the identical operation. Retries are always user-initiated.
type TransientError struct {
	Err error
}

// NewTransientError wraps err as transient.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// UserSafeMessage returns an error string suitable for end users. Internal
// errors collapse to a generic message.
func UserSafeMessage(err error) string {
	var ve *ValidationError
	var se *StateError
	var ie *IntegrityError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &se):
		return se.Error()
	case errors.As(err, &ie):
		return ie.Error()
	case errors.Is(err, ErrNotFound):
		return "not found"
	default:
		return "something went wrong, please try again"
	}
}
