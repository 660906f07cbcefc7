// Package fault is the error taxonomy shared by the service layer and the HTTP boundary.
//
// Every service error carries one of four kinds. The kind decides the status code,
// and the public message decides what a caller is allowed to read.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrValidation   = errors.New("validation")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not_found")
	ErrInternal     = errors.New("internal")
)

const redacted = "internal error"

// Error is a typed operation error.
// Err is the cause; for non-internal kinds its text is the public message.
// Public, when set, overrides the message shown to callers.
type Error struct {
	Op     string
	Kind   error
	Err    error
	Public string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation reports a caller mistake: bad input, insufficient funds, duplicate username.
func Validation(op string, err error) error {
	return &Error{Op: op, Kind: ErrValidation, Err: err}
}

// Unauthorized reports a missing, invalid or stale credential.
func Unauthorized(op string, err error) error {
	return &Error{Op: op, Kind: ErrUnauthorized, Err: err}
}

// NotFound reports an absent entity.
func NotFound(op string, err error) error {
	return &Error{Op: op, Kind: ErrNotFound, Err: err}
}

// Internal wraps an infrastructure failure. The cause is logged, never shown.
func Internal(op string, err error) error {
	return &Error{Op: op, Kind: ErrInternal, Err: err}
}

// InternalPublic is Internal with a caller-visible message that names the failure class.
func InternalPublic(op string, err error, public string) error {
	return &Error{Op: op, Kind: ErrInternal, Err: err, Public: public}
}

// Status maps an error to its HTTP status code. Unclassified errors are 500.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text a caller may see for err.
func Message(err error) string {
	var fe *Error
	if !errors.As(err, &fe) {
		return redacted
	}
	if fe.Public != "" {
		return fe.Public
	}
	if errors.Is(fe.Kind, ErrInternal) || fe.Err == nil {
		return redacted
	}
	return fe.Err.Error()
}

// IsValidation reports whether err is of kind ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is of kind ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInternal reports whether err is internal, including unclassified errors.
func IsInternal(err error) bool { return err != nil && Status(err) == http.StatusInternalServerError }
