package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to service errors).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
	// ErrDeleteIncomplete means scores were removed but the account row was not.
	// The enclosing transaction is rolled back; the error is still surfaced as its own kind.
	ErrDeleteIncomplete = errors.New("delete_incomplete")
)
