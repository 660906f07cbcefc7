package password

import "errors"

// Policy errors are returned by Validate.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")
)

// Hashing errors. Both represent infrastructure faults, never a mismatch.
var (
	// ErrInvalidHash is returned by Verify for malformed or unsupported hash blobs.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrHashing wraps salt generation failures.
	ErrHashing = errors.New("password hashing failed")
)
