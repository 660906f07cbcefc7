package token

import "errors"

// Verification failures.
var (
	ErrMalformed = errors.New("token malformed")
	ErrExpired   = errors.New("token expired")
)

// Construction failures.
var (
	ErrSecretMissing  = errors.New("token signing secret missing")
	ErrSecretTooShort = errors.New("token signing secret too short")
	ErrInvalidTTL     = errors.New("token ttl must be positive")
)
