package session

import "errors"

var (
	// ErrBadCredentials covers both an unknown username and a wrong password.
	ErrBadCredentials = errors.New("incorrect password or username")

	// ErrUsernameTaken is returned when the normalized username already exists.
	ErrUsernameTaken = errors.New("username taken")

	// ErrUsernameRequired is returned for an empty or whitespace-only username.
	ErrUsernameRequired = errors.New("username is required")

	// ErrConfig is returned by NewService for missing dependencies.
	ErrConfig = errors.New("invalid session config")
)
