package throttle

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is returned while a login key is over budget.
	ErrRateLimited = errors.New("too many login attempts")
	// ErrUnavailable wraps Redis failures.
	ErrUnavailable = errors.New("login throttle unavailable")
)

// RateLimitError carries the remaining window for a Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited.Error(), e.RetryAfter)
}

func (e RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfter extracts the wait hint from err, or 0.
func RetryAfter(err error) time.Duration {
	var rl RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
