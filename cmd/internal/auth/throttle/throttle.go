// Package throttle limits failed logins with Redis fixed-window counters.
//
// Keys:
//   - wl:<username>  failures per normalized username
//   - wli:<ip>       failures per client IP
//
// The first failure in a window sets the TTL; a success clears the username key.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wardrobe/cmd/identity"
)

// Limiter guards the login flow.
type Limiter interface {
	Check(ctx context.Context, username, ip string) error
	RecordFailure(ctx context.Context, username, ip string) error
	Reset(ctx context.Context, username string) error
}

// Config tunes the Redis limiter.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultConfig allows ten failures per fifteen minutes.
func DefaultConfig() Config {
	return Config{MaxAttempts: 10, Window: 15 * time.Minute}
}

// Redis is a Limiter backed by go-redis.
type Redis struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedis returns a limiter over client. Non-positive config values fall back to DefaultConfig.
func NewRedis(client redis.UniversalClient, cfg Config) *Redis {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &Redis{redis: client, config: cfg}
}

// Check fails with a RateLimitError when either key has used up its budget.
func (l *Redis) Check(ctx context.Context, username, ip string) error {
	for _, key := range keys(username, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if count >= int64(l.config.MaxAttempts) {
			return RateLimitError{RetryAfter: l.remaining(ctx, key)}
		}
	}
	return nil
}

// RecordFailure counts one failed attempt against both keys.
func (l *Redis) RecordFailure(ctx context.Context, username, ip string) error {
	for _, key := range keys(username, ip) {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if count == 1 {
			if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
	}
	return nil
}

// Reset clears the username counter after a successful login.
// The IP counter is left to expire on its own.
func (l *Redis) Reset(ctx context.Context, username string) error {
	if err := l.redis.Del(ctx, userKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *Redis) remaining(ctx context.Context, key string) time.Duration {
	ttl, err := l.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return l.config.Window
	}
	return ttl
}

func keys(username, ip string) []string {
	out := []string{userKey(username)}
	if ip != "" {
		out = append(out, "wli:"+ip)
	}
	return out
}

func userKey(username string) string {
	return "wl:" + identity.NormalizeUsername(username)
}

// Noop never limits. It is used when no Redis URL is configured.
type Noop struct{}

func (Noop) Check(context.Context, string, string) error         { return nil }
func (Noop) RecordFailure(context.Context, string, string) error { return nil }
func (Noop) Reset(context.Context, string) error                 { return nil }

var (
	_ Limiter = (*Redis)(nil)
	_ Limiter = Noop{}
)
