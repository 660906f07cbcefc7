package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretBytes is the smallest signing secret NewManager accepts.
const MinSecretBytes = 16

// Claims is the verified content of a token.
type Claims struct {
	Subject   int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// wireClaims keeps sub numeric on the wire.
type wireClaims struct {
	Sub       *int64           `json:"sub"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
}

func (c wireClaims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c wireClaims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c wireClaims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c wireClaims) GetIssuer() (string, error)                   { return "", nil }
func (c wireClaims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

func (c wireClaims) GetSubject() (string, error) {
	if c.Sub == nil {
		return "", nil
	}
	return strconv.FormatInt(*c.Sub, 10), nil
}

// Manager signs and verifies tokens with a process-wide secret.
// It is safe for concurrent use.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock used for iat and for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager validates the secret and ttl and returns a ready Manager.
func NewManager(secret []byte, ttl time.Duration, opts ...Option) (*Manager, error) {
	switch {
	case len(secret) == 0:
		return nil, ErrSecretMissing
	case len(secret) < MinSecretBytes:
		return nil, ErrSecretTooShort
	case ttl <= 0:
		return nil, ErrInvalidTTL
	}

	m := &Manager{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	return m, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs {sub: subject, iat: now, exp: now+ttl} at second granularity.
func (m *Manager) Issue(subject int64) (string, error) {
	iat := m.now().UTC().Truncate(time.Second)
	sub := subject

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, wireClaims{
		Sub:       &sub,
		IssuedAt:  jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(iat.Add(m.ttl)),
	})

	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and the iat <= now < exp window.
// It does not check that the subject still exists.
func (m *Manager) Verify(raw string) (Claims, error) {
	var wc wireClaims
	_, err := m.parser.ParseWithClaims(raw, &wc, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if wc.Sub == nil || wc.IssuedAt == nil {
		return Claims{}, ErrMalformed
	}

	return Claims{
		Subject:   *wc.Sub,
		IssuedAt:  wc.IssuedAt.Time,
		ExpiresAt: wc.ExpiresAt.Time,
	}, nil
}
