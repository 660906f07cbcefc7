package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func mustManager(t *testing.T, clock *fakeClock, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(testSecret, ttl, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := mustManager(t, clock, time.Hour)

	for _, sub := range []int64{1, 42, 1 << 40} {
		raw, err := m.Issue(sub)
		if err != nil {
			t.Fatalf("Issue(%d) error: %v", sub, err)
		}
		claims, err := m.Verify(raw)
		if err != nil {
			t.Fatalf("Verify error: %v", err)
		}
		if claims.Subject != sub {
			t.Fatalf("subject = %d, want %d", claims.Subject, sub)
		}
		if !claims.IssuedAt.Equal(clock.t) || !claims.ExpiresAt.Equal(clock.t.Add(time.Hour)) {
			t.Fatalf("unexpected window: %+v", claims)
		}
	}
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	iat := time.Unix(1_700_000_000, 0)
	ttl := 2 * time.Hour
	clock := &fakeClock{t: iat}
	m := mustManager(t, clock, ttl)

	raw, err := m.Issue(7)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	clock.t = iat.Add(ttl - time.Second)
	if _, err := m.Verify(raw); err != nil {
		t.Fatalf("expected valid at iat+T-1, got %v", err)
	}

	clock.t = iat.Add(ttl)
	if _, err := m.Verify(raw); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired at iat+T, got %v", err)
	}
}

func TestVerify_BeforeIssuedAt(t *testing.T) {
	iat := time.Unix(1_700_000_000, 0)
	clock := &fakeClock{t: iat}
	m := mustManager(t, clock, time.Hour)

	raw, err := m.Issue(7)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	clock.t = iat.Add(-time.Second)
	if _, err := m.Verify(raw); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed before iat, got %v", err)
	}
}

func TestVerify_Rejects(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := mustManager(t, clock, time.Hour)

	good, err := m.Issue(9)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	other, err := NewManager([]byte("another-secret-of-enough-length"), time.Hour, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	foreign, err := other.Issue(9)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	sign := func(method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	iat := clock.t.Unix()
	exp := clock.t.Add(time.Hour).Unix()

	cases := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "garbage", raw: "not.a.token"},
		{name: "tampered signature", raw: good[:len(good)-2] + "xx"},
		{name: "foreign secret", raw: foreign},
		{name: "hs512", raw: sign(jwt.SigningMethodHS512, testSecret, jwt.MapClaims{"sub": 9, "iat": iat, "exp": exp})},
		{name: "alg none", raw: sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": 9, "iat": iat, "exp": exp})},
		{name: "missing exp", raw: sign(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": 9, "iat": iat})},
		{name: "missing iat", raw: sign(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": 9, "exp": exp})},
		{name: "missing sub", raw: sign(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"iat": iat, "exp": exp})},
		{name: "string sub", raw: sign(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "9", "iat": iat, "exp": exp})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Verify(tc.raw)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestIssue_WireClaims(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := mustManager(t, clock, time.Hour)

	raw, err := m.Issue(5)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(parts))
	}
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		t.Fatalf("DecodeSegment error: %v", err)
	}
	want := `{"sub":5,"iat":1700000000,"exp":1700003600}`
	if string(payload) != want {
		t.Fatalf("payload = %s, want %s", payload, want)
	}
}

func TestNewManager_Validation(t *testing.T) {
	cases := []struct {
		name   string
		secret []byte
		ttl    time.Duration
		want   error
	}{
		{name: "missing secret", secret: nil, ttl: time.Hour, want: ErrSecretMissing},
		{name: "short secret", secret: []byte("short"), ttl: time.Hour, want: ErrSecretTooShort},
		{name: "zero ttl", secret: testSecret, ttl: 0, want: ErrInvalidTTL},
		{name: "negative ttl", secret: testSecret, ttl: -time.Hour, want: ErrInvalidTTL},
	}

	for _, tc := range cases {
		if _, err := NewManager(tc.secret, tc.ttl); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
