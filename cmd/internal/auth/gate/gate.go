// Package gate guards authenticated routes.
//
// Each request moves through three states in one call: no credential, a credential
// whose token must verify, and a verified token whose subject must still exist.
// The gate only reads; it never mutates the store.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"wardrobe/cmd/internal/envelope"
	"wardrobe/cmd/internal/fault"
	"wardrobe/cmd/security/token"
)

// Rejection causes. Their text is returned to the caller.
var (
	ErrHeaderMissing = errors.New("header missing")
	ErrInvalidToken  = errors.New("invalid token")
	ErrAccountGone   = errors.New("account no longer exists")
)

// Verifier checks a raw token and returns its claims.
type Verifier interface {
	Verify(raw string) (token.Claims, error)
}

// AccountChecker confirms the token subject still exists.
type AccountChecker interface {
	AccountExists(ctx context.Context, id int64) (bool, error)
}

// Gate authenticates requests by bearer token.
type Gate struct {
	tokens   Verifier
	accounts AccountChecker
	log      *slog.Logger
}

// New builds a Gate. A nil accounts checker skips the existence check.
func New(tokens Verifier, accounts AccountChecker, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{tokens: tokens, accounts: accounts, log: log}
}

// Authenticate returns the account id carried by the request's token.
func (g *Gate) Authenticate(r *http.Request) (int64, error) {
	const op = "gate.Authenticate"

	raw := credential(r)
	if raw == "" {
		return 0, fault.Unauthorized(op, ErrHeaderMissing)
	}

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		g.log.Debug("auth.gate.token_rejected", "err", err)
		return 0, fault.Unauthorized(op, ErrInvalidToken)
	}

	if g.accounts == nil {
		return claims.Subject, nil
	}
	ok, err := g.accounts.AccountExists(r.Context(), claims.Subject)
	if err != nil {
		g.log.Error("auth.gate.lookup.fail", "account_id", claims.Subject, "err", err)
		return 0, fault.Internal(op, err)
	}
	if !ok {
		return 0, fault.Unauthorized(op, ErrAccountGone)
	}
	return claims.Subject, nil
}

// Require rejects unauthenticated requests with an error envelope and
// otherwise stores the account id in the request context.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Authenticate(r)
		if err != nil {
			envelope.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), id)))
	})
}

type ctxKey struct{}

// WithAccountID returns a context carrying an authenticated account id.
func WithAccountID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// AccountID returns the authenticated account id placed by Require.
func AccountID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}

// credential accepts "Authorization: Bearer <t>", a bare token in Authorization,
// and the "Authorisation" spelling older clients send.
func credential(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		raw = strings.TrimSpace(r.Header.Get("Authorisation"))
	}
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	if len(parts) == 2 {
		return ""
	}
	return raw
}
