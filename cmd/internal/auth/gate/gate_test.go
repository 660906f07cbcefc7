package gate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wardrobe/cmd/identity"
	"wardrobe/cmd/security/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestGate(t *testing.T) (*Gate, *token.Manager, *identity.MemoryStore) {
	t.Helper()
	mgr, err := token.NewManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	store := identity.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(mgr, store, log), mgr, store
}

func decodeData(t *testing.T, body []byte) any {
	t.Helper()
	var env struct {
		Data any `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("invalid envelope %q: %v", body, err)
	}
	return env.Data
}

func TestRequire(t *testing.T) {
	t.Parallel()

	g, mgr, store := newTestGate(t)
	acc, err := store.InsertAccount(context.Background(), identity.NewAccount{Username: "alice", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("InsertAccount: %v", err)
	}
	good, err := mgr.Issue(acc.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	ghost, err := mgr.Issue(acc.ID + 100)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, err := token.NewManager([]byte("another-secret-of-32-bytes-long!"), time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	forged, _ := other.Issue(acc.ID)

	expiredMgr, _ := token.NewManager(testSecret, time.Hour, token.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	expired, _ := expiredMgr.Issue(acc.ID)

	cases := []struct {
		name    string
		header  string
		value   string
		status  int
		message string
	}{
		{name: "missing", status: http.StatusUnauthorized, message: "header missing"},
		{name: "bearer", header: "Authorization", value: "Bearer " + good, status: http.StatusOK},
		{name: "bearer lowercase", header: "Authorization", value: "bearer " + good, status: http.StatusOK},
		{name: "raw token", header: "Authorization", value: good, status: http.StatusOK},
		{name: "british spelling", header: "Authorisation", value: good, status: http.StatusOK},
		{name: "wrong scheme", header: "Authorization", value: "Basic " + good, status: http.StatusUnauthorized, message: "header missing"},
		{name: "garbage", header: "Authorization", value: "Bearer not-a-token", status: http.StatusUnauthorized, message: "invalid token"},
		{name: "forged", header: "Authorization", value: "Bearer " + forged, status: http.StatusUnauthorized, message: "invalid token"},
		{name: "expired", header: "Authorization", value: "Bearer " + expired, status: http.StatusUnauthorized, message: "invalid token"},
		{name: "deleted subject", header: "Authorization", value: "Bearer " + ghost, status: http.StatusUnauthorized, message: "account no longer exists"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen int64
			h := g.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = AccountID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/student", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if tc.status == http.StatusOK {
				if seen != acc.ID {
					t.Fatalf("account id=%d want %d", seen, acc.ID)
				}
				return
			}
			if got := decodeData(t, rec.Body.Bytes()); got != tc.message {
				t.Fatalf("message=%v want %q", got, tc.message)
			}
		})
	}
}

type failingChecker struct{}

func (failingChecker) AccountExists(context.Context, int64) (bool, error) {
	return false, errors.New("pool closed")
}

func TestAuthenticate_StoreFailureIsInternal(t *testing.T) {
	t.Parallel()

	mgr, err := token.NewManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	g := New(mgr, failingChecker{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tok, _ := mgr.Issue(7)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	g.Require(http.NotFoundHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := decodeData(t, rec.Body.Bytes()); got != "internal error" {
		t.Fatalf("store error leaked: %v", got)
	}
}

func TestAuthenticate_WithoutChecker(t *testing.T) {
	t.Parallel()

	mgr, _ := token.NewManager(testSecret, time.Hour)
	g := New(mgr, nil, nil)
	tok, _ := mgr.Issue(42)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	id, err := g.Authenticate(req)
	if err != nil || id != 42 {
		t.Fatalf("Authenticate=%d err=%v", id, err)
	}
}

func TestAccountID_Absent(t *testing.T) {
	t.Parallel()

	if _, ok := AccountID(context.Background()); ok {
		t.Fatalf("expected no account id")
	}
	if id, ok := AccountID(WithAccountID(context.Background(), 3)); !ok || id != 3 {
		t.Fatalf("AccountID=%d ok=%v", id, ok)
	}
}
