// Package api exposes accounts, scores and entitlements over HTTP.
//
// Every response body is an envelope; see package envelope.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wardrobe/cmd/internal/auth/gate"
	"wardrobe/cmd/internal/auth/session"
	"wardrobe/cmd/internal/auth/throttle"
	"wardrobe/cmd/internal/envelope"
	"wardrobe/cmd/internal/fault"
	"wardrobe/cmd/internal/ledger"
)

// ThrottleRecorder observes rejected logins.
type ThrottleRecorder interface {
	Throttled()
}

// Handler wires HTTP endpoints to the session and ledger services.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions *session.Service
	ledger   *ledger.Service
	gate     *gate.Gate

	limiter   throttle.Limiter
	throttled ThrottleRecorder
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithLimiter installs a login throttle. The default never limits.
func WithLimiter(l throttle.Limiter) HandlerOption {
	return func(h *Handler) {
		if h == nil || l == nil {
			return
		}
		h.limiter = l
	}
}

// WithThrottleRecorder reports 429 responses to r.
func WithThrottleRecorder(r ThrottleRecorder) HandlerOption {
	return func(h *Handler) {
		if h == nil || r == nil {
			return
		}
		h.throttled = r
	}
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, led *ledger.Service, g *gate.Gate, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil || led == nil || g == nil {
		return nil, errors.New("api: nil dependency")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:      log,
		cfg:      cfg.withDefaults(),
		sessions: sessions,
		ledger:   led,
		gate:     g,
		limiter:  throttle.Noop{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	auth := func(fn http.HandlerFunc) http.Handler { return h.gate.Require(fn) }

	mux.HandleFunc("POST /api/v1/student/login", h.handleLogin)
	mux.HandleFunc("POST /api/v1/student/create", h.handleCreate)
	mux.Handle("GET /api/v1/student", auth(h.handleAccount))
	mux.Handle("DELETE /api/v1/student", auth(h.handleDelete))

	mux.Handle("GET /api/v1/student/costumes", auth(h.handleOwnedCostumes))
	mux.Handle("POST /api/v1/student/costumes", auth(h.handleUnlockCostume))
	mux.Handle("POST /api/v1/student/achievement", auth(h.handleUnlockAchievement))
	mux.Handle("POST /api/v1/student/{costume}", auth(h.handleSetCostume))

	mux.HandleFunc("GET /api/v1/scores", h.handleListScores)
	mux.Handle("POST /api/v1/scores", auth(h.handleSubmitScore))

	mux.HandleFunc("GET /api/v1/costume", h.handleCostumeCatalog)
	mux.HandleFunc("GET /api/v1/achievement", h.handleAchievementCatalog)
}

// ---- accounts ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		envelope.WriteError(w, fault.Validation("api.login", errInvalidBody))
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()
	ipKey := ""
	if ip != nil {
		ipKey = ip.String()
	}

	if err := h.limiter.Check(ctx, req.Username, ipKey); err != nil {
		switch {
		case errors.Is(err, throttle.ErrRateLimited):
			retryAfter := throttle.RetryAfter(err)
			h.auditLoginRateLimited(ctx, ip, ua, req.Username, retryAfter)
			if h.throttled != nil {
				h.throttled.Throttled()
			}
			writeRateLimited(w, retryAfter)
		default:
			h.log.Error("auth.login.throttle.fail", "err", err)
			envelope.Write(w, http.StatusServiceUnavailable, "please retry later")
		}
		return
	}

	issued, err := h.sessions.Login(ctx, req.Username, req.Password)
	if err != nil {
		if session.IsBadCredentials(err) {
			h.auditLoginFailed(ctx, ip, ua, req.Username, "bad_credentials")
			if lerr := h.limiter.RecordFailure(ctx, req.Username, ipKey); lerr != nil {
				h.log.Error("auth.login.throttle_record.fail", "err", lerr)
			}
		}
		envelope.WriteError(w, err)
		return
	}

	if err := h.limiter.Reset(ctx, req.Username); err != nil {
		h.log.Error("auth.login.throttle_reset.fail", "err", err)
	}
	h.auditLoginSuccess(ctx, issued.Account.ID, ip, ua)
	envelope.Write(w, http.StatusOK, issued.Token)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		envelope.WriteError(w, fault.Validation("api.create", errInvalidBody))
		return
	}

	issued, err := h.sessions.Register(r.Context(), session.Registration{
		Username: req.Username,
		Password: req.Password,
		Nickname: req.Nickname,
	})
	if err != nil {
		envelope.WriteError(w, err)
		return
	}

	h.auditRegistered(r.Context(), issued.Account.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	envelope.Write(w, http.StatusCreated, issued.Token)
}

func (h *Handler) handleAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := gate.AccountID(r.Context())
	a, err := h.ledger.Account(r.Context(), id)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	envelope.Write(w, http.StatusOK, toAccountResponse(a))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, _ := gate.AccountID(r.Context())
	a, err := h.ledger.DeleteAccount(r.Context(), id)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	h.auditAccountDeleted(r.Context(), id, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	envelope.Write(w, http.StatusOK, fmt.Sprintf("Account %s deleted", a.Username))
}

// ---- entitlements ----

func (h *Handler) handleOwnedCostumes(w http.ResponseWriter, r *http.Request) {
	id, _ := gate.AccountID(r.Context())
	items, err := h.ledger.OwnedCostumes(r.Context(), id)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	envelope.Write(w, http.StatusOK, items)
}

func (h *Handler) handleUnlockCostume(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		envelope.WriteError(w, fault.Validation("api.unlock_costume", errInvalidBody))
		return
	}
	id, _ := gate.AccountID(r.Context())
	a, err := h.ledger.UnlockCostume(r.Context(), id, strings.TrimSpace(req.Name))
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	envelope.Write(w, http.StatusOK, toAccountResponse(a))
}

func (h *Handler) handleUnlockAchievement(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		envelope.WriteError(w, fault.Validation("api.unlock_achievement", errInvalidBody))
		return
	}
	id, _ := gate.AccountID(r.Context())
	a, err := h.ledger.UnlockAchievement(r.Context(), id, strings.TrimSpace(req.Name))
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	envelope.Write(w, http.StatusOK, toAccountResponse(a))
}

func (h *Handler) handleSetCostume(w http.ResponseWriter, r *http.Request) {
	id, _ := gate.AccountID(r.Context())
	a, err := h.ledger.SetActiveItem(r.Context(), id, r.PathValue("costume"))
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	envelope.Write(w, http.StatusOK, toAccountResponse(a))
}

// ---- scores ----

func (h *Handler) handleListScores(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_scores"

	q := r.URL.Query()
	var f ledger.ScoreFilter

	if v := q.Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			envelope.WriteError(w, fault.Validation(op, errInvalidQuery("offset")))
			return
		}
		f.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			envelope.WriteError(w, fault.Validation(op, errInvalidQuery("limit")))
			return
		}
		f.Limit = &n
	}
	if v := q.Get("id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			envelope.WriteError(w, fault.Validation(op, errInvalidQuery("id")))
			return
		}
		f.AccountID = &n
	}
	f.Username = strings.TrimSpace(q.Get("usr"))

	scores, err := h.ledger.Scores(r.Context(), f)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	envelope.Write(w, http.StatusOK, toScoreResponses(scores))
}

func (h *Handler) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		envelope.WriteError(w, fault.Validation("api.submit_score", errInvalidBody))
		return
	}
	id, _ := gate.AccountID(r.Context())
	if _, err := h.ledger.SubmitScore(r.Context(), id, req.NumStars, req.Score); err != nil {
		envelope.WriteError(w, err)
		return
	}
	envelope.Write(w, http.StatusCreated, "")
}

// ---- catalog ----

func (h *Handler) handleCostumeCatalog(w http.ResponseWriter, _ *http.Request) {
	envelope.Write(w, http.StatusOK, h.ledger.Catalog().Costumes())
}

func (h *Handler) handleAchievementCatalog(w http.ResponseWriter, _ *http.Request) {
	envelope.Write(w, http.StatusOK, h.ledger.Catalog().Achievements())
}

// ---- helpers ----

func errInvalidQuery(name string) error {
	return fmt.Errorf("invalid query parameter %q", name)
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
	}
	envelope.Write(w, http.StatusTooManyRequests, throttle.ErrRateLimited.Error())
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
