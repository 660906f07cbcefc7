package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"wardrobe/cmd/internal/auth/api"
	"wardrobe/cmd/internal/envelope"
	"wardrobe/cmd/internal/fault"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

var errNotReady = errors.New("store not ready")

type routes struct {
	log     Logger
	cfg     Config
	store   Pinger
	dbReady bool
	metrics http.Handler
	api     *api.Handler
}

func registerHTTP(mux *http.ServeMux, rt routes) {
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		envelope.Write(w, http.StatusOK, "Online")
	})

	mux.HandleFunc("GET /api/ready", func(w http.ResponseWriter, r *http.Request) {
		if rt.cfg.ReadinessRequireDB && !rt.dbReady {
			envelope.Write(w, http.StatusServiceUnavailable, "database not configured")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.store.Ping(ctx); err != nil {
			rt.log.Warn("ready.store.not_ready", "err", err)
			envelope.Write(w, http.StatusServiceUnavailable, errNotReady.Error())
			return
		}
		envelope.Write(w, http.StatusOK, "Ready")
	})

	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics)
	}

	if rt.api != nil {
		rt.api.Register(mux)
	}
}

// newHandler builds the full middleware chain around mux.
// Request logging sits directly on the mux so the matched pattern is observable.
func newHandler(mux *http.ServeMux, log Logger, cfg Config, obs RequestObserver) http.Handler {
	var h http.Handler = WithRequestLogging(mux, log, obs)
	h = recoverPanics(h, log)
	h = WithCORS(h, cfg, log)
	return WithSecurityHeaders(h)
}

// recoverPanics turns a handler panic into a 500 envelope.
func recoverPanics(next http.Handler, log Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.Error("http.panic", "path", r.URL.Path, "panic", v)
				envelope.WriteError(w, fault.Internal("http", errors.New("panic")))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
