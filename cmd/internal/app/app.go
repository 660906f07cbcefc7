// Package app wires the wardrobe server runtime: config, logging, storage,
// login throttling, metrics and HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"wardrobe/cmd/identity"
	"wardrobe/cmd/internal/auth/api"
	"wardrobe/cmd/internal/auth/gate"
	"wardrobe/cmd/internal/auth/session"
	"wardrobe/cmd/internal/auth/throttle"
	"wardrobe/cmd/internal/catalog"
	"wardrobe/cmd/internal/ledger"
	"wardrobe/cmd/internal/metrics"
	"wardrobe/cmd/security/password"
	"wardrobe/cmd/security/token"
)

const shutdownTimeout = 10 * time.Second

// App is the wardrobe server runtime. It owns the listener, the DB pool and the Redis client.
type App struct {
	cfg Config
	log Logger

	store   identity.Store
	pool    *pgxpool.Pool
	redis   *redis.Client
	metrics *metrics.Metrics

	handler http.Handler
}

// New loads the catalog and secrets, opens storage and builds the HTTP handler.
// Any failure is returned before a listener exists.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	tokens, err := token.NewManager([]byte(cfg.JWTSecret), cfg.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}
	cat, err := catalog.Load(cfg.CostumeCatalog, cfg.AchievementCatalog)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	log.Info("catalog.loaded", "costumes", len(cat.Costumes()), "achievements", len(cat.Achievements()))

	a := &App{cfg: cfg, log: log, metrics: metrics.New()}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	limiter, err := a.openLimiter(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	handler, err := a.buildHandler(cfg.Password, tokens, cat, limiter)
	if err != nil {
		a.close()
		return nil, err
	}
	a.handler = handler
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.inmemory_store")
		a.store = identity.NewMemoryStore()
		return nil
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.cfg.DBMigrate {
		if err := Migrate(ctx, pool, a.log); err != nil {
			pool.Close()
			return err
		}
	}
	st, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return err
	}

	a.log.Info("db.enabled.postgres_store")
	a.pool = pool
	a.store = st
	return nil
}

func (a *App) openLimiter(ctx context.Context) (throttle.Limiter, error) {
	if a.cfg.RedisURL == "" {
		a.log.Info("throttle.disabled")
		return throttle.Noop{}, nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	a.redis = client
	a.log.Info("throttle.enabled", "max_attempts", a.cfg.LoginMaxAttempts, "window", a.cfg.LoginWindow.String())
	return throttle.NewRedis(client, throttle.Config{
		MaxAttempts: a.cfg.LoginMaxAttempts,
		Window:      a.cfg.LoginWindow,
	}), nil
}

func (a *App) buildHandler(hasher password.Config, tokens *token.Manager, cat *catalog.Catalog, limiter throttle.Limiter) (http.Handler, error) {
	led := ledger.New(a.store, cat, a.log,
		ledger.WithRecorder(a.metrics),
		ledger.WithMaxScoreLimit(a.cfg.ScoresMaxLimit),
		ledger.WithMutationTimeout(a.cfg.LedgerMutationTimeout),
	)

	sessions, err := session.NewService(a.store, hasher, tokens, a.log, session.WithRecorder(a.metrics))
	if err != nil {
		return nil, err
	}

	apiCfg := api.DefaultConfig()
	apiCfg.TrustProxy = a.cfg.TrustProxy
	if a.cfg.APIMaxBodyBytes > 0 {
		apiCfg.MaxBodyBytes = a.cfg.APIMaxBodyBytes
	}

	handler, err := api.NewHandler(a.log, apiCfg, sessions, led, gate.New(tokens, a.store, a.log),
		api.WithLimiter(limiter),
		api.WithThrottleRecorder(a.metrics),
	)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, routes{
		log:     a.log,
		cfg:     a.cfg,
		store:   a.store,
		dbReady: a.pool != nil,
		metrics: a.metrics.Handler(),
		api:     handler,
	})
	return newHandler(mux, a.log, a.cfg, a.metrics), nil
}

// Handler exposes the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts down
// gracefully and releases storage.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	defer a.close()

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"base_url", runtimeBaseURL(a.cfg.HTTPAddr),
		"db_enabled", a.pool != nil,
		"throttle_enabled", a.redis != nil,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", context.Cause(gctx).Error())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("server.stopped")
	return nil
}

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL turns a listen address into a URL a local client can dial.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
