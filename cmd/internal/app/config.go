package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"wardrobe/cmd/security/password"
)

const (
	minJWTSecretBytes = 16
	// Ten years. Keeps TokenTTL and the exp claim far from int64 overflow.
	maxJWTExpiryHours = 24 * 365 * 10
)

// Config contains all runtime configuration loaded from WARDROBE_* environment variables.
type Config struct {
	HTTPAddr string `env:"WARDROBE_HTTP_ADDR" envDefault:"0.0.0.0:8000"`
	LogLevel string `env:"WARDROBE_LOG_LEVEL" envDefault:"info"`

	ReadHeaderTimeout time.Duration `env:"WARDROBE_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"WARDROBE_HTTP_READ_TIMEOUT"        envDefault:"15s"`
	WriteTimeout      time.Duration `env:"WARDROBE_HTTP_WRITE_TIMEOUT"       envDefault:"15s"`
	IdleTimeout       time.Duration `env:"WARDROBE_HTTP_IDLE_TIMEOUT"        envDefault:"60s"`
	MaxHeaderBytes    int           `env:"WARDROBE_HTTP_MAX_HEADER_BYTES"    envDefault:"1048576"`

	// Empty DatabaseURL selects the in-memory store.
	DatabaseURL string `env:"WARDROBE_DATABASE_URL"`
	DBMaxConns  int32  `env:"WARDROBE_DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"WARDROBE_DB_MIN_CONNS" envDefault:"0"`
	DBMigrate   bool   `env:"WARDROBE_DB_MIGRATE"   envDefault:"true"`

	// If true, /api/ready returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool `env:"WARDROBE_READINESS_REQUIRE_DB" envDefault:"false"`

	// Empty RedisURL disables login throttling.
	RedisURL         string        `env:"WARDROBE_REDIS_URL"`
	LoginMaxAttempts int           `env:"WARDROBE_LOGIN_MAX_ATTEMPTS" envDefault:"10"`
	LoginWindow      time.Duration `env:"WARDROBE_LOGIN_WINDOW"       envDefault:"15m"`

	CORSAllowedOrigins   []string `env:"WARDROBE_CORS_ALLOWED_ORIGINS"   envSeparator:","`
	CORSAllowCredentials bool     `env:"WARDROBE_CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	CORSMaxAgeSeconds    int      `env:"WARDROBE_CORS_MAX_AGE_SECONDS"   envDefault:"600"`

	TrustProxy      bool  `env:"WARDROBE_TRUST_PROXY"        envDefault:"false"`
	APIMaxBodyBytes int64 `env:"WARDROBE_API_MAX_BODY_BYTES" envDefault:"1048576"`
	ScoresMaxLimit  int64 `env:"WARDROBE_SCORES_MAX_LIMIT"   envDefault:"1000"`

	// Grants and score writes run detached from the request, bounded by this timeout.
	LedgerMutationTimeout time.Duration `env:"WARDROBE_LEDGER_MUTATION_TIMEOUT" envDefault:"10s"`

	JWTSecret      string `env:"WARDROBE_JWT_SECRET,required,notEmpty,unset"`
	JWTExpiryHours int    `env:"WARDROBE_JWT_EXPIRY_HOURS,required"`

	CostumeCatalog     string `env:"WARDROBE_COSTUME_CATALOG"     envDefault:"./costume.toml"`
	AchievementCatalog string `env:"WARDROBE_ACHIEVEMENT_CATALOG" envDefault:"./achievement.toml"`

	// WARDROBE_PASSWORD_* and WARDROBE_ARGON2_*, parsed over password.DefaultConfig.
	Password password.Config
}

// TokenTTL is the configured token lifetime.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiryHours) * time.Hour
}

// LoadConfig parses Config from the environment and validates it.
func LoadConfig() (Config, error) {
	cfg := Config{Password: password.DefaultConfig()}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values env tags cannot express.
func (c Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < minJWTSecretBytes {
		errs = append(errs, fmt.Errorf("WARDROBE_JWT_SECRET must be at least %d bytes", minJWTSecretBytes))
	}
	if c.JWTExpiryHours <= 0 {
		errs = append(errs, errors.New("WARDROBE_JWT_EXPIRY_HOURS must be positive"))
	}
	if c.JWTExpiryHours > maxJWTExpiryHours {
		errs = append(errs, fmt.Errorf("WARDROBE_JWT_EXPIRY_HOURS must be at most %d", maxJWTExpiryHours))
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("WARDROBE_HTTP_ADDR is empty"))
	}
	if c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns {
		errs = append(errs, errors.New("WARDROBE_DB_MIN_CONNS exceeds WARDROBE_DB_MAX_CONNS"))
	}
	if c.DBMinConns < 0 {
		errs = append(errs, errors.New("WARDROBE_DB_MIN_CONNS is negative"))
	}
	if c.ScoresMaxLimit <= 0 {
		errs = append(errs, errors.New("WARDROBE_SCORES_MAX_LIMIT must be positive"))
	}
	if strings.TrimSpace(c.CostumeCatalog) == "" || strings.TrimSpace(c.AchievementCatalog) == "" {
		errs = append(errs, errors.New("catalog paths must not be empty"))
	}
	if c.LedgerMutationTimeout < 0 {
		errs = append(errs, errors.New("WARDROBE_LEDGER_MUTATION_TIMEOUT is negative"))
	}
	if err := c.Password.Check(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
