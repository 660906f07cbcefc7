package app

import (
	"strings"
	"testing"
	"time"

	"wardrobe/cmd/security/password"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WARDROBE_JWT_SECRET", "0123456789abcdef")
	t.Setenv("WARDROBE_JWT_EXPIRY_HOURS", "24")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:8000" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.TokenTTL() != 24*time.Hour {
		t.Fatalf("TokenTTL=%v", cfg.TokenTTL())
	}
	if !cfg.DBMigrate || cfg.DatabaseURL != "" {
		t.Fatalf("db defaults: migrate=%v url=%q", cfg.DBMigrate, cfg.DatabaseURL)
	}
	if cfg.LoginMaxAttempts != 10 || cfg.LoginWindow != 15*time.Minute {
		t.Fatalf("throttle defaults: %d %v", cfg.LoginMaxAttempts, cfg.LoginWindow)
	}
	if cfg.ScoresMaxLimit != 1000 || cfg.APIMaxBodyBytes != 1<<20 {
		t.Fatalf("api defaults: %d %d", cfg.ScoresMaxLimit, cfg.APIMaxBodyBytes)
	}
	if cfg.CostumeCatalog != "./costume.toml" || cfg.AchievementCatalog != "./achievement.toml" {
		t.Fatalf("catalog defaults: %q %q", cfg.CostumeCatalog, cfg.AchievementCatalog)
	}
	if cfg.LedgerMutationTimeout != 10*time.Second {
		t.Fatalf("LedgerMutationTimeout=%v", cfg.LedgerMutationTimeout)
	}
	if cfg.Password != password.DefaultConfig() {
		t.Fatalf("password defaults: %+v", cfg.Password)
	}
}

func TestLoadConfig_PasswordEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WARDROBE_PASSWORD_MIN_LEN", "12")
	t.Setenv("WARDROBE_ARGON2_ITERATIONS", "2")
	t.Setenv("WARDROBE_LEDGER_MUTATION_TIMEOUT", "3s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Password.Policy.MinLength != 12 || cfg.Password.Params.Iterations != 2 {
		t.Fatalf("password overrides not applied: %+v", cfg.Password)
	}
	if cfg.Password.Params.MemoryKiB != password.DefaultConfig().Params.MemoryKiB {
		t.Fatalf("unset argon2 memory lost its default: %d", cfg.Password.Params.MemoryKiB)
	}
	if cfg.LedgerMutationTimeout != 3*time.Second {
		t.Fatalf("LedgerMutationTimeout=%v", cfg.LedgerMutationTimeout)
	}
}

func TestLoadConfig_JoinsPasswordErrors(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WARDROBE_JWT_EXPIRY_HOURS", "0")
	t.Setenv("WARDROBE_ARGON2_ITERATIONS", "99")

	_, err := LoadConfig()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"WARDROBE_JWT_EXPIRY_HOURS", "WARDROBE_ARGON2_ITERATIONS out of range"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("err=%v missing %q", err, want)
		}
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WARDROBE_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("WARDROBE_CORS_ALLOWED_ORIGINS", "https://a.example.com,http://localhost:*")
	t.Setenv("WARDROBE_LOGIN_WINDOW", "1m")
	t.Setenv("WARDROBE_DB_MIGRATE", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" || cfg.LoginWindow != time.Minute || cfg.DBMigrate {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://localhost:*" {
		t.Fatalf("origins=%v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfig_Rejects(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing secret",
			env:  map[string]string{"WARDROBE_JWT_SECRET": "", "WARDROBE_JWT_EXPIRY_HOURS": "1"},
			want: "WARDROBE_JWT_SECRET",
		},
		{
			name: "short secret",
			env:  map[string]string{"WARDROBE_JWT_SECRET": "tooshort", "WARDROBE_JWT_EXPIRY_HOURS": "1"},
			want: "at least 16 bytes",
		},
		{
			name: "zero expiry",
			env:  map[string]string{"WARDROBE_JWT_SECRET": "0123456789abcdef", "WARDROBE_JWT_EXPIRY_HOURS": "0"},
			want: "must be positive",
		},
		{
			name: "expiry overflows duration",
			env:  map[string]string{"WARDROBE_JWT_SECRET": "0123456789abcdef", "WARDROBE_JWT_EXPIRY_HOURS": "9223372036854775807"},
			want: "must be at most 87600",
		},
		{
			name: "expiry just above cap",
			env:  map[string]string{"WARDROBE_JWT_SECRET": "0123456789abcdef", "WARDROBE_JWT_EXPIRY_HOURS": "87601"},
			want: "must be at most 87600",
		},
		{
			name: "negative mutation timeout",
			env: map[string]string{
				"WARDROBE_JWT_SECRET": "0123456789abcdef", "WARDROBE_JWT_EXPIRY_HOURS": "1",
				"WARDROBE_LEDGER_MUTATION_TIMEOUT": "-1s",
			},
			want: "WARDROBE_LEDGER_MUTATION_TIMEOUT",
		},
		{
			name: "password min above max",
			env: map[string]string{
				"WARDROBE_JWT_SECRET": "0123456789abcdef", "WARDROBE_JWT_EXPIRY_HOURS": "1",
				"WARDROBE_PASSWORD_MIN_LEN": "30", "WARDROBE_PASSWORD_MAX_LEN": "20",
			},
			want: "min_len(30) > max_len(20)",
		},
		{
			name: "expiry not a number",
			env:  map[string]string{"WARDROBE_JWT_SECRET": "0123456789abcdef", "WARDROBE_JWT_EXPIRY_HOURS": "day"},
			want: "JWTExpiryHours",
		},
		{
			name: "min conns above max",
			env: map[string]string{
				"WARDROBE_JWT_SECRET": "0123456789abcdef", "WARDROBE_JWT_EXPIRY_HOURS": "1",
				"WARDROBE_DB_MAX_CONNS": "2", "WARDROBE_DB_MIN_CONNS": "5",
			},
			want: "WARDROBE_DB_MIN_CONNS",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("LoadConfig err=%v want containing %q", err, tc.want)
			}
		})
	}
}
