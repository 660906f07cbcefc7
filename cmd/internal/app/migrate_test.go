package app

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

// Opt-in: requires WARDROBE_DATABASE_URL. Applies the embedded migrations twice
// and checks the tables exist.
func TestMigrate_Integration(t *testing.T) {
	url := strings.TrimSpace(os.Getenv("WARDROBE_DATABASE_URL"))
	if url == "" {
		t.Skip("WARDROBE_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewDBPool(ctx, Config{DatabaseURL: url, DBMaxConns: 2})
	if err != nil {
		if os.Getenv("CI") == "" {
			t.Skipf("postgres unreachable: %v", err)
		}
		t.Fatalf("NewDBPool: %v", err)
	}
	defer pool.Close()

	for i := 0; i < 2; i++ {
		if err := Migrate(ctx, pool, discardLogger()); err != nil {
			t.Fatalf("Migrate (run %d): %v", i+1, err)
		}
	}

	for _, table := range []string{"wardrobe.accounts", "wardrobe.scores", "wardrobe.account_items"} {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil {
			t.Fatalf("to_regclass(%s): %v", table, err)
		}
		if !exists {
			t.Fatalf("table %s missing after migrate", table)
		}
	}
}
