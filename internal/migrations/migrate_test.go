package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Simplici0/pricedesk/internal/db"
)

func TestUpCreatesSchemaAndIsIdempotent(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	applied, err := Up(context.Background(), database.DB)
	if err != nil {
		t.Fatalf("first Up: %v", err)
	}
	if applied != 3 {
		t.Fatalf("applied %d migrations, want 3", applied)
	}

	applied, err = Up(context.Background(), database.DB)
	if err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if applied != 0 {
		t.Fatalf("second Up applied %d migrations, want 0", applied)
	}

	for _, table := range []string{"overhead_configs", "overhead_margins", "users", "currencies", "products", "direct_price_overrides"} {
		var count int
		if err := database.Get(&count, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table); err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("table %s missing", table)
		}
	}
}
