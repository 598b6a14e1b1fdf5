package db

import (
	"path/filepath"
	"testing"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "pragmas.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	var fk int
	if err := database.Get(&fk, `PRAGMA foreign_keys`); err != nil {
		t.Fatalf("read foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	var timeout int
	if err := database.Get(&timeout, `PRAGMA busy_timeout`); err != nil {
		t.Fatalf("read busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Fatalf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestDSN(t *testing.T) {
	got := dsn("./x.db")
	want := "./x.db?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}

	if got := dsn("file:x.db?cache=shared"); got[:len("file:x.db?cache=shared&")] != "file:x.db?cache=shared&" {
		t.Fatalf("dsn with query = %q", got)
	}
}
