package db

import (
	"path/filepath"
	"testing"
)

func TestOpenDatabasePragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	conn, err := OpenDatabase(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected wal journal, got %q", mode)
	}
	var fk int
	if err := conn.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("foreign keys: %v", err)
	}
	if fk != 1 {
		t.Fatalf("expected foreign keys on, got %d", fk)
	}
	if conn.Stats().MaxOpenConnections != 1 {
		t.Fatalf("expected single connection pool, got %d", conn.Stats().MaxOpenConnections)
	}
}
