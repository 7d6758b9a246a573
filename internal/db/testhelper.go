package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a migrated registry database in t.TempDir() and
// registers cleanup. It returns the database path alongside the write pool so
// tests can hand the same file to a provider.
func OpenTestSQLite(t *testing.T) (*sql.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "registry.sqlite")
	db, err := OpenSQLite(path, ModeWrite)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db, path
}
