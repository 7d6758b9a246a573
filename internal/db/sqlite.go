// Package db opens the SQLite registry store and applies its migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// Connection modes for OpenSQLite.
const (
	ModeWrite = "write"
	ModeRead  = "read"
)

const defaultReadConns = 4

// OpenSQLite opens the registry database at path.
//
// ModeWrite uses a single connection with immediate transaction locking so
// concurrent registrations serialize instead of failing with SQLITE_BUSY.
// ModeRead allows a small pool for concurrent catalog lookups. Both modes use
// WAL journaling and a 5s busy timeout.
func OpenSQLite(path, mode string) (*sql.DB, error) {
	if mode != ModeWrite && mode != ModeRead {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(defaultReadConns)
		db.SetMaxIdleConns(defaultReadConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

func buildDSN(path, mode string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_synchronous", "NORMAL")
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
