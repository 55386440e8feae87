// Package sqlite stores accounts and the audit trail in a single SQLite
// file. It is the storage driver for single-node deployments and local
// development.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
)

// sqliteConstraintUnique is SQLITE_CONSTRAINT_UNIQUE.
const sqliteConstraintUnique = 2067

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id                   TEXT PRIMARY KEY,
		email                TEXT NOT NULL UNIQUE,
		name                 TEXT NOT NULL,
		role                 TEXT NOT NULL,
		avatar               TEXT NOT NULL DEFAULT '',
		password_hash        TEXT NOT NULL,
		onboarding_completed INTEGER NOT NULL DEFAULT 0,
		individual           TEXT,
		organization         TEXT,
		created_at           INTEGER NOT NULL,
		updated_at           INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS auth_events (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		kind         TEXT NOT NULL,
		user_id      TEXT NOT NULL DEFAULT '',
		email        TEXT NOT NULL DEFAULT '',
		detail       TEXT NOT NULL DEFAULT '',
		at           INTEGER NOT NULL,
		processed_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_auth_events_user ON auth_events (user_id, at)`,
}

// Open opens the database at path and applies the schema. Use ":memory:"
// for a throwaway database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate sqlite db: %w", err)
		}
	}
	return db, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqliteConstraintUnique
}
