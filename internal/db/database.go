// Package db persists facilities and reservations in sqlite and owns the
// authoritative write path: every reservation write re-runs the booking
// validator inside its transaction before committing.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the stablebook backend.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	// Reservation writes must be serialized; a single connection keeps the
	// re-validate-then-commit path free of SQLITE_BUSY surprises.
	db.SetMaxOpenConns(1)
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS facilities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stable_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			timezone TEXT NOT NULL DEFAULT '',
			availability_schedule TEXT NOT NULL DEFAULT '{}',
			planning_window_opens_days INTEGER NOT NULL DEFAULT 30,
			planning_window_closes_days INTEGER NOT NULL DEFAULT 0,
			max_horses_per_reservation INTEGER NOT NULL DEFAULT 1,
			min_slot_duration_minutes INTEGER NOT NULL DEFAULT 30,
			max_duration_minutes INTEGER NOT NULL DEFAULT 240,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			facility_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			horse_ids TEXT NOT NULL DEFAULT '[]',
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (facility_id) REFERENCES facilities(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_facilities_stable ON facilities(stable_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_times ON reservations(facility_id, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
