// Package sqlite implements repository.Store on top of SQLite.
//
// The driver is modernc.org/sqlite, a pure Go port of SQLite, so the binary
// needs no C toolchain. Pass ":memory:" as the path for a throwaway database.
//
// CONNECTIONS:
// The pool is limited to a single connection. SQLite serialises writers anyway,
// PRAGMAs such as foreign_keys are per connection, and an in-memory database
// only exists on the connection that created it.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/sakif/campus-connect/internal/repository"

	// registers the "sqlite" driver with database/sql
	_ "modernc.org/sqlite"
)

var _ repository.Store = (*DB)(nil)

// DB is the SQLite-backed store. Its methods are split across one file per table.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath, configures it and runs migrations.
//
//	db, err := sqlite.New("data/campus.db")
//	if err != nil { ... }
//	defer db.Close()
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Off by default in SQLite. Registrations rely on it for ON DELETE CASCADE.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema.
//
// CREATE TABLE IF NOT EXISTS makes every statement safe to re-run, so migrate
// is called on every start. Columns added after the first release go through
// addColumnIfNotExists.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id                    TEXT PRIMARY KEY,
			title                 TEXT NOT NULL,
			description           TEXT NOT NULL DEFAULT '',
			date                  DATETIME NOT NULL,
			end_date              DATETIME,
			location              TEXT NOT NULL DEFAULT '',
			category              TEXT NOT NULL,
			organizer             TEXT NOT NULL DEFAULT '',
			image                 TEXT NOT NULL DEFAULT '',
			registration_deadline DATETIME,
			max_attendees         INTEGER CHECK (max_attendees IS NULL OR max_attendees > 0),
			current_attendees     INTEGER NOT NULL DEFAULT 0 CHECK (current_attendees >= 0),
			is_featured           BOOLEAN NOT NULL DEFAULT 0,
			created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (max_attendees IS NULL OR current_attendees <= max_attendees)
		);
		CREATE INDEX IF NOT EXISTS idx_events_date ON events(date);
	`)
	if err != nil {
		return fmt.Errorf("creating events table: %w", err)
	}

	// Deleting an event removes its registrations through ON DELETE CASCADE.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS registrations (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			event_id          TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			registration_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, event_id)
		);
		CREATE INDEX IF NOT EXISTS idx_registrations_user_id ON registrations(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating registrations table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id                 TEXT PRIMARY KEY,
			email              TEXT NOT NULL UNIQUE,
			password_hash      TEXT NOT NULL DEFAULT '',
			github_id          INTEGER,
			email_confirmed    BOOLEAN NOT NULL DEFAULT 0,
			confirmation_token TEXT NOT NULL DEFAULT '',
			created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_github_id ON accounts(github_id);
	`)
	if err != nil {
		return fmt.Errorf("creating accounts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			user_id      TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			role         TEXT NOT NULL DEFAULT 'student',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating profiles table: %w", err)
	}

	if err := db.addColumnIfNotExists("profiles", "avatar_url",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding avatar_url to profiles: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS announcements (
			id        TEXT PRIMARY KEY,
			title     TEXT NOT NULL,
			content   TEXT NOT NULL DEFAULT '',
			author    TEXT NOT NULL DEFAULT '',
			date      DATETIME NOT NULL,
			important BOOLEAN NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("creating announcements table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// The check makes ALTER TABLE migrations idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
