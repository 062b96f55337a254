// Package catalog maintains the deduplicated, multi-provider directory of
// known MCP servers backed by a local SQLite database.
// Unlike the installer's JSON-backed installed-server index, catalog rows
// are remote-sourced and tombstoned rather than deleted outright: a server
// a provider stops listing is marked removed, not forgotten, so a later
// fetch can restore it without losing its history.
package catalog

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo
)

// DB wraps the catalog's SQLite connection and owns schema creation.
type DB struct {
	conn *sql.DB
}

// Open creates or opens the catalog database at path, creating its schema
// if missing. path may be ":memory:" for tests.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS catalog_entries (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			source           TEXT NOT NULL,
			endpoint_url     TEXT,
			packages         TEXT,
			description      TEXT,
			repository_url   TEXT,
			tags             TEXT,
			first_seen_at    DATETIME NOT NULL,
			last_seen_at     DATETIME NOT NULL,
			is_removed       INTEGER NOT NULL DEFAULT 0,
			removed_at       DATETIME,
			priority_score   INTEGER NOT NULL DEFAULT 0,
			popularity_score INTEGER NOT NULL DEFAULT 0,
			featured         INTEGER NOT NULL DEFAULT 0,
			official_tag     INTEGER NOT NULL DEFAULT 0,
			official_source  INTEGER NOT NULL DEFAULT 0,
			remote_capable   INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_entries_source ON catalog_entries(source)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_entries_removed ON catalog_entries(is_removed)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_entries_priority ON catalog_entries(priority_score DESC, name ASC)`,
		`CREATE TABLE IF NOT EXISTS provider_status (
			provider        TEXT PRIMARY KEY,
			last_attempt_at DATETIME,
			last_success_at DATETIME,
			last_error      TEXT,
			entry_count     INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS change_log (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			entry_id   TEXT NOT NULL,
			provider   TEXT NOT NULL,
			kind       TEXT NOT NULL,
			occurred_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_change_log_entry ON change_log(entry_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("create catalog schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
