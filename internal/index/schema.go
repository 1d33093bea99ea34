// Package index provides SQLite-backed storage of harvest run reports:
// per-batch outcomes and quarantine events. It deliberately stores no
// record payloads or version histories.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS batches (
	name            TEXT PRIMARY KEY,
	output_path     TEXT NOT NULL DEFAULT '',
	output_checksum TEXT NOT NULL DEFAULT '',
	written         INTEGER NOT NULL DEFAULT 0,
	deleted         INTEGER NOT NULL DEFAULT 0,
	quarantined     INTEGER NOT NULL DEFAULT 0,
	completed_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS quarantine_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	batch       TEXT NOT NULL DEFAULT '',
	stored_path TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quarantine_batch ON quarantine_events(batch);
`

// DB wraps a sql.DB with run-report operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
