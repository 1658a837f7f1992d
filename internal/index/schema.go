// Package index provides the SQLite-backed record corpus with optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// captured_at holds Unix nanoseconds so ordering is numeric.
const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY,
	path         TEXT NOT NULL DEFAULT '',
	text         TEXT NOT NULL DEFAULT '',
	app_name     TEXT NOT NULL DEFAULT '',
	window_title TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	captured_at  INTEGER NOT NULL,
	checksum     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_records_captured_at ON records(captured_at, id);
CREATE INDEX IF NOT EXISTS idx_records_path ON records(path);
CREATE INDEX IF NOT EXISTS idx_records_app ON records(app_name);
`

// DB wraps a sql.DB with index-specific operations.
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
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
