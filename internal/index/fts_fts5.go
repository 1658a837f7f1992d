//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/starford/glimpse/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			id UNINDEXED,
			text,
			app_name,
			window_title,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, r models.Record) error {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE id = ?`, r.ID)
	_, err := tx.Exec(`INSERT INTO records_fts (id, text, app_name, window_title) VALUES (?, ?, ?, ?)`,
		r.ID, r.Text, r.AppName, r.WindowTitle)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE id = ?`, id)
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.id,
		       r.app_name,
		       r.window_title,
		       r.captured_at,
		       snippet(records_fts, 1, '<b>', '</b>', '...', 64)
		FROM records_fts f
		JOIN records r ON r.id = f.id
		WHERE records_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var (
			r  SearchResult
			ns int64
		)
		if err := rows.Scan(&r.ID, &r.AppName, &r.WindowTitle, &ns, &r.Snippet); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, ns)
		out = append(out, r)
	}
	return out, rows.Err()
}
