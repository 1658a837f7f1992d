//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/starford/glimpse/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on the records table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ models.Record) error {
	// Text is already stored in the records table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT id, app_name, window_title, captured_at, substr(text, 1, 200)
		FROM records
		WHERE text LIKE ? OR window_title LIKE ? OR app_name LIKE ?
		ORDER BY captured_at DESC, id DESC
		LIMIT ?
	`, like, like, like, limit)
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
