package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/glimpse/internal/apperr"
	"github.com/starford/glimpse/internal/models"
)

const recordColumns = `id, path, text, app_name, window_title, source, captured_at`

// SearchResult represents one search hit.
type SearchResult struct {
	ID          string    `json:"id"`
	AppName     string    `json:"app_name,omitempty"`
	WindowTitle string    `json:"window_title,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Snippet     string    `json:"snippet"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (models.Record, error) {
	var (
		r  models.Record
		ns int64
	)
	if err := s.Scan(&r.ID, &r.Path, &r.Text, &r.AppName, &r.WindowTitle, &r.Source, &ns); err != nil {
		return models.Record{}, err
	}
	r.Timestamp = time.Unix(0, ns)
	return r, nil
}

// UpsertRecord inserts or replaces a record and its FTS entry within a transaction.
// A capture file maps to a single record, so any other row claiming the same
// path is dropped.
func (db *DB) UpsertRecord(r models.Record, checksum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if r.Path != "" {
		if err := deleteWhere(tx, `path = ? AND id <> ?`, r.Path, r.ID); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`
		INSERT INTO records (id, path, text, app_name, window_title, source, captured_at, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path         = excluded.path,
			text         = excluded.text,
			app_name     = excluded.app_name,
			window_title = excluded.window_title,
			source       = excluded.source,
			captured_at  = excluded.captured_at,
			checksum     = excluded.checksum
	`, r.ID, r.Path, r.Text, r.AppName, r.WindowTitle, r.Source, r.Timestamp.UnixNano(), checksum)
	if err != nil {
		return fmt.Errorf("index: upsert record: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, r); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteRecord removes a record by ID. It returns apperr.ErrNotFound when no
// such record exists.
func (db *DB) DeleteRecord(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	res, err := tx.Exec(`DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return tx.Commit()
}

// DeletePath removes whatever record was indexed from the given capture file.
func (db *DB) DeletePath(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteWhere(tx, `path = ?`, path); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteWhere(tx *sql.Tx, where string, args ...any) error {
	rows, err := tx.Query(`SELECT id FROM records WHERE `+where, args...)
	if err != nil {
		return fmt.Errorf("index: select for delete: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range ids {
		ftsDelete(tx, id)
		if _, err := tx.Exec(`DELETE FROM records WHERE id = ?`, id); err != nil {
			return fmt.Errorf("index: delete record: %w", err)
		}
	}
	return nil
}

// GetRecord returns a single record by ID.
func (db *DB) GetRecord(id string) (*models.Record, error) {
	row := db.conn.QueryRow(`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("index: get record: %w", err)
	}
	return &r, nil
}

// GetChecksum returns the stored checksum for a capture file, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM records WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every file-backed record.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM records WHERE path <> ''`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ListRecords returns a page of records, newest first, optionally filtered by
// application name, together with the total number of matching records.
func (db *DB) ListRecords(limit, offset int, app string) ([]models.Record, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ``
	args := []any{}
	if app != "" {
		where = ` WHERE app_name = ?`
		args = append(args, app)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM records`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count records: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+recordColumns+` FROM records`+where+
		` ORDER BY captured_at DESC, id DESC LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list records: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Records returns the full corpus newest first, ties broken by ascending ID.
// Retrieval keeps this order among equal scores, so when scores tie (as every
// record older than the recency horizon does for an empty query) the newest
// records win.
func (db *DB) Records(ctx context.Context) ([]models.Record, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+recordColumns+` FROM records ORDER BY captured_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("index: records: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
