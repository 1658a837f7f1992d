package index

import (
	"log/slog"

	"github.com/starford/glimpse/internal/capture"
	"github.com/starford/glimpse/internal/storage"
)

// Sync walks the inbox and brings the index up to date:
//   - new/changed capture files are parsed and upserted
//   - records whose files were removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	indexed := 0
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			indexed++
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeletePath(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	logger.Info("sync: done", slog.Int("files", len(metas)), slog.Int("indexed", indexed))
	return nil
}

// IndexFile parses a capture file and upserts the resulting record.
func IndexFile(db *DB, path string, data []byte) error {
	rec, err := capture.Parse(path, data)
	if err != nil {
		return err
	}
	return db.UpsertRecord(*rec, capture.Checksum(data))
}
