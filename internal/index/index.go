package index

import (
	"context"

	"github.com/starford/glimpse/internal/models"
)

// RecordIndex defines the interface for record indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type RecordIndex interface {
	UpsertRecord(r models.Record, checksum string) error
	DeleteRecord(id string) error
	DeletePath(path string) error
	GetRecord(id string) (*models.Record, error)
	GetChecksum(path string) (string, error)
	ListRecords(limit, offset int, app string) ([]models.Record, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Records(ctx context.Context) ([]models.Record, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies RecordIndex at compile time.
var _ RecordIndex = (*DB)(nil)
