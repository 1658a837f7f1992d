// Package testutil provides shared test helpers for setting up inboxes and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starford/glimpse/internal/capture"
	"github.com/starford/glimpse/internal/index"
	"github.com/starford/glimpse/internal/models"
	"github.com/starford/glimpse/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "glimpse-test-*.db")
	require.NoError(t, err)
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInbox creates a temporary inbox directory with a storage.Provider.
func TestInbox(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	require.NoError(t, err)
	return dir, store
}

// WriteCapture writes r to the inbox as a capture file named after its ID and
// returns the relative path. The file is not indexed.
func WriteCapture(t *testing.T, store storage.Provider, r models.Record) string {
	t.Helper()
	data, err := capture.Format(r)
	require.NoError(t, err)
	path := capture.FileName(r.ID)
	require.NoError(t, store.Write(path, data))
	return path
}
