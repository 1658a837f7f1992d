// Package recordservice coordinates the inbox and the index for record
// reads and writes.
package recordservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/glimpse/internal/apperr"
	"github.com/starford/glimpse/internal/capture"
	"github.com/starford/glimpse/internal/index"
	"github.com/starford/glimpse/internal/models"
	"github.com/starford/glimpse/internal/storage"
)

// CreateInput describes a record ingested through the API or MCP.
type CreateInput struct {
	ID          string    `json:"id,omitempty"`
	Text        string    `json:"text"`
	AppName     string    `json:"app_name,omitempty"`
	WindowTitle string    `json:"window_title,omitempty"`
	Source      string    `json:"source,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// Validate checks field bounds. Empty ID and Timestamp are filled in by Create.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ID, validation.Length(1, 200)),
		validation.Field(&in.AppName, validation.Length(0, 200)),
		validation.Field(&in.WindowTitle, validation.Length(0, 1000)),
		validation.Field(&in.Source, validation.Length(0, 64)),
		validation.Field(&in.Timestamp,
			validation.Min(capture.MinTimestamp), validation.Max(capture.MaxTimestamp)),
	)
}

// Service coordinates storage and index operations.
type Service struct {
	store storage.Provider
	db    *index.DB
	now   func() time.Time
}

// NewService creates a record service.
func NewService(store storage.Provider, db *index.DB) *Service {
	return &Service{store: store, db: db, now: time.Now}
}

// Get returns a record by ID.
func (s *Service) Get(_ context.Context, id string) (*models.Record, error) {
	return s.db.GetRecord(id)
}

// Create writes a capture file for in and indexes it. The ID defaults to a
// random UUID and the timestamp to now.
func (s *Service) Create(_ context.Context, in CreateInput) (*models.Record, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrInvalidInput, err.Error())
	}

	rec := models.Record{
		ID:          in.ID,
		Text:        in.Text,
		AppName:     in.AppName,
		WindowTitle: in.WindowTitle,
		Source:      in.Source,
		Timestamp:   in.Timestamp,
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}

	if _, err := s.db.GetRecord(rec.ID); err == nil {
		return nil, apperr.ErrAlreadyExists
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	path := capture.FileName(rec.ID)
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}

	data, err := capture.Format(rec)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, path, data); err != nil {
		return nil, err
	}
	return s.db.GetRecord(rec.ID)
}

// Delete removes a record's capture file (if any) and its index entry.
func (s *Service) Delete(_ context.Context, id string) error {
	rec, err := s.db.GetRecord(id)
	if err != nil {
		return err
	}
	if rec.Path != "" {
		if err := s.store.Delete(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return s.db.DeleteRecord(id)
}

// List returns records newest first, optionally filtered by application.
func (s *Service) List(_ context.Context, limit, offset int, app string) ([]models.Record, int, error) {
	records, total, err := s.db.ListRecords(limit, offset, app)
	if err != nil {
		return nil, 0, err
	}
	if records == nil {
		records = []models.Record{}
	}
	return records, total, nil
}

// Search delegates keyword search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	results, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	return results, nil
}

// Records returns the full corpus. It makes the service usable as a
// cascade corpus.
func (s *Service) Records(ctx context.Context) ([]models.Record, error) {
	return s.db.Records(ctx)
}
