package api

import (
	"time"

	"github.com/starford/glimpse/internal/cascade"
	"github.com/starford/glimpse/internal/index"
	"github.com/starford/glimpse/internal/models"
)

// CreateRecordRequest is the request body for ingesting a record.
type CreateRecordRequest struct {
	ID          string    `json:"id,omitempty" example:"2026-10-18-0912-safari"`
	Text        string    `json:"text" example:"Q3 budget: 1.2M" validate:"required"`
	AppName     string    `json:"app_name,omitempty" example:"Safari"`
	WindowTitle string    `json:"window_title,omitempty" example:"Q3 budget - Sheets"`
	Source      string    `json:"source,omitempty" example:"ocr"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// Record is a single capture record (aliased from the domain layer).
type Record = models.Record

// RecordListResponse wraps paginated record listings.
type RecordListResponse struct {
	Records []Record `json:"records" validate:"required"`
	Total   int      `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit (aliased from the index layer).
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// QueryRequest carries a natural-language question.
type QueryRequest struct {
	Query string `json:"query" example:"what was the Q3 budget number?"`
}

// ContextResponse is the retrieval context for a query and its rendering.
type ContextResponse struct {
	Context  *cascade.Context `json:"context" validate:"required"`
	Rendered string           `json:"rendered" validate:"required"`
}

// AskResponse is a generated answer.
type AskResponse struct {
	Answer              string `json:"answer" validate:"required"`
	ContextEmpty        bool   `json:"context_empty"`
	TotalTokensEstimate int    `json:"total_tokens_estimate" example:"812"`
}
