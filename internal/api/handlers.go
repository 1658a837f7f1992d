package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/glimpse/internal/apperr"
	"github.com/starford/glimpse/internal/assistant"
	"github.com/starford/glimpse/internal/cascade"
	"github.com/starford/glimpse/internal/generate"
	"github.com/starford/glimpse/internal/recordservice"
)

// ContextBuilder builds retrieval context for a query.
type ContextBuilder interface {
	Build(ctx context.Context, query string) *cascade.Context
}

// Asker answers a question from screen history.
type Asker interface {
	Ask(ctx context.Context, query string) (*assistant.Answer, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc     *recordservice.Service
	builder ContextBuilder
	asker   Asker
}

// NewHandler creates a new Handler.
func NewHandler(svc *recordservice.Service, builder ContextBuilder, asker Asker) *Handler {
	return &Handler{svc: svc, builder: builder, asker: asker}
}

// ListRecords handles GET /api/records.
//
//	@Summary		List records, newest first
//	@Tags			records
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			app		query		string	false	"Filter by application name"
//	@Success		200		{object}	RecordListResponse
//	@Security		BearerAuth
//	@Router			/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	records, total, err := h.svc.List(r.Context(), limit, offset, q.Get("app"))
	if err != nil {
		slog.Error("list records failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: records, Total: total})
}

// GetRecord handles GET /api/records/{id}.
//
//	@Summary		Get a single record
//	@Tags			records
//	@Produce		json
//	@Param			id	path		string	true	"Record ID"
//	@Success		200	{object}	Record
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get record failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateRecord handles POST /api/records.
//
//	@Summary		Ingest a record
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateRecordRequest	true	"Record to ingest"
//	@Success		201		{object}	Record
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records [post]
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if !readJSON(w, r, &req) {
		return
	}

	rec, err := h.svc.Create(r.Context(), recordservice.CreateInput{
		ID:          strings.TrimSpace(req.ID),
		Text:        req.Text,
		AppName:     req.AppName,
		WindowTitle: req.WindowTitle,
		Source:      req.Source,
		Timestamp:   req.Timestamp,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, errorBody("record already exists"))
		case errors.Is(err, apperr.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		default:
			slog.Error("create record failed", slog.String("id", req.ID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// DeleteRecord handles DELETE /api/records/{id}.
//
//	@Summary		Delete a record and its capture file
//	@Tags			records
//	@Param			id	path	string	true	"Record ID"
//	@Success		204	"Record deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id} [delete]
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete record failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Keyword search across records
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// BuildContext handles POST /api/context.
//
//	@Summary		Build cascade retrieval context for a query
//	@Tags			retrieval
//	@Accept			json
//	@Produce		json
//	@Param			body	body		QueryRequest	true	"Query"
//	@Success		200		{object}	ContextResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/context [post]
func (h *Handler) BuildContext(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !readJSON(w, r, &req) {
		return
	}
	c := h.builder.Build(r.Context(), req.Query)
	writeJSON(w, http.StatusOK, ContextResponse{Context: c, Rendered: cascade.Render(c)})
}

// Ask handles POST /api/ask.
//
//	@Summary		Answer a question from screen history
//	@Tags			retrieval
//	@Accept			json
//	@Produce		json
//	@Param			body	body		QueryRequest	true	"Question"
//	@Success		200		{object}	AskResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Failure		504		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ask [post]
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query is required"))
		return
	}
	if h.asker == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("generator not configured"))
		return
	}

	ans, err := h.asker.Ask(r.Context(), req.Query)
	if err != nil {
		status := generatorStatus(err)
		slog.Error("ask failed", slog.Int("status", status), slog.String("error", err.Error()))
		writeJSON(w, status, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{
		Answer:              ans.Text,
		ContextEmpty:        ans.Context.IsEmpty(),
		TotalTokensEstimate: ans.Context.TotalTokensEstimate,
	})
}

// generatorStatus maps generator failures to HTTP status codes.
func generatorStatus(err error) int {
	var (
		te *generate.TransportError
		se *generate.StatusError
		de *generate.DecodeError
	)
	switch {
	case errors.Is(err, generate.ErrMissingCredential):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &te) && te.Timeout():
		return http.StatusGatewayTimeout
	case errors.Is(err, generate.ErrEmptyResult),
		errors.As(err, &te), errors.As(err, &se), errors.As(err, &de):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
