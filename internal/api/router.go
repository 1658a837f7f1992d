package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/glimpse/internal/recordservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *recordservice.Service, builder ContextBuilder, asker Asker, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, builder, asker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Records.
	r.Get("/records", h.ListRecords)
	r.Post("/records", h.CreateRecord)
	r.Get("/records/{id}", h.GetRecord)
	r.Delete("/records/{id}", h.DeleteRecord)

	// Search.
	r.Get("/search", h.Search)

	// Retrieval and generation.
	r.Post("/context", h.BuildContext)
	r.Post("/ask", h.Ask)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
