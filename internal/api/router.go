package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/raido/internal/reports"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *reports.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Batch outcomes.
	r.Get("/batches", h.ListBatches)
	r.Get("/batches/{name}", h.GetBatch)

	// Quarantine and deletion history.
	r.Get("/quarantine", h.Quarantine)
	r.Get("/deletions", h.Deletions)

	// Manual run trigger.
	r.Post("/runs", h.TriggerRun)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
