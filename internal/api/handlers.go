package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/reports"
)

// Handler holds API route handlers.
type Handler struct {
	svc *reports.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *reports.Service) *Handler {
	return &Handler{svc: svc}
}

// ListBatches handles GET /api/batches.
//
//	@Summary		List assembled batch outcomes, newest first
//	@Tags			batches
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	BatchListResponse
//	@Security		BearerAuth
//	@Router			/batches [get]
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.svc.ListBatches(r.Context(), limit, offset)
	if err != nil {
		slog.Error("list batches failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if rows == nil {
		rows = []BatchRow{}
	}
	writeJSON(w, http.StatusOK, BatchListResponse{Batches: rows, Total: total})
}

// GetBatch handles GET /api/batches/{name}.
//
//	@Summary		Get one batch outcome by name
//	@Tags			batches
//	@Produce		json
//	@Param			name	path		string	true	"Batch name"
//	@Success		200		{object}	BatchRow
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/batches/{name} [get]
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	row, err := h.svc.GetBatch(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get batch failed", slog.String("name", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// Quarantine handles GET /api/quarantine.
//
//	@Summary		List recent quarantine events
//	@Tags			quarantine
//	@Produce		json
//	@Param			limit	query		int	false	"Max events"
//	@Success		200		{object}	QuarantineResponse
//	@Security		BearerAuth
//	@Router			/quarantine [get]
func (h *Handler) Quarantine(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.svc.Quarantine(r.Context(), limit)
	if err != nil {
		slog.Error("list quarantine failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if events == nil {
		events = []QuarantineRow{}
	}
	writeJSON(w, http.StatusOK, QuarantineResponse{Events: events})
}

// Deletions handles GET /api/deletions.
//
//	@Summary		Tail of the deletion ledger, oldest first
//	@Tags			deletions
//	@Produce		json
//	@Param			limit	query		int	false	"Max control numbers"
//	@Success		200		{object}	DeletionsResponse
//	@Security		BearerAuth
//	@Router			/deletions [get]
func (h *Handler) Deletions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ids, err := h.svc.RecentDeletions(r.Context(), limit)
	if err != nil {
		slog.Error("read deletions failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, DeletionsResponse{ControlNumbers: ids})
}

// TriggerRun handles POST /api/runs.
//
//	@Summary		Run the harvest pipeline over the current inbox
//	@Tags			runs
//	@Produce		json
//	@Success		200	{object}	RunResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs [post]
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.TriggerRun(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrRunBusy) {
			writeJSON(w, http.StatusConflict, errorBody("a run is already in progress"))
			return
		}
		slog.Error("harvest run failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
