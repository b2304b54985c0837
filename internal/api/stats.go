package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/campushq/placemate/internal/store"
)

// Counter reports knowledge base size. Implemented by store.Store.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// statsHandler serves GET /api/v1/stats.
type statsHandler struct {
	counter Counter
	logger  *slog.Logger
}

// statsResponse summarizes the knowledge base.
type statsResponse struct {
	Chunks int `json:"chunks"`
}

func (h *statsHandler) getStats(w http.ResponseWriter, r *http.Request) {
	count, err := h.counter.Count(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "stats_failed", "failed to count chunks", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, statsResponse{Chunks: count})
}

// compile-time interface check
var _ Counter = (*store.Store)(nil)
