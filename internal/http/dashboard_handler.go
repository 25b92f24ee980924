package http

import (
	"log/slog"
	"net/http"
)

type DashboardHandler struct {
	dashboard DashboardService
	log       *slog.Logger
}

func NewDashboardHandler(dashboard DashboardService, log *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, log: log}
}

// GET /api/dashboard/stats
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	stats, err := h.dashboard.Stats(r.Context(), actor)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GET /api/dashboard/view returns the caller's orders with the status changes
// they may apply to each.
func (h *DashboardHandler) View(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	views, err := h.dashboard.View(r.Context(), actor)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	for i := range views {
		views[i].Order = *redact(actor, &views[i].Order)
	}
	respondJSON(w, http.StatusOK, nonNil(views))
}
