package api

import (
	"errors"
	"net/http"

	"github.com/okian/payday/internal/adapters/repository"
	service "github.com/okian/payday/internal/app"
	"github.com/okian/payday/internal/domain/payout"
)

// LeagueHandler serves per-league cycle operations.
type LeagueHandler struct {
	deps Dependencies
}

// NewLeagueHandler creates a new league handler.
func NewLeagueHandler(deps Dependencies) *LeagueHandler {
	return &LeagueHandler{deps: deps}
}

// HandleReport handles GET /leagues/{id}/report requests.
func (h *LeagueHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, ok := h.deps.LastReport(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", errors.New("no cycle has run for league "+id))
		return
	}
	writeJSON(w, http.StatusOK, newReportResponse(report, nil))
}

// HandleProcess handles POST /leagues/{id}/process requests. The cycle runs
// synchronously; the report is returned even when the cycle was aborted.
func (h *LeagueHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, err := h.deps.ProcessPeriodPayouts(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newReportResponse(report, nil))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrLeagueBusy):
		writeError(w, http.StatusConflict, "busy", err)
	case errors.Is(err, payout.ErrUnresolvableTie), errors.Is(err, repository.ErrDuplicatePayout):
		writeJSON(w, http.StatusConflict, newReportResponse(report, err))
	default:
		writeJSON(w, http.StatusInternalServerError, newReportResponse(report, err))
	}
}
