// Package api declares the operational HTTP endpoints of the payout service.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/payday/internal/app"
	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	StatsProvider

	// ProcessPeriodPayouts runs one payout cycle for a league.
	ProcessPeriodPayouts(ctx context.Context, leagueID string) (service.CycleReport, error)
	// LastReport returns the latest cycle report of a league.
	LastReport(leagueID string) (service.CycleReport, bool)
}

// Server wires HTTP routes for the ops API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	leagueHandler *LeagueHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		leagueHandler: NewLeagueHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /leagues/{id}/report", MetricsMiddleware(s.leagueHandler.HandleReport, "report"))
	mux.HandleFunc("POST /leagues/{id}/process", MetricsMiddleware(s.leagueHandler.HandleProcess, "process"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// reportResponse is the JSON shape of a cycle report.
type reportResponse struct {
	LeagueID   string               `json:"league_id"`
	Cutoff     string               `json:"cutoff,omitempty"`
	Refreshed  bool                 `json:"refreshed"`
	Resolved   []resolutionResponse `json:"resolved"`
	Skipped    []skipResponse       `json:"skipped"`
	DurationMs int64                `json:"duration_ms"`
	Error      string               `json:"error,omitempty"`
}

type resolutionResponse struct {
	PayoutID string   `json:"payout_id"`
	Position int      `json:"position"`
	Start    string   `json:"start_date"`
	End      string   `json:"end_date"`
	Outcome  string   `json:"outcome"`
	Winners  []string `json:"winners"`
	Amount   string   `json:"amount"`
}

type skipResponse struct {
	PayoutID string `json:"payout_id"`
	Reason   string `json:"reason"`
}

func newReportResponse(r service.CycleReport, err error) reportResponse {
	out := reportResponse{
		LeagueID:   r.LeagueID,
		Refreshed:  r.Refreshed,
		Resolved:   make([]resolutionResponse, 0, len(r.Resolved)),
		Skipped:    make([]skipResponse, 0, len(r.Skipped)),
		DurationMs: r.Duration.Milliseconds(),
	}
	if !r.Cutoff.IsZero() {
		out.Cutoff = r.Cutoff.Format(model.DateLayout)
	}
	for _, res := range r.Resolved {
		out.Resolved = append(out.Resolved, resolutionResponse{
			PayoutID: res.PayoutID,
			Position: res.Position,
			Start:    res.Period.Start.Format(model.DateLayout),
			End:      res.Period.End.Format(model.DateLayout),
			Outcome:  string(res.Outcome),
			Winners:  res.Winners,
			Amount:   res.Amount.StringFixed(2),
		})
	}
	for _, s := range r.Skipped {
		out.Skipped = append(out.Skipped, skipResponse{PayoutID: s.PayoutID, Reason: s.Reason})
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
