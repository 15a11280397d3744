// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/toprank/internal/adapters/mq/queue"
	service "github.com/okian/toprank/internal/app"
	"github.com/okian/toprank/internal/domain/model"
	"github.com/okian/toprank/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SubmitDependencies
	LeaderboardDependencies
	LookupDependencies
}

// Entry mirrors the read shape returned by ranking queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	submitHandler      *SubmitHandler
	leaderboardHandler *LeaderboardHandler
	lookupHandler      *LookupHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		submitHandler:      NewSubmitHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		lookupHandler:      NewLookupHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /rankings", MetricsMiddleware(s.submitHandler.HandleSubmit, "rankings_submit"))
	mux.HandleFunc("POST /rankings/sync", MetricsMiddleware(s.submitHandler.HandleSubmitSync, "rankings_sync"))

	mux.HandleFunc("GET /rankings/{metric}", MetricsMiddleware(s.leaderboardHandler.HandlePage, "rankings_page"))
	mux.HandleFunc("GET /rankings/{metric}/others", MetricsMiddleware(s.leaderboardHandler.HandleExcluding, "rankings_others"))
	mux.HandleFunc("GET /rankings/{metric}/players/{player}", MetricsMiddleware(s.lookupHandler.HandleByPlayer, "rankings_player"))
	mux.HandleFunc("GET /rankings/{metric}/ranks/{rank}", MetricsMiddleware(s.lookupHandler.HandleByRank, "rankings_rank"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
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

// writeFailure maps err onto a status code and error code.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidBatch):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, queue.ErrClosed), errors.Is(err, ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func entries(recs []model.RankRecord) []Entry {
	return types.FromRecords(recs)
}
