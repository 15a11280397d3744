package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/toprank/internal/domain/model"
	"github.com/okian/toprank/internal/domain/types"
)

// LookupDependencies defines the point lookups.
type LookupDependencies interface {
	FindByPlayerAndMetric(ctx context.Context, playerID, metricKey string) (model.RankRecord, bool, error)
	FindByRankAndMetric(ctx context.Context, rank int, metricKey string) (model.RankRecord, bool, error)
}

// LookupHandler handles single-row lookups.
type LookupHandler struct {
	deps LookupDependencies
}

// NewLookupHandler creates a new lookup handler.
func NewLookupHandler(deps LookupDependencies) *LookupHandler {
	return &LookupHandler{deps: deps}
}

// HandleByPlayer handles GET /rankings/{metric}/players/{player}.
func (h *LookupHandler) HandleByPlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.by_player"
	rec, ok, err := h.deps.FindByPlayerAndMetric(r.Context(), r.PathValue("player"), r.PathValue("metric"))
	respondOne(w, op, rec, ok, err)
}

// HandleByRank handles GET /rankings/{metric}/ranks/{rank}.
func (h *LookupHandler) HandleByRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.by_rank"
	rank, err := strconv.Atoi(r.PathValue("rank"))
	if err != nil || rank < 1 {
		writeFailure(w, WrapKind(op, ErrBadRequest, errors.New("rank must be a positive integer")))
		return
	}
	rec, ok, err := h.deps.FindByRankAndMetric(r.Context(), rank, r.PathValue("metric"))
	respondOne(w, op, rec, ok, err)
}

func respondOne(w http.ResponseWriter, op string, rec model.RankRecord, ok bool, err error) {
	switch {
	case err != nil:
		writeFailure(w, Wrap(op, err))
	case !ok:
		writeFailure(w, NewKind(op, ErrNotFound))
	default:
		writeJSON(w, http.StatusOK, types.FromRecord(rec))
	}
}
