package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/toprank/internal/domain/model"
	"github.com/okian/toprank/internal/domain/types"
)

const defaultPageSize = 10

// LeaderboardDependencies defines the list operations.
type LeaderboardDependencies interface {
	Page(ctx context.Context, metricKey string, pageNum, pageSize int) ([]model.RankRecord, error)
	FindExcluding(ctx context.Context, playerIDs []string, metricKey string) ([]model.RankRecord, error)
	MaxPageSize() int
}

// LeaderboardHandler handles leaderboard listings.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandlePage handles GET /rankings/{metric}?page=N&size=M. The response
// reports the page size actually applied after the server cap.
func (h *LeaderboardHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	const op = "api.page"
	metric := r.PathValue("metric")

	page, err := intParam(r, "page", 1)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	size, err := intParam(r, "size", defaultPageSize)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	size = min(max(size, 0), h.deps.MaxPageSize())

	recs, err := h.deps.Page(r.Context(), metric, page, size)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.PageResponse{
		MetricKey: metric,
		Page:      max(page, 1),
		Size:      size,
		Entries:   entries(recs),
	})
}

// HandleExcluding handles GET /rankings/{metric}/others?exclude=a,b.
func (h *LeaderboardHandler) HandleExcluding(w http.ResponseWriter, r *http.Request) {
	const op = "api.excluding"
	var exclude []string
	for _, v := range r.URL.Query()["exclude"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				exclude = append(exclude, id)
			}
		}
	}

	recs, err := h.deps.FindExcluding(r.Context(), exclude, r.PathValue("metric"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries(recs))
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + name + "; must be an integer")
	}
	return n, nil
}
