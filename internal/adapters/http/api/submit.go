package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/toprank/internal/app"
	"github.com/okian/toprank/internal/domain/model"
	"github.com/okian/toprank/internal/domain/types"
)

const maxBodyBytes = 16 << 20

// SubmitDependencies defines the batch submission operations.
type SubmitDependencies interface {
	Submit(ctx context.Context, batchID string, batch model.Batch) (service.Submission, error)
	SubmitSync(ctx context.Context, batchID string, batch model.Batch) (service.Submission, error)
}

// SubmitHandler handles batch submissions.
type SubmitHandler struct {
	deps SubmitDependencies
}

// NewSubmitHandler creates a new submit handler.
func NewSubmitHandler(deps SubmitDependencies) *SubmitHandler {
	return &SubmitHandler{deps: deps}
}

// HandleSubmit handles POST /rankings. The batch is queued and recomputed
// asynchronously.
func (h *SubmitHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit"
	req, err := decodeBatch(w, r)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	sub, err := h.deps.Submit(r.Context(), req.BatchID, req.ToBatch())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if sub.Duplicate {
		writeJSON(w, http.StatusOK, ack(sub, "duplicate"))
		return
	}
	writeJSON(w, http.StatusAccepted, ack(sub, "accepted"))
}

// HandleSubmitSync handles POST /rankings/sync. The table is rebuilt before
// the response is written.
func (h *SubmitHandler) HandleSubmitSync(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_sync"
	req, err := decodeBatch(w, r)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	sub, err := h.deps.SubmitSync(r.Context(), req.BatchID, req.ToBatch())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	status := "replaced"
	if sub.Duplicate {
		status = "duplicate"
	}
	writeJSON(w, http.StatusOK, types.ReplaceResponse{
		BatchResponse: ack(sub, status),
		Rows:          sub.Result.Rows,
		Groups:        sub.Result.Groups,
		Offline:       sub.Result.Offline,
	})
}

func decodeBatch(w http.ResponseWriter, r *http.Request) (types.BatchRequest, error) {
	var req types.BatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return types.BatchRequest{}, err
	}
	if req.Records == nil {
		return types.BatchRequest{}, errors.New("missing records")
	}
	return req, nil
}

func ack(sub service.Submission, status string) types.BatchResponse {
	return types.BatchResponse{
		BatchID:   sub.BatchID,
		Status:    status,
		Duplicate: sub.Duplicate,
		Records:   sub.Records,
	}
}
