package api

import (
	"context"
	"net/http"

	"github.com/okian/arena/internal/domain/model"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// ModelStatsDependencies defines the interface for the daily roll-up.
type ModelStatsDependencies interface {
	ModelStats(ctx context.Context, modelID int64, from, to string) ([]model.ModelStat, error)
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
	deps          ModelStatsDependencies
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider, deps ModelStatsDependencies) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, deps: deps}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.statsProvider.GetStats(r.Context()))
}

// HandleModelStats handles GET /api/stats.getModelStats?modelId=&startDate=&endDate=
func (h *StatsHandler) HandleModelStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats.getModelStats"
	id, err := requiredID(r, "modelId")
	if err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	q := r.URL.Query()
	stats, err := h.deps.ModelStats(r.Context(), id, q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
