package api

import (
	"context"
	"net/http"
)

// LeaderboardDependencies defines the interface for leaderboard operations
type LeaderboardDependencies interface {
	// Leaderboard clamps limit itself; 0 selects the default page size.
	Leaderboard(ctx context.Context, limit int) ([]Entry, error)
}

// LeaderboardHandler handles leaderboard requests
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /api/leaderboard.get?limit=N requests
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.leaderboard.get"
	n, err := optionalInt(r, "limit")
	if err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	entries, err := h.deps.Leaderboard(r.Context(), n)
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
