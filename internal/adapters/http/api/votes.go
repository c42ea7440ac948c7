package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/model"
)

// VoteDependencies defines the interface for voting.
type VoteDependencies interface {
	SubmitVote(ctx context.Context, in service.VoteInput) (model.Settlement, error)
	BattleVotes(ctx context.Context, battleID int64) ([]model.Vote, error)
}

// VotesHandler handles votes.* procedures.
type VotesHandler struct {
	deps VoteDependencies
}

// NewVotesHandler creates a new votes handler.
func NewVotesHandler(deps VoteDependencies) *VotesHandler {
	return &VotesHandler{deps: deps}
}

// submitVoteRequest mirrors votes.submit. A null votedModelId is a draw.
type submitVoteRequest struct {
	BattleID     int64   `json:"battleId"`
	VotedModelID *int64  `json:"votedModelId"`
	Comment      *string `json:"comment"`
}

// HandleSubmit handles POST /api/votes.submit.
func (h *VotesHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.votes.submit"
	var req submitVoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.BattleID < 1 {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, errors.New("battleId is required")))
		return
	}
	user, _ := UserFrom(r.Context())
	if _, err := h.deps.SubmitVote(r.Context(), service.VoteInput{
		BattleID:     req.BattleID,
		UserID:       user.ID,
		VotedModelID: req.VotedModelID,
		Comment:      req.Comment,
	}); err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// HandleBattleVotes handles GET /api/votes.getBattleVotes?battleId=
func (h *VotesHandler) HandleBattleVotes(w http.ResponseWriter, r *http.Request) {
	const op = "api.votes.getBattleVotes"
	id, err := requiredID(r, "battleId")
	if err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	votes, err := h.deps.BattleVotes(r.Context(), id)
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, votes)
}
