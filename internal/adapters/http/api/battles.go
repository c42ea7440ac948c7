package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/model"
)

// BattleDependencies defines the interface for battle operations.
type BattleDependencies interface {
	CreateBattle(ctx context.Context, in service.BattleInput) (model.Battle, error)
	ExecuteBattle(ctx context.Context, battleID int64) (model.ExecutionResult, error)
	EnqueueExecution(ctx context.Context, battleID int64) (string, error)
	GetBattle(ctx context.Context, id int64) (model.Battle, error)
	UserBattles(ctx context.Context, userID int64, limit int) ([]model.Battle, error)
	RecentBattles(ctx context.Context, limit int) ([]model.Battle, error)
}

// BattlesHandler handles battles.* procedures.
type BattlesHandler struct {
	deps BattleDependencies
}

// NewBattlesHandler creates a new battles handler.
func NewBattlesHandler(deps BattleDependencies) *BattlesHandler {
	return &BattlesHandler{deps: deps}
}

type createBattleRequest struct {
	Model1ID     int64   `json:"model1Id"`
	Model2ID     int64   `json:"model2Id"`
	TopicID      int64   `json:"topicId"`
	CustomPrompt *string `json:"customPrompt"`
}

type createBattleResponse struct {
	BattleID int64 `json:"battleId"`
}

type executeBattleRequest struct {
	BattleID int64 `json:"battleId"`
	Async    bool  `json:"async"`
}

type queuedResponse struct {
	Status string `json:"status"`
	JobID  string `json:"jobId"`
}

// HandleCreate handles POST /api/battles.create.
func (h *BattlesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.battles.create"
	var req createBattleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Model1ID < 1 || req.Model2ID < 1 || req.TopicID < 1 {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, errors.New("model1Id, model2Id and topicId are required")))
		return
	}
	user, _ := UserFrom(r.Context())
	b, err := h.deps.CreateBattle(r.Context(), service.BattleInput{
		UserID:       user.ID,
		Model1ID:     req.Model1ID,
		Model2ID:     req.Model2ID,
		TopicID:      req.TopicID,
		CustomPrompt: req.CustomPrompt,
	})
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, createBattleResponse{BattleID: b.ID})
}

// HandleExecute handles POST /api/battles.execute. With async set the
// battle is queued and 202 is returned with the job id.
func (h *BattlesHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	const op = "api.battles.execute"
	var req executeBattleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.BattleID < 1 {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, errors.New("battleId is required")))
		return
	}

	if req.Async {
		jobID, err := h.deps.EnqueueExecution(r.Context(), req.BattleID)
		if err != nil {
			writeFailure(w, r, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusAccepted, queuedResponse{Status: "queued", JobID: jobID})
		return
	}

	res, err := h.deps.ExecuteBattle(r.Context(), req.BattleID)
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetByID handles GET /api/battles.getById?id=
func (h *BattlesHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	const op = "api.battles.getById"
	id, err := requiredID(r, "id")
	if err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	b, err := h.deps.GetBattle(r.Context(), id)
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleUserHistory handles GET /api/battles.getUserHistory?limit=
func (h *BattlesHandler) HandleUserHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.battles.getUserHistory"
	limit, err := optionalInt(r, "limit")
	if err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	user, _ := UserFrom(r.Context())
	battles, err := h.deps.UserBattles(r.Context(), user.ID, limit)
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, battles)
}

// HandleRecent handles GET /api/battles.getRecent?limit=
func (h *BattlesHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	const op = "api.battles.getRecent"
	limit, err := optionalInt(r, "limit")
	if err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	battles, err := h.deps.RecentBattles(r.Context(), limit)
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, battles)
}
