package api

import (
	"context"
	"net/http"

	"github.com/okian/arena/internal/domain/model"
)

// PreferenceDependencies defines the interface for user preferences.
type PreferenceDependencies interface {
	GetPreference(ctx context.Context, userID int64) (model.Preference, error)
	UpdatePreference(ctx context.Context, userID int64, patch model.PreferencePatch) (model.Preference, error)
}

// PreferencesHandler handles preferences.* procedures for the caller.
type PreferencesHandler struct {
	deps PreferenceDependencies
}

// NewPreferencesHandler creates a new preferences handler.
func NewPreferencesHandler(deps PreferenceDependencies) *PreferencesHandler {
	return &PreferencesHandler{deps: deps}
}

// updatePreferencesRequest leaves absent fields nil so they are not touched.
type updatePreferencesRequest struct {
	FavoriteModels     *[]int64 `json:"favoriteModels"`
	EmailNotifications *bool    `json:"emailNotifications"`
	BattleReminders    *bool    `json:"battleReminders"`
}

// HandleGet handles GET /api/preferences.get
func (h *PreferencesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.preferences.get"
	user, _ := UserFrom(r.Context())
	p, err := h.deps.GetPreference(r.Context(), user.ID)
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdate handles POST /api/preferences.update.
func (h *PreferencesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.preferences.update"
	var req updatePreferencesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	user, _ := UserFrom(r.Context())
	if _, err := h.deps.UpdatePreference(r.Context(), user.ID, model.PreferencePatch(req)); err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
