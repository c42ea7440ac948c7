package api

import (
	"context"
	"net/http"

	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/model"
)

// ModelDependencies defines the interface for model catalog operations.
type ModelDependencies interface {
	ListModels(ctx context.Context, f model.ModelFilter) ([]model.Model, error)
	SearchModels(ctx context.Context, term string) ([]model.Model, error)
	GetModel(ctx context.Context, id int64) (model.Model, error)
	CreateModel(ctx context.Context, in service.ModelInput) (model.Model, error)
	DiscoverModel(ctx context.Context, in service.ModelInput) (service.Discovery, error)
}

// ModelsHandler handles models.* procedures.
type ModelsHandler struct {
	deps ModelDependencies
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(deps ModelDependencies) *ModelsHandler {
	return &ModelsHandler{deps: deps}
}

type modelRequest struct {
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	ModelID     string `json:"modelId"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IsActive    *bool  `json:"isActive"`
	// Source records where a discovered model was found. It is informational.
	Source string `json:"source,omitempty"`
}

func (m modelRequest) input() service.ModelInput {
	return service.ModelInput{
		Name:        m.Name,
		Provider:    m.Provider,
		ModelID:     m.ModelID,
		Description: m.Description,
		Category:    m.Category,
		IsActive:    m.IsActive,
	}
}

type discoverResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ModelID int64  `json:"modelId"`
}

// HandleList handles GET /api/models.list?provider=&category=&isActive=
func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.models.list"
	active, err := optionalBool(r, "isActive")
	if err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	q := r.URL.Query()
	models, err := h.deps.ListModels(r.Context(), model.ModelFilter{
		Provider: q.Get("provider"),
		Category: q.Get("category"),
		IsActive: active,
	})
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, models)
}

// HandleSearch handles GET /api/models.search?query=
func (h *ModelsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.models.search"
	models, err := h.deps.SearchModels(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, models)
}

// HandleGetByID handles GET /api/models.getById?id=
func (h *ModelsHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	const op = "api.models.getById"
	id, err := requiredID(r, "id")
	if err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	m, err := h.deps.GetModel(r.Context(), id)
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleCreate handles POST /api/models.create (admin).
func (h *ModelsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.models.create"
	var req modelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	m, err := h.deps.CreateModel(r.Context(), req.input())
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleDiscover handles POST /api/models.discover.
func (h *ModelsHandler) HandleDiscover(w http.ResponseWriter, r *http.Request) {
	const op = "api.models.discover"
	var req modelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	d, err := h.deps.DiscoverModel(r.Context(), req.input())
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	resp := discoverResponse{Success: d.Created, Message: "Model already exists", ModelID: d.Model.ID}
	if d.Created {
		resp.Message = "Model added successfully"
	}
	writeJSON(w, http.StatusOK, resp)
}
