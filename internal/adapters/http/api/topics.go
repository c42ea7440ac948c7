package api

import (
	"context"
	"fmt"
	"net/http"

	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/model"
)

// TopicDependencies defines the interface for topic operations.
type TopicDependencies interface {
	ListTopics(ctx context.Context, f model.TopicFilter) ([]model.Topic, error)
	RandomTopic(ctx context.Context) (model.Topic, error)
	CreateTopic(ctx context.Context, in service.TopicInput) (model.Topic, error)
}

// TopicsHandler handles topics.* procedures.
type TopicsHandler struct {
	deps TopicDependencies
}

// NewTopicsHandler creates a new topics handler.
func NewTopicsHandler(deps TopicDependencies) *TopicsHandler {
	return &TopicsHandler{deps: deps}
}

type topicRequest struct {
	Title      string `json:"title"`
	Prompt     string `json:"prompt"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

// HandleList handles GET /api/topics.list?category=&difficulty=
func (h *TopicsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.topics.list"
	q := r.URL.Query()
	f := model.TopicFilter{Category: q.Get("category")}
	if raw := q.Get("difficulty"); raw != "" {
		d, ok := model.ParseDifficulty(raw)
		if !ok {
			writeFailure(w, r, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid difficulty %q", raw)))
			return
		}
		f.Difficulty = d
	}
	topics, err := h.deps.ListTopics(r.Context(), f)
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

// HandleRandom handles GET /api/topics.random
func (h *TopicsHandler) HandleRandom(w http.ResponseWriter, r *http.Request) {
	const op = "api.topics.random"
	t, err := h.deps.RandomTopic(r.Context())
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleCreate handles POST /api/topics.create (admin).
func (h *TopicsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.topics.create"
	var req topicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	t, err := h.deps.CreateTopic(r.Context(), service.TopicInput(req))
	if err != nil {
		writeFailure(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, t)
}
