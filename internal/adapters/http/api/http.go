// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ModelDependencies
	TopicDependencies
	BattleDependencies
	VoteDependencies
	LeaderboardDependencies
	ModelStatsDependencies
	PreferenceDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	modelsHandler      *ModelsHandler
	topicsHandler      *TopicsHandler
	battlesHandler     *BattlesHandler
	votesHandler       *VotesHandler
	leaderboardHandler *LeaderboardHandler
	preferencesHandler *PreferencesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider, deps),
		modelsHandler:      NewModelsHandler(deps),
		topicsHandler:      NewTopicsHandler(deps),
		battlesHandler:     NewBattlesHandler(deps),
		votesHandler:       NewVotesHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		preferencesHandler: NewPreferencesHandler(deps),
	}
}

// Register attaches all HTTP routes to r. Procedures live under /api:
// queries are GET with query parameters, mutations are POST with a JSON body.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/api", func(r chi.Router) {
		r.Use(Identity)

		query(r, "models.list", s.modelsHandler.HandleList)
		query(r, "models.search", s.modelsHandler.HandleSearch)
		query(r, "models.getById", s.modelsHandler.HandleGetByID)
		mutation(r, "models.create", Admin(s.modelsHandler.HandleCreate))
		mutation(r, "models.discover", Protected(s.modelsHandler.HandleDiscover))

		query(r, "topics.list", s.topicsHandler.HandleList)
		query(r, "topics.random", s.topicsHandler.HandleRandom)
		mutation(r, "topics.create", Admin(s.topicsHandler.HandleCreate))

		mutation(r, "battles.create", Protected(s.battlesHandler.HandleCreate))
		mutation(r, "battles.execute", Protected(s.battlesHandler.HandleExecute))
		query(r, "battles.getById", s.battlesHandler.HandleGetByID)
		query(r, "battles.getUserHistory", Protected(s.battlesHandler.HandleUserHistory))
		query(r, "battles.getRecent", s.battlesHandler.HandleRecent)

		mutation(r, "votes.submit", Protected(s.votesHandler.HandleSubmit))
		query(r, "votes.getBattleVotes", s.votesHandler.HandleBattleVotes)

		query(r, "leaderboard.get", s.leaderboardHandler.HandleGetLeaderboard)

		query(r, "stats.getModelStats", s.statsHandler.HandleModelStats)

		query(r, "preferences.get", Protected(s.preferencesHandler.HandleGet))
		mutation(r, "preferences.update", Protected(s.preferencesHandler.HandleUpdate))
	})
}

func query(r chi.Router, procedure string, h http.HandlerFunc) {
	r.Get("/"+procedure, MetricsMiddleware(h, procedure))
}

func mutation(r chi.Router, procedure string, h http.HandlerFunc) {
	r.Post("/"+procedure, MetricsMiddleware(h, procedure))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFailure maps err onto its status and client-safe message. Server
// side failures are logged with the full chain.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := statusFor(err)
	if status >= statusInternalError {
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
