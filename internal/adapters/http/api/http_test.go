package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/http/api"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// mockDependencies records calls and returns canned results or errors.
type mockDependencies struct {
	models      []model.Model
	filter      model.ModelFilter
	topic       model.Topic
	battle      model.Battle
	battleInput service.BattleInput
	voteInput   service.VoteInput
	patch       model.PreferencePatch
	prefUser    int64
	leaderboard []types.Entry
	lbLimit     int
	historyUser int64
	execResult  model.ExecutionResult
	jobID       string
	discovery   service.Discovery
	statsRange  [2]string

	err error
}

func (m *mockDependencies) ListModels(_ context.Context, f model.ModelFilter) ([]model.Model, error) {
	m.filter = f
	return m.models, m.err
}

func (m *mockDependencies) SearchModels(context.Context, string) ([]model.Model, error) {
	return m.models, m.err
}

func (m *mockDependencies) GetModel(_ context.Context, id int64) (model.Model, error) {
	if m.err != nil {
		return model.Model{}, m.err
	}
	return model.Model{ID: id, Name: "GPT-4o"}, nil
}

func (m *mockDependencies) CreateModel(_ context.Context, in service.ModelInput) (model.Model, error) {
	return model.Model{ID: 9, Name: in.Name, ModelID: in.ModelID}, m.err
}

func (m *mockDependencies) DiscoverModel(context.Context, service.ModelInput) (service.Discovery, error) {
	return m.discovery, m.err
}

func (m *mockDependencies) ListTopics(context.Context, model.TopicFilter) ([]model.Topic, error) {
	return []model.Topic{m.topic}, m.err
}

func (m *mockDependencies) RandomTopic(context.Context) (model.Topic, error) {
	return m.topic, m.err
}

func (m *mockDependencies) CreateTopic(_ context.Context, in service.TopicInput) (model.Topic, error) {
	return model.Topic{ID: 3, Title: in.Title}, m.err
}

func (m *mockDependencies) CreateBattle(_ context.Context, in service.BattleInput) (model.Battle, error) {
	m.battleInput = in
	return model.Battle{ID: 42}, m.err
}

func (m *mockDependencies) ExecuteBattle(context.Context, int64) (model.ExecutionResult, error) {
	return m.execResult, m.err
}

func (m *mockDependencies) EnqueueExecution(context.Context, int64) (string, error) {
	return m.jobID, m.err
}

func (m *mockDependencies) GetBattle(context.Context, int64) (model.Battle, error) {
	return m.battle, m.err
}

func (m *mockDependencies) UserBattles(_ context.Context, userID int64, _ int) ([]model.Battle, error) {
	m.historyUser = userID
	return []model.Battle{m.battle}, m.err
}

func (m *mockDependencies) RecentBattles(context.Context, int) ([]model.Battle, error) {
	return []model.Battle{m.battle}, m.err
}

func (m *mockDependencies) SubmitVote(_ context.Context, in service.VoteInput) (model.Settlement, error) {
	m.voteInput = in
	return model.Settlement{}, m.err
}

func (m *mockDependencies) BattleVotes(context.Context, int64) ([]model.Vote, error) {
	return []model.Vote{}, m.err
}

func (m *mockDependencies) Leaderboard(_ context.Context, limit int) ([]types.Entry, error) {
	m.lbLimit = limit
	return m.leaderboard, m.err
}

func (m *mockDependencies) ModelStats(_ context.Context, _ int64, from, to string) ([]model.ModelStat, error) {
	m.statsRange = [2]string{from, to}
	return []model.ModelStat{}, m.err
}

func (m *mockDependencies) GetPreference(_ context.Context, userID int64) (model.Preference, error) {
	m.prefUser = userID
	return model.DefaultPreference(userID), m.err
}

func (m *mockDependencies) UpdatePreference(_ context.Context, userID int64, patch model.PreferencePatch) (model.Preference, error) {
	m.prefUser = userID
	m.patch = patch
	return model.Preference{}, m.err
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats(context.Context) map[string]any {
	return m.stats
}

func newRouter(deps *mockDependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(api.RequestID)
	api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"started": true}}).Register(context.Background(), r)
	return r
}

type call struct {
	method, path, body string
	user               string
	role               string
}

func do(h http.Handler, c call) *httptest.ResponseRecorder {
	var req *http.Request
	if c.method == http.MethodPost {
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(c.method, c.path, http.NoBody)
	}
	if c.user != "" {
		req.Header.Set(api.HeaderUserID, c.user)
	}
	if c.role != "" {
		req.Header.Set(api.HeaderUserRole, c.role)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{}
		h := newRouter(deps)

		Convey("Then the health endpoint serves metrics", func() {
			w := do(h, call{method: http.MethodGet, path: "/healthz"})
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And the stats endpoint returns service stats", func() {
			w := do(h, call{method: http.MethodGet, path: "/stats"})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("And every response carries a request id", func() {
			w := do(h, call{method: http.MethodGet, path: "/api/topics.random"})
			So(w.Header().Get(api.HeaderRequestID), ShouldNotBeEmpty)
		})

		Convey("And a caller supplied request id is echoed", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/topics.random", http.NoBody)
			req.Header.Set(api.HeaderRequestID, "req-123")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get(api.HeaderRequestID), ShouldEqual, "req-123")
		})

		Convey("And queries reject POST", func() {
			w := do(h, call{method: http.MethodPost, path: "/api/models.list", body: "{}"})
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestIdentity(t *testing.T) {
	Convey("Given the procedures that need an identity", t, func() {
		deps := &mockDependencies{}
		h := newRouter(deps)

		Convey("When an anonymous caller submits a vote", func() {
			w := do(h, call{method: http.MethodPost, path: "/api/votes.submit", body: `{"battleId":1}`})

			Convey("Then it is rejected with 401", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(decodeError(w)["code"], ShouldEqual, "unauthorized")
			})
		})

		Convey("When a regular user creates a model", func() {
			w := do(h, call{method: http.MethodPost, path: "/api/models.create", user: "7",
				body: `{"name":"x","provider":"y","modelId":"z"}`})

			Convey("Then it is rejected with 403", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
			})
		})

		Convey("When an admin creates a model", func() {
			w := do(h, call{method: http.MethodPost, path: "/api/models.create", user: "1", role: "admin",
				body: `{"name":"x","provider":"y","modelId":"z"}`})

			Convey("Then the model is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"modelId":"z"`)
			})
		})

		Convey("When a user reads their history", func() {
			w := do(h, call{method: http.MethodGet, path: "/api/battles.getUserHistory", user: "12"})

			Convey("Then the id comes from the identity header", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.historyUser, ShouldEqual, 12)
			})
		})

		Convey("When the user id is not a number", func() {
			w := do(h, call{method: http.MethodGet, path: "/api/preferences.get", user: "abc"})
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
		msg    string
	}{
		{service.ErrNotFound, http.StatusNotFound, "not_found", "Not found"},
		{service.ErrAlreadyVoted, http.StatusBadRequest, "already_voted", "Already voted on this battle"},
		{service.ErrInvalidVote, http.StatusBadRequest, "invalid_vote", ""},
		{service.ErrBattleNotPending, http.StatusConflict, "battle_not_pending", ""},
		{service.ErrExecutionInProgress, http.StatusConflict, "execution_in_progress", ""},
		{service.ErrExecutionFailed, http.StatusInternalServerError, "execution_failed", "Battle execution failed"},
		{service.ErrQueueFull, http.StatusTooManyRequests, "backpressure", ""},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error", "Internal server error"},
	}

	Convey("Given service errors behind votes.submit", t, func() {
		for _, tc := range cases {
			Convey(fmt.Sprintf("When the service fails with %v", tc.err), func() {
				deps := &mockDependencies{err: fmt.Errorf("service.SubmitVote: %w", tc.err)}
				w := do(newRouter(deps), call{method: http.MethodPost, path: "/api/votes.submit", user: "7",
					body: `{"battleId":1,"votedModelId":2}`})

				Convey("Then the status and code follow the error kind", func() {
					So(w.Code, ShouldEqual, tc.status)
					body := decodeError(w)
					So(body["code"], ShouldEqual, tc.code)
					if tc.msg != "" {
						So(body["message"], ShouldEqual, tc.msg)
					}
				})
			})
		}
	})
}

func TestBattles(t *testing.T) {
	Convey("Given the battle procedures", t, func() {
		deps := &mockDependencies{
			execResult: model.ExecutionResult{Success: true, Model1Response: "a", Model2Response: "b", Model1ResponseTime: 10, Model2ResponseTime: 20},
			jobID:      "job-1",
		}
		h := newRouter(deps)

		Convey("When a battle is created", func() {
			w := do(h, call{method: http.MethodPost, path: "/api/battles.create", user: "5",
				body: `{"model1Id":1,"model2Id":2,"topicId":3,"customPrompt":"Explain monads"}`})

			Convey("Then the new id is returned and the caller owns it", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"battleId":42`)
				So(deps.battleInput.UserID, ShouldEqual, 5)
				So(*deps.battleInput.CustomPrompt, ShouldEqual, "Explain monads")
			})
		})

		Convey("When a battle is created without a topic", func() {
			w := do(h, call{method: http.MethodPost, path: "/api/battles.create", user: "5", body: `{"model1Id":1,"model2Id":2}`})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a battle is executed synchronously", func() {
			w := do(h, call{method: http.MethodPost, path: "/api/battles.execute", user: "5", body: `{"battleId":42}`})

			Convey("Then both responses are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res model.ExecutionResult
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(res.Success, ShouldBeTrue)
				So(res.Model2ResponseTime, ShouldEqual, 20)
			})
		})

		Convey("When a battle is executed asynchronously", func() {
			w := do(h, call{method: http.MethodPost, path: "/api/battles.execute", user: "5", body: `{"battleId":42,"async":true}`})

			Convey("Then the job is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"status":"queued"`)
				So(w.Body.String(), ShouldContainSubstring, `"jobId":"job-1"`)
			})
		})

		Convey("When the body is malformed", func() {
			w := do(h, call{method: http.MethodPost, path: "/api/battles.execute", user: "5", body: `{"battleId":`})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When a battle is read without an id", func() {
			w := do(h, call{method: http.MethodGet, path: "/api/battles.getById"})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestVotes(t *testing.T) {
	Convey("Given the vote procedures", t, func() {
		deps := &mockDependencies{}
		h := newRouter(deps)

		Convey("When a draw is submitted", func() {
			w := do(h, call{method: http.MethodPost, path: "/api/votes.submit", user: "7",
				body: `{"battleId":1,"votedModelId":null,"comment":"tie"}`})

			Convey("Then the vote carries no model and succeeds", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"success":true`)
				So(deps.voteInput.VotedModelID, ShouldBeNil)
				So(deps.voteInput.UserID, ShouldEqual, 7)
				So(*deps.voteInput.Comment, ShouldEqual, "tie")
			})
		})

		Convey("When votes are listed for a battle", func() {
			w := do(h, call{method: http.MethodGet, path: "/api/votes.getBattleVotes?battleId=1"})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})
	})
}

func TestQueries(t *testing.T) {
	Convey("Given the read procedures", t, func() {
		deps := &mockDependencies{
			models:      []model.Model{{ID: 1, Name: "GPT-4o"}},
			leaderboard: types.Ranked([]model.Model{{ID: 1, EloRating: 1516, TotalWins: 1}}),
		}
		h := newRouter(deps)

		Convey("Model filters are parsed from the query string", func() {
			w := do(h, call{method: http.MethodGet, path: "/api/models.list?provider=openai&isActive=1"})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.filter.Provider, ShouldEqual, "openai")
			So(*deps.filter.IsActive, ShouldBeTrue)

			w = do(h, call{method: http.MethodGet, path: "/api/models.list?isActive=maybe"})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("The leaderboard passes the limit through", func() {
			w := do(h, call{method: http.MethodGet, path: "/api/leaderboard.get?limit=10"})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lbLimit, ShouldEqual, 10)
			So(w.Body.String(), ShouldContainSubstring, `"rank":1`)
			So(w.Body.String(), ShouldContainSubstring, `"winRate":1`)

			w = do(h, call{method: http.MethodGet, path: "/api/leaderboard.get?limit=-1"})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Unknown topic difficulties are rejected", func() {
			w := do(h, call{method: http.MethodGet, path: "/api/topics.list?difficulty=brutal"})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Model stats forward the date range", func() {
			w := do(h, call{method: http.MethodGet, path: "/api/stats.getModelStats?modelId=1&startDate=2025-03-01&endDate=2025-03-31"})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.statsRange, ShouldResemble, [2]string{"2025-03-01", "2025-03-31"})
		})

		Convey("A missing model is a 404", func() {
			deps.err = fmt.Errorf("service.GetModel: %w", service.ErrNotFound)
			w := do(h, call{method: http.MethodGet, path: "/api/models.getById?id=99"})
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestModelDiscovery(t *testing.T) {
	Convey("Given a model that is already registered", t, func() {
		deps := &mockDependencies{discovery: service.Discovery{Model: model.Model{ID: 4}}}
		w := do(newRouter(deps), call{method: http.MethodPost, path: "/api/models.discover", user: "2",
			body: `{"name":"GPT-4o","provider":"openai","modelId":"gpt-4o","source":"manual"}`})

		Convey("Then discovery reports it without creating", func() {
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"success":false`)
			So(w.Body.String(), ShouldContainSubstring, `"modelId":4`)
		})
	})
}

func TestPreferences(t *testing.T) {
	Convey("Given the preference procedures", t, func() {
		deps := &mockDependencies{}
		h := newRouter(deps)

		Convey("When only reminders are patched", func() {
			w := do(h, call{method: http.MethodPost, path: "/api/preferences.update", user: "3", body: `{"battleReminders":false}`})

			Convey("Then absent fields stay nil", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.prefUser, ShouldEqual, 3)
				So(*deps.patch.BattleReminders, ShouldBeFalse)
				So(deps.patch.EmailNotifications, ShouldBeNil)
				So(deps.patch.FavoriteModels, ShouldBeNil)
			})
		})

		Convey("When preferences are read", func() {
			w := do(h, call{method: http.MethodGet, path: "/api/preferences.get", user: "3"})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"emailNotifications":true`)
		})
	})
}

func TestErrorHelpers(t *testing.T) {
	Convey("Operation errors keep their kind and cause", t, func() {
		cause := fmt.Errorf("disk on fire")
		err := api.WrapKind("api.test", api.ErrBadRequest, cause)
		So(err.Error(), ShouldEqual, "api.test: bad request: disk on fire")
		So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(api.NewKind("api.test", api.ErrForbidden).Error(), ShouldEqual, "api.test: admin only")
	})
}
