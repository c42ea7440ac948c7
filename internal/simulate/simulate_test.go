package simulate_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/http/api"
	"github.com/okian/arena/internal/adapters/repository"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/simulate"
	"github.com/okian/arena/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type echoInvoker struct{}

func (echoInvoker) Complete(_ context.Context, m model.Model, prompt string) (string, error) {
	return m.ModelID + ": " + prompt, nil
}

// newArena serves a real service over an in-memory store.
func newArena(t *testing.T, models int) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	store, err := repository.Open(ctx, "sqlite", ":memory:", repository.WithMetricsUpdateInterval(0))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for i, id := range []string{"gpt-4o", "claude-3", "llama-3"}[:models] {
		if _, err := store.CreateModel(ctx, model.Model{Name: id, Provider: "p", ModelID: id, IsActive: true}); err != nil {
			t.Fatalf("create model %d: %v", i, err)
		}
	}
	if _, err := store.CreateTopic(ctx, model.Topic{Title: "Haiku", Prompt: "Write a haiku", Category: "creative", IsActive: true}); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	svc := service.New(store, echoInvoker{}, service.WithWorkerCount(2))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	r := chi.NewRouter()
	r.Use(api.RequestID)
	api.NewServer(svc, svc).Register(ctx, r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a running arena with three models", t, func() {
		srv := newArena(t, 3)

		Convey("When a synchronous simulation runs", func() {
			stats, err := simulate.Run(context.Background(), simulate.Config{
				BaseURL:  srv.URL,
				Battles:  20,
				Workers:  4,
				Timeout:  10 * time.Second,
				DrawRate: 0.25,
			})

			Convey("Then every battle is created, executed and voted on", func() {
				So(err, ShouldBeNil)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.BattlesCreated, ShouldEqual, 20)
				So(stats.BattlesExecuted, ShouldEqual, 20)
				So(stats.VotesCast, ShouldEqual, 20)
				So(stats.LeaderboardEntries, ShouldEqual, 3)
			})
		})

		Convey("When executions are queued", func() {
			stats, err := simulate.Run(context.Background(), simulate.Config{
				BaseURL: srv.URL,
				Battles: 5,
				Workers: 2,
				Async:   true,
			})

			Convey("Then votes are still settled", func() {
				So(err, ShouldBeNil)
				So(stats.BattlesQueued, ShouldEqual, 5)
				So(stats.VotesCast, ShouldEqual, 5)
			})
		})
	})

	Convey("Given an arena with a single model", t, func() {
		srv := newArena(t, 1)

		Convey("Then the simulation refuses to start", func() {
			_, err := simulate.Run(context.Background(), simulate.Config{BaseURL: srv.URL, Battles: 1})
			So(errors.Is(err, simulate.ErrNotEnoughModels), ShouldBeTrue)
		})
	})
}

func TestVerifyLeaderboard(t *testing.T) {
	Convey("Given a consistent leaderboard", t, func() {
		entries := []simulate.Entry{
			{Rank: 1, ID: 1, EloRating: 1516, TotalWins: 1, TotalDraws: 1, WinRate: 0.5},
			{Rank: 2, ID: 2, EloRating: 1484, TotalLosses: 1, TotalDraws: 1, WinRate: 0},
		}
		So(simulate.VerifyLeaderboard(entries, true), ShouldBeNil)

		Convey("When ranks skip", func() {
			entries[1].Rank = 3
			So(errors.Is(simulate.VerifyLeaderboard(entries, false), simulate.ErrInconsistent), ShouldBeTrue)
		})

		Convey("When ratings are out of order", func() {
			entries[1].EloRating = 1600
			So(errors.Is(simulate.VerifyLeaderboard(entries, false), simulate.ErrInconsistent), ShouldBeTrue)
		})

		Convey("When wins and losses do not balance on a full page", func() {
			entries[1].TotalLosses = 0
			entries[1].TotalDraws = 2
			err := simulate.VerifyLeaderboard(entries, true)
			So(errors.Is(err, simulate.ErrInconsistent), ShouldBeTrue)

			Convey("Then a partial page is not held to the balance", func() {
				So(simulate.VerifyLeaderboard(entries, false), ShouldBeNil)
			})
		})

		Convey("When a win rate is misreported", func() {
			entries[0].WinRate = 1
			So(errors.Is(simulate.VerifyLeaderboard(entries, false), simulate.ErrInconsistent), ShouldBeTrue)
		})
	})
}
