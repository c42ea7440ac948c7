package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/llm"
	"github.com/okian/arena/internal/adapters/repository"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	ctx := context.Background()
	store, err := repository.Open(ctx, config.DriverSQLite, ":memory:", repository.WithMetricsUpdateInterval(0))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return service.New(store, unavailableInvoker{err: llm.ErrMissingAPIKey})
}

func TestBootstrap(t *testing.T) {
	convey.Convey("Given configuration in the environment", t, func() {
		t.Setenv("ARENA_ADDR", ":9090")
		t.Setenv("ARENA_EXECUTE_WORKER_COUNT", "3")
		t.Setenv("ARENA_LOG_FORMAT", "json")
		configPath = ""

		convey.Convey("When a command bootstraps", func() {
			cfg, err := bootstrap(context.Background())

			convey.Convey("Then the environment wins over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ExecuteWorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})
		})

		convey.Convey("When --config points at a YAML file", func() {
			path := filepath.Join(t.TempDir(), "arena.yaml")
			convey.So(os.WriteFile(path, []byte("max_leaderboard_limit: 200\n"), 0o600), convey.ShouldBeNil)
			configPath = path
			defer func() { configPath = "" }()

			cfg, err := bootstrap(context.Background())

			convey.Convey("Then the file is layered in", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 200)
			})
		})

		convey.Convey("When the address is empty", func() {
			t.Setenv("ARENA_ADDR", "")
			_, err := bootstrap(context.Background())

			convey.Convey("Then loading fails validation", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given a sqlite config with auto migrate", t, func() {
		cfg := config.New(context.Background())
		cfg.SQLitePath = filepath.Join(t.TempDir(), "arena.db")

		store, err := openStore(context.Background(), cfg)
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = store.Close() }()

		convey.Convey("Then the schema is ready to use", func() {
			n, err := store.CountModels(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(n, convey.ShouldEqual, 0)
		})
	})
}

func TestSeed(t *testing.T) {
	convey.Convey("Given the built-in catalog", t, func() {
		cat, err := loadCatalog("")
		convey.So(err, convey.ShouldBeNil)
		convey.So(cat.Models, convey.ShouldHaveLength, 6)
		convey.So(cat.Topics, convey.ShouldHaveLength, 10)

		convey.Convey("When it is seeded twice", func() {
			ctx := context.Background()
			svc := newTestService(t)

			first, err := seed(ctx, svc, cat)
			convey.So(err, convey.ShouldBeNil)
			second, err := seed(ctx, svc, cat)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the second run adds nothing", func() {
				convey.So(first.modelsAdded, convey.ShouldEqual, 6)
				convey.So(first.topicsAdded, convey.ShouldEqual, 10)
				convey.So(second.modelsAdded, convey.ShouldEqual, 0)
				convey.So(second.modelsSkipped, convey.ShouldEqual, 6)
				convey.So(second.topicsAdded, convey.ShouldEqual, 0)

				models, err := svc.ListModels(ctx, model.ModelFilter{})
				convey.So(err, convey.ShouldBeNil)
				convey.So(models, convey.ShouldHaveLength, 6)
				for _, m := range models {
					convey.So(m.EloRating, convey.ShouldEqual, 1500)
				}
			})
		})

		convey.Convey("When a catalog file has a bad difficulty", func() {
			path := filepath.Join(t.TempDir(), "catalog.yaml")
			body := "topics:\n  - title: X\n    prompt: Y\n    category: z\n    difficulty: brutal\n"
			convey.So(os.WriteFile(path, []byte(body), 0o600), convey.ShouldBeNil)

			c, err := loadCatalog(path)
			convey.So(err, convey.ShouldBeNil)
			_, err = seed(context.Background(), newTestService(t), c)

			convey.Convey("Then seeding stops with the input error", func() {
				convey.So(errors.Is(err, service.ErrInvalidInput), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the catalog file is missing", func() {
			_, err := loadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRenderLeaderboard(t *testing.T) {
	convey.Convey("Given ranked models", t, func() {
		entries := types.Ranked([]model.Model{
			{ID: 1, Name: "GPT-4", Provider: "openai", EloRating: 1516, TotalWins: 1, TotalBattles: 1},
			{ID: 2, Name: "Gemini Pro", Provider: "google", EloRating: 1484, TotalLosses: 1, TotalBattles: 1},
		})

		convey.Convey("Then the table lists them in order", func() {
			out := renderLeaderboard(entries)
			convey.So(out, convey.ShouldContainSubstring, "GPT-4")
			convey.So(out, convey.ShouldContainSubstring, "1516")
			convey.So(out, convey.ShouldContainSubstring, "100.0%")
			convey.So(strings.Index(out, "GPT-4"), convey.ShouldBeLessThan, strings.Index(out, "Gemini Pro"))
		})

		convey.Convey("And an empty board says so", func() {
			convey.So(renderLeaderboard(nil), convey.ShouldEqual, "no active models")
		})
	})
}

func TestRouter(t *testing.T) {
	convey.Convey("Given the server router", t, func() {
		ctx := context.Background()
		h := newRouter(ctx, newTestService(t))

		for _, path := range []string{"/healthz", "/stats", "/api-docs", "/openapi.yaml", "/api/leaderboard.get"} {
			convey.Convey("Then GET "+path+" is served", func() {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("X-Request-ID"), convey.ShouldNotBeEmpty)
			})
		}

		convey.Convey("And executing an unknown battle is a 404", func() {
			body := bytes.NewBufferString(`{"battleId":1}`)
			req := httptest.NewRequest(http.MethodPost, "/api/battles.execute", body)
			req.Header.Set("X-User-ID", "1")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metrics updaters", t, func() {
		convey.Convey("Then they return once the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, newTestService(t)) }, convey.ShouldNotPanic)
		})

		convey.Convey("And a single system update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})
	})
}

func TestUnavailableInvoker(t *testing.T) {
	convey.Convey("Given no model credentials", t, func() {
		inv := unavailableInvoker{err: llm.ErrMissingAPIKey}

		convey.Convey("Then every completion reports why", func() {
			_, err := inv.Complete(context.Background(), model.Model{}, "hi")
			convey.So(errors.Is(err, llm.ErrMissingAPIKey), convey.ShouldBeTrue)
		})
	})
}
