package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/repository"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var testDay = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// fakeInvoker answers every prompt with "answer from <modelId>" unless the
// model is listed in fail or blank. A non-nil gate blocks calls until it is
// closed.
type fakeInvoker struct {
	mu      sync.Mutex
	fail    map[string]error
	blank   map[string]bool
	gate    chan struct{}
	prompts []string
}

func (f *fakeInvoker) Complete(ctx context.Context, m model.Model, prompt string) (string, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	err, blank := f.fail[m.ModelID], f.blank[m.ModelID]
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	if blank {
		return " \n", nil
	}
	return "answer from " + m.ModelID, nil
}

func (f *fakeInvoker) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

type fixture struct {
	store   *repository.SQLStore
	invoker *fakeInvoker
	svc     *service.Service
	m1, m2  model.Model
	topic   model.Topic
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := &fakeClock{t: testDay}
	store, err := repository.Open(ctx, "sqlite", ":memory:",
		repository.WithClock(clock.now),
		repository.WithMetricsUpdateInterval(0),
	)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{store: store, invoker: &fakeInvoker{fail: map[string]error{}, blank: map[string]bool{}}}
	f.m1, err = store.CreateModel(ctx, model.Model{Name: "GPT-4o", Provider: "openai", ModelID: "gpt-4o", Category: "chat", IsActive: true})
	if err != nil {
		t.Fatalf("create model: %v", err)
	}
	f.m2, err = store.CreateModel(ctx, model.Model{Name: "Claude", Provider: "anthropic", ModelID: "claude-3", Category: "chat", IsActive: true})
	if err != nil {
		t.Fatalf("create model: %v", err)
	}
	f.topic, err = store.CreateTopic(ctx, model.Topic{Title: "Haiku", Prompt: "Write a haiku about AI", Category: "creative", IsActive: true})
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}

	opts = append([]service.Option{service.WithClock(func() time.Time { return testDay })}, opts...)
	f.svc = service.New(store, f.invoker, opts...)
	return f
}

func (f *fixture) battle(t *testing.T) model.Battle {
	t.Helper()
	b, err := f.svc.CreateBattle(context.Background(), service.BattleInput{
		UserID: 1, Model1ID: f.m1.ID, Model2ID: f.m2.ID, TopicID: f.topic.ID,
	})
	if err != nil {
		t.Fatalf("create battle: %v", err)
	}
	return b
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		f := newFixture(t)

		Convey("Then it should have sensible defaults", func() {
			So(f.svc, ShouldNotBeNil)
			So(f.svc.LeaderboardLimit(0), ShouldEqual, 50)
			So(f.svc.LeaderboardLimit(10_000), ShouldEqual, 500)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		f := newFixture(t,
			service.WithWorkerCount(2),
			service.WithQueueSize(16),
			service.WithLeaderboardLimits(10, 20),
			service.WithInvokeTimeout(time.Second),
		)

		Convey("Then limits follow the options", func() {
			So(f.svc.LeaderboardLimit(0), ShouldEqual, 10)
			So(f.svc.LeaderboardLimit(15), ShouldEqual, 15)
			So(f.svc.LeaderboardLimit(99), ShouldEqual, 20)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		f := newFixture(t, service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When getting stats before starting", func() {
			stats := f.svc.GetStats(ctx)

			Convey("Then it should return basic stats", func() {
				So(stats["started"], ShouldEqual, false)
				So(stats["totalModels"], ShouldEqual, 2)
				So(stats, ShouldNotContainKey, "queueLength")
			})
		})

		Convey("When starting the service", func() {
			So(f.svc.Start(ctx), ShouldBeNil)
			defer func() { _ = f.svc.Stop(ctx) }()

			Convey("Then it should be marked as started", func() {
				stats := f.svc.GetStats(ctx)
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
			})

			Convey("And starting twice is a no-op", func() {
				So(f.svc.Start(ctx), ShouldBeNil)
			})
		})

		Convey("When stopping a started service", func() {
			So(f.svc.Start(ctx), ShouldBeNil)
			So(f.svc.Stop(ctx), ShouldBeNil)

			Convey("Then it should be marked as stopped", func() {
				So(f.svc.GetStats(ctx)["started"], ShouldEqual, false)
			})

			Convey("And queued execution is refused", func() {
				b := f.battle(t)
				_, err := f.svc.EnqueueExecution(ctx, b.ID)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})

	Convey("Given a cache warm schedule that does not parse", t, func() {
		f := newFixture(t,
			service.WithCache(newMemCache()),
			service.WithCacheWarmSchedule("every now and then"),
		)

		Convey("Then Start fails", func() {
			So(f.svc.Start(context.Background()), ShouldNotBeNil)
		})
	})
}

func TestService_EnqueueExecution(t *testing.T) {
	Convey("Given a started service", t, func() {
		f := newFixture(t, service.WithWorkerCount(1), service.WithQueueSize(4))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(f.svc.Start(ctx), ShouldBeNil)
		defer func() { _ = f.svc.Stop(ctx) }()

		Convey("When a pending battle is queued", func() {
			b := f.battle(t)
			jobID, err := f.svc.EnqueueExecution(ctx, b.ID)
			So(err, ShouldBeNil)
			So(jobID, ShouldNotBeEmpty)

			Convey("Then a worker executes it", func() {
				done := waitFor(func() bool {
					got, err := f.svc.GetBattle(ctx, b.ID)
					return err == nil && got.Status == model.StatusCompleted
				})
				So(done, ShouldBeTrue)
			})
		})

		Convey("When the battle does not exist", func() {
			_, err := f.svc.EnqueueExecution(ctx, 404)
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a started service whose workers are stuck", t, func() {
		f := newFixture(t, service.WithWorkerCount(1), service.WithQueueSize(1))
		f.invoker.gate = make(chan struct{})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(f.svc.Start(ctx), ShouldBeNil)
		defer func() {
			close(f.invoker.gate)
			_ = f.svc.Stop(ctx)
		}()

		Convey("When more battles are queued than fit", func() {
			var errs []error
			for range 4 {
				b := f.battle(t)
				_, err := f.svc.EnqueueExecution(ctx, b.ID)
				errs = append(errs, err)
			}

			Convey("Then the overflow is rejected with ErrQueueFull", func() {
				full := 0
				for _, err := range errs {
					if errors.Is(err, service.ErrQueueFull) {
						full++
					}
				}
				So(full, ShouldBeGreaterThan, 0)
			})
		})
	})
}
