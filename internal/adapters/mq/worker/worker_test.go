package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/mq/queue"
	"github.com/okian/arena/internal/adapters/mq/worker"
	"github.com/okian/arena/internal/domain/model"
	logging "github.com/okian/arena/pkg/logger"
)

func init() {
	_ = logging.Init()
}

type mockQueue struct {
	jobs chan worker.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan worker.Job, 16)}
}

func (m *mockQueue) Dequeue(context.Context) <-chan worker.Job { return m.jobs }

func (m *mockQueue) Close() error {
	m.once.Do(func() { close(m.jobs) })
	return nil
}

type mockExecutor struct {
	mu       sync.Mutex
	executed []int64
	fail     map[int64]error
	delay    time.Duration
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{fail: map[int64]error{}}
}

func (m *mockExecutor) ExecuteBattle(ctx context.Context, battleID int64) (model.ExecutionResult, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return model.ExecutionResult{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executed = append(m.executed, battleID)
	if err := m.fail[battleID]; err != nil {
		return model.ExecutionResult{}, err
	}
	return model.ExecutionResult{Success: true}, nil
}

func (m *mockExecutor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.executed)
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a mock queue", t, func() {
		q := newMockQueue()
		exec := newMockExecutor()
		w := worker.NewInMemoryWorker(q, exec, worker.WithName("w-test"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs arrive", func() {
			exec.fail[2] = errors.New("upstream down")
			q.jobs <- worker.Job{JobID: "a", BattleID: 1}
			q.jobs <- worker.Job{JobID: "b", BattleID: 2}
			q.jobs <- worker.Job{JobID: "c", BattleID: 3}
			_ = q.Close()

			convey.Convey("Then every job is executed even after a failure", func() {
				convey.So(waitFor(func() bool { return exec.count() == 3 }, 2*time.Second), convey.ShouldBeTrue)
				shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
				defer stop()
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue closes", func() {
			_ = q.Close()

			convey.Convey("Then the worker stops on its own", func() {
				shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
				defer stop()
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cancel()

			convey.Convey("Then the worker stops", func() {
				shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
				defer stop()
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		exec := newMockExecutor()
		pool := worker.NewPool(4, q, exec)
		pool.Start(context.Background())

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When many jobs are queued and the pool shuts down", func() {
			for i := int64(1); i <= 20; i++ {
				convey.So(q.Enqueue(context.Background(), model.ExecutionJob{JobID: "j", BattleID: i}), convey.ShouldBeNil)
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then queued jobs are drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(exec.count(), convey.ShouldEqual, 20)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool whose executions outlive the shutdown deadline", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		exec := newMockExecutor()
		exec.delay = 5 * time.Second
		pool := worker.NewPool(1, q, exec)
		pool.Start(context.Background())
		convey.So(q.Enqueue(context.Background(), model.ExecutionJob{BattleID: 1}), convey.ShouldBeNil)
		time.Sleep(20 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err := pool.Shutdown(ctx)

		convey.Convey("Then shutdown reports the timeout", func() {
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})
}

func TestWorkerPool_DefaultSize(t *testing.T) {
	convey.Convey("A non-positive worker count falls back to one per CPU", t, func() {
		pool := worker.NewPool(0, newMockQueue(), newMockExecutor())
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
