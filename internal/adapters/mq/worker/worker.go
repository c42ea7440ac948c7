// Package worker runs queued battle executions in the background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = model.ExecutionJob

// Executor runs one battle.
type Executor interface {
	ExecuteBattle(ctx context.Context, battleID int64) (model.ExecutionResult, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker executes jobs until its queue closes or ctx is canceled.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for one goroutine.
type InMemoryWorker struct {
	queue    Queue
	executor Executor
	name     string
	onDone   func()

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, executor Executor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		executor: executor,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop. Jobs already dequeued are finished before
// a shutdown signal is honored.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "battle execution failed",
					logger.String("job_id", job.JobID),
					logger.Int64("battle_id", job.BattleID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown signals the worker to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		if w.onDone != nil {
			w.onDone()
		}
	}()

	ctx = logger.WithRequestID(ctx, job.JobID)
	if _, err := w.executor.ExecuteBattle(ctx, job.BattleID); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "execution_error")
		return fmt.Errorf("execute battle %d: %w", job.BattleID, err)
	}
	w.logger.Debug(ctx, "battle executed", logger.Int64("battle_id", job.BattleID))
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	cancel   context.CancelFunc
	shutdown chan struct{}
	stopOnce sync.Once

	processed         atomic.Int64
	lastProcessedTime time.Time

	logger logger.Logger
}

// NewPool creates a worker pool; workerCount < 1 means one per CPU.
func NewPool(workerCount int, queue Queue, executor Executor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             queue,
		shutdown:          make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(queue, executor,
			WithName("worker-"+strconv.Itoa(i)),
			withOnDone(p.RecordProcessedJob),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerIdleCount(0)
	metrics.UpdateWorkerMessagesPerSecond(0.0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker. Jobs run on a context detached from ctx's
// deadline so that a finished request does not cancel its queued job.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
	go p.startMetricsUpdater(runCtx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	now := time.Now()
	if elapsed := now.Sub(p.lastProcessedTime).Seconds(); elapsed > 0 {
		metrics.UpdateWorkerMessagesPerSecond(float64(p.processed.Swap(0)) / elapsed)
	}
	p.lastProcessedTime = now
}

// RecordProcessedJob increments the processed job count.
func (p *Pool) RecordProcessedJob() {
	p.processed.Add(1)
}

// Shutdown closes the queue, lets workers drain what is already queued and
// cancels in-flight executions once ctx (or the pool timeout) expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.stopOnce.Do(func() { close(p.shutdown) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut error
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			timedOut = errors.Join(timedOut, fmt.Errorf("worker %d: %w", i, shutdownCtx.Err()))
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	metrics.UpdateWorkerActiveCount(0)
	return timedOut
}
