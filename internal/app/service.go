// Package service coordinates battles, votes and ratings on top of the
// store, the model client and the leaderboard cache. It implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	execqueue "github.com/okian/arena/internal/adapters/mq/queue"
	workerpool "github.com/okian/arena/internal/adapters/mq/worker"
	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/dedupe"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 500
	defaultGuardTTL         = 10 * time.Minute
	defaultGuardSize        = 10_000
)

// Invoker sends a prompt to a model and returns its answer.
type Invoker interface {
	Complete(ctx context.Context, m model.Model, prompt string) (string, error)
}

// LeaderboardCache stores ranked leaderboard pages by limit. Invalidate
// bumps a generation counter; Set stores a page only if the generation is
// still the one read before the page was loaded, and reports whether it did.
type LeaderboardCache interface {
	Get(ctx context.Context, limit int) ([]types.Entry, bool, error)
	Generation(ctx context.Context) (uint64, error)
	Set(ctx context.Context, gen uint64, limit int, entries []types.Entry) (bool, error)
	Invalidate(ctx context.Context) error
	// Limits returns the page sizes currently cached.
	Limits(ctx context.Context) ([]int, error)
}

// Service implements the API dependencies for the arena.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	invoker Invoker
	cache   LeaderboardCache
	guard   dedupe.Deduper
	queue   execqueue.Queue
	pool    *workerpool.Pool
	warmer  *cron.Cron

	// Configuration
	workerCount   int
	queueSize     int
	invokeTimeout time.Duration
	guardTTL      time.Duration
	defaultLimit  int
	maxLimit      int
	warmSchedule  string
	now           func() time.Time

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of background execution workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the execution queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithCache serves the leaderboard through c.
func WithCache(c LeaderboardCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithCacheWarmSchedule refreshes cached leaderboard pages on a cron
// schedule. An empty schedule disables the warmer.
func WithCacheWarmSchedule(spec string) Option {
	return func(s *Service) {
		s.warmSchedule = spec
	}
}

// WithInvokeTimeout bounds each model call made by ExecuteBattle.
func WithInvokeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.invokeTimeout = d
		}
	}
}

// WithExecutionGuardTTL sets how long an in-flight execution claim lives.
func WithExecutionGuardTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.guardTTL = d
		}
	}
}

// WithLeaderboardLimits sets the default and maximum leaderboard page size.
func WithLeaderboardLimits(def, max int) Option {
	return func(s *Service) {
		if def > 0 && max >= def {
			s.defaultLimit = def
			s.maxLimit = max
		}
	}
}

// WithClock overrides the clock used for daily stat keys.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over store and invoker.
func New(store repository.Store, invoker Invoker, opts ...Option) *Service {
	s := &Service{
		store:        store,
		invoker:      invoker,
		workerCount:  runtime.NumCPU(),
		queueSize:    1024,
		guardTTL:     defaultGuardTTL,
		defaultLimit: defaultLeaderboardLimit,
		maxLimit:     maxLeaderboardLimit,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.guard = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(defaultGuardSize),
		dedupe.WithTTL(s.guardTTL),
	)
	return s
}

// Start launches the execution worker pool and the cache warmer.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting arena service...")

	if s.cache != nil && s.warmSchedule != "" {
		warmer := cron.New()
		if _, err := warmer.AddFunc(s.warmSchedule, func() { s.warmLeaderboard(context.WithoutCancel(ctx)) }); err != nil {
			return fmt.Errorf("service: cache warm schedule %q: %w", s.warmSchedule, err)
		}
		s.warmer = warmer
		s.warmer.Start()
	}

	s.queue = execqueue.NewInMemoryQueue(execqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "arena service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("cache", s.cache != nil),
		logger.String("warmSchedule", s.warmSchedule),
	)
	return nil
}

// Stop drains the worker pool and stops the cache warmer. The store and
// cache belong to the caller and are left open.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping arena service...")

	var err error
	if s.pool != nil {
		err = s.pool.Shutdown(ctx)
	}
	if s.warmer != nil {
		select {
		case <-s.warmer.Stop().Done():
		case <-ctx.Done():
		}
		s.warmer = nil
	}

	s.started = false
	s.logger.Info(ctx, "arena service stopped")
	return err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"cacheEnabled":     s.cache != nil,
		"executionsActive": s.guard.Size(),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}

	if n, err := s.store.CountModels(ctx); err == nil {
		stats["totalModels"] = n
		metrics.UpdateTotalModels(n)
	} else {
		s.logger.Warn(ctx, "count models failed", logger.Error(err))
	}

	return stats
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) today() string {
	return model.StatDate(s.now())
}

// invalidateLeaderboard drops cached pages after a rating or counter change.
func (s *Service) invalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn(ctx, "leaderboard cache invalidation failed", logger.Error(err))
	}
}
