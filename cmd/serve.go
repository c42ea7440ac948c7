package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/okian/arena/internal/adapters/cache"
	"github.com/okian/arena/internal/adapters/http/api"
	"github.com/okian/arena/internal/adapters/http/swagger"
	"github.com/okian/arena/internal/adapters/llm"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			logger.Get().Error(ctx, "logger sync failed", logger.Error(err))
		}
	}()
	log := logger.Get()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithWorkerCount(cfg.ExecuteWorkerCount),
		service.WithQueueSize(cfg.ExecuteQueueSize),
		service.WithInvokeTimeout(cfg.LLMTimeout),
		service.WithExecutionGuardTTL(cfg.ExecutionGuardTTL),
		service.WithLeaderboardLimits(cfg.DefaultLeaderboardLimit, cfg.MaxLeaderboardLimit),
	}
	if cfg.RedisAddr != "" {
		lc, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cache.WithTTL(cfg.CacheTTL))
		if err != nil {
			return fmt.Errorf("leaderboard cache: %w", err)
		}
		defer func() { _ = lc.Close() }()
		opts = append(opts,
			service.WithCache(lc),
			service.WithCacheWarmSchedule(cfg.CacheWarmSchedule),
		)
	}

	// Create and start the service with configuration options
	svc := service.New(store, newInvoker(ctx, cfg), opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	// Start system and service metrics updaters
	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.LLMTimeout + readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			_ = svc.Stop(context.Background())
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newRouter mounts the docs, the operational endpoints and the procedures.
func newRouter(ctx context.Context, svc *service.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(api.RequestID)

	swagger.Register(ctx, r)
	api.NewServer(svc, svc).Register(ctx, r)
	return r
}

// newInvoker builds the model client. Without credentials the server still
// starts; executions fail until a key is configured.
func newInvoker(ctx context.Context, cfg *config.Config) service.Invoker {
	client, err := llm.NewClient(
		llm.WithBaseURL(cfg.LLMBaseURL),
		llm.WithAPIKey(cfg.LLMAPIKey),
		llm.WithTimeout(cfg.LLMTimeout),
		llm.WithQualifiedNames(cfg.LLMQualifyModels),
	)
	if err != nil {
		logger.Get().Warn(ctx, "model client unavailable; battle execution disabled", logger.Error(err))
		return unavailableInvoker{err: err}
	}
	return client
}

type unavailableInvoker struct{ err error }

func (u unavailableInvoker) Complete(context.Context, model.Model, string) (string, error) {
	return "", u.err
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes queue and catalog gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the queue and model gauges as a side effect.
			_ = svc.GetStats(ctx)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
