// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers .env, an optional file, and ARENA_ env vars on top.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"runtime"
	"time"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ShutdownTimeout bounds graceful shutdown of the server and workers.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// StoreDriver is sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`

	// DatabaseURL is the postgres DSN. Falls back to DATABASE_URL.
	DatabaseURL string `koanf:"database_url"`

	// SQLitePath is the sqlite file; ":memory:" keeps everything in process.
	SQLitePath string `koanf:"sqlite_path"`

	// AutoMigrate applies the embedded schema on startup.
	AutoMigrate bool `koanf:"auto_migrate"`

	// RedisAddr enables the leaderboard cache when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// CacheTTL is the lifetime of a cached leaderboard page.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// CacheWarmSchedule is a cron spec for refreshing the cached leaderboard.
	// Empty disables warming.
	CacheWarmSchedule string `koanf:"cache_warm_schedule"`

	// LLMBaseURL and LLMAPIKey point at an OpenAI-compatible endpoint.
	// Empty values fall back to OPENAI_* / OPENROUTER_* variables.
	LLMBaseURL string `koanf:"llm_base_url"`
	LLMAPIKey  string `koanf:"llm_api_key"`

	// LLMTimeout bounds a single model invocation.
	LLMTimeout time.Duration `koanf:"llm_timeout"`

	// LLMQualifyModels sends provider/modelId instead of modelId.
	LLMQualifyModels bool `koanf:"llm_qualify_models"`

	// ExecuteQueueSize bounds the async execution queue.
	ExecuteQueueSize int `koanf:"execute_queue_size"`

	// ExecuteWorkerCount sets the number of async execution workers.
	ExecuteWorkerCount int `koanf:"execute_worker_count"`

	// ExecutionGuardTTL expires a stuck in-flight execution claim.
	ExecutionGuardTTL time.Duration `koanf:"execution_guard_ttl"`

	// DefaultLeaderboardLimit applies when leaderboard.get has no limit.
	DefaultLeaderboardLimit int `koanf:"default_leaderboard_limit"`

	// MaxLeaderboardLimit caps leaderboard.get?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":8080",
		ShutdownTimeout:         15 * time.Second,
		StoreDriver:             DriverSQLite,
		SQLitePath:              "arena.db",
		AutoMigrate:             true,
		CacheTTL:                30 * time.Second,
		CacheWarmSchedule:       "@every 1m",
		LLMTimeout:              90 * time.Second,
		ExecuteQueueSize:        1024,
		ExecuteWorkerCount:      runtime.NumCPU(),
		ExecutionGuardTTL:       10 * time.Minute,
		DefaultLeaderboardLimit: 50,
		MaxLeaderboardLimit:     500,
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.StoreDriver != DriverSQLite && c.StoreDriver != DriverPostgres:
		return invalid("unknown store driver %q", c.StoreDriver)
	case c.StoreDriver == DriverPostgres && c.DatabaseURL == "":
		return invalid("database_url is required for postgres")
	case c.StoreDriver == DriverSQLite && c.SQLitePath == "":
		return invalid("sqlite_path must not be empty")
	case c.ExecuteQueueSize <= 0:
		return invalid("execute_queue_size must be positive")
	case c.ExecuteWorkerCount <= 0:
		return invalid("execute_worker_count must be positive")
	case c.DefaultLeaderboardLimit <= 0 || c.MaxLeaderboardLimit < c.DefaultLeaderboardLimit:
		return invalid("leaderboard limits must satisfy 0 < default <= max")
	}
	return nil
}
