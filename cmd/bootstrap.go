package main

import (
	"context"
	"fmt"
	"os"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/pkg/logger"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (YAML or TOML); overrides "+config.EnvPrefix+"CONFIG")
}

// bootstrap loads configuration and initializes logging for a command.
func bootstrap(ctx context.Context) (*config.Config, error) {
	if configPath != "" {
		if err := os.Setenv(config.EnvPrefix+"CONFIG", configPath); err != nil {
			return nil, fmt.Errorf("set config path: %w", err)
		}
	}

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// openStore connects to the configured database and applies the schema
// when auto_migrate is set.
func openStore(ctx context.Context, cfg *config.Config) (*repository.SQLStore, error) {
	dsn := cfg.SQLitePath
	if cfg.StoreDriver == config.DriverPostgres {
		dsn = cfg.DatabaseURL
	}
	store, err := repository.Open(ctx, cfg.StoreDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return store, nil
}
