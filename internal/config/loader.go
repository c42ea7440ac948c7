package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ARENA_"

// Load builds a Config by layering defaults, .env, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. .env in the working directory, merged into the process env
//  3. file (YAML, or TOML by extension) if ARENA_CONFIG is set
//  4. env (prefix ARENA_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: .env: %w", ErrLoadConfig, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		var parser koanf.Parser = yaml.Parser()
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			parser = tomlParser{}
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// ARENA_EXECUTE_QUEUE_SIZE -> execute_queue_size (flat keys)
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
