package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New(ctx))
//  2. file (YAML) if CROSSLINE_CONFIG is set
//  3. env (prefix CROSSLINE_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("CROSSLINE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: CROSSLINE_ADDR, CROSSLINE_TASK_QUEUE_SIZE, ...
	// Map env keys like CROSSLINE_TASK_QUEUE_SIZE -> task_queue_size.
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("CROSSLINE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "crossline_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.DedupeFreshnessSeconds <= 0 {
		return fmt.Errorf("%w: dedupe_freshness_seconds must be positive", ErrInvalidConfig)
	}
	if cfg.DedupeRetentionMinutes <= 0 {
		return fmt.Errorf("%w: dedupe_retention_minutes must be positive", ErrInvalidConfig)
	}
	return nil
}
