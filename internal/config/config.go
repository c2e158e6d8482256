// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - Layer file and environment overrides in Load.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SharedKey authenticates inbound webhooks. Accepted from the
	// X-Api-Key header or the payload key field. Empty disables auth,
	// which is only acceptable in local development.
	SharedKey string `koanf:"shared_key"`

	// TimingBaseURL and TimingAPIKey configure the timing-provider API.
	TimingBaseURL string `koanf:"timing_base_url"`
	TimingAPIKey  string `koanf:"timing_api_key"`

	// StreamsBaseURL configures the stream-discovery API.
	StreamsBaseURL string `koanf:"streams_base_url"`

	// ClipsBaseURL configures the clip-generation API.
	ClipsBaseURL string `koanf:"clips_base_url"`

	// WorkerCount sets the number of pipeline workers.
	WorkerCount int `koanf:"worker_count"`

	// TaskQueueSize bounds the in-memory pipeline task queue.
	TaskQueueSize int `koanf:"task_queue_size"`

	// DedupeFreshnessSeconds is how long an existing queue entry
	// suppresses duplicate webhook deliveries.
	DedupeFreshnessSeconds int `koanf:"dedupe_freshness_seconds"`

	// DedupeRetentionMinutes is how long terminal queue entries stay
	// queryable before the retention sweep may remove them.
	DedupeRetentionMinutes int `koanf:"dedupe_retention_minutes"`

	// CatalogPath optionally points at a YAML tenant catalog to seed the
	// in-memory store at startup.
	CatalogPath string `koanf:"catalog_path"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		WorkerCount:            runtime.NumCPU() * 2,
		TaskQueueSize:          10_000,
		DedupeFreshnessSeconds: 60,
		DedupeRetentionMinutes: 15,
	}
}
