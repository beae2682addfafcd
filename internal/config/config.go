// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading errors wrap ErrLoadConfig; validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches log output to JSON lines.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the metrics listen address of `serve`, e.g. ":9090".
	Addr string `koanf:"addr"`

	// Store selects the ledger backend: memory or postgres.
	Store string `koanf:"store"`

	// DatabaseURL is the pgx connection string used by the postgres store.
	DatabaseURL string `koanf:"database_url"`

	// SeedFile is a YAML fixture loaded into the store and used as the
	// refresh source.
	SeedFile string `koanf:"seed_file"`

	// Schedule is the cron spec for periodic processing in `serve`.
	Schedule string `koanf:"schedule"`

	// RefreshStaleAfterMinutes is how old league data may get before a cycle
	// refreshes it.
	RefreshStaleAfterMinutes int `koanf:"refresh_stale_after_minutes"`

	// WorkerCount sets the number of league workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory league job queue.
	QueueSize int `koanf:"queue_size"`

	// RankingCacheSize bounds the ranking snapshot LRU.
	RankingCacheSize int `koanf:"ranking_cache_size"`

	// MetricsNamespace and MetricsSubsystem prefix every exported metric.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsBucketsMs overrides the latency histogram buckets (YAML only).
	MetricsBucketsMs []float64 `koanf:"metrics_buckets_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                 "info",
		Addr:                     ":9090",
		Store:                    StoreMemory,
		Schedule:                 "0 * * * *",
		RefreshStaleAfterMinutes: 60,
		WorkerCount:              runtime.NumCPU(),
		QueueSize:                1024,
		RankingCacheSize:         256,
		MetricsNamespace:         "payday",
		MetricsSubsystem:         "payouts",
	}
}

// RefreshStaleAfter returns the refresh threshold as a duration.
func (c *Config) RefreshStaleAfter() time.Duration {
	return time.Duration(c.RefreshStaleAfterMinutes) * time.Minute
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StorePostgres:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StorePostgres && c.DatabaseURL == "":
		return fmt.Errorf("%w: database_url is required for the postgres store", ErrInvalidConfig)
	case c.RefreshStaleAfterMinutes < 0:
		return fmt.Errorf("%w: refresh_stale_after_minutes must not be negative", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.RankingCacheSize < 1:
		return fmt.Errorf("%w: ranking_cache_size must be positive", ErrInvalidConfig)
	case c.MetricsNamespace == "":
		return fmt.Errorf("%w: metrics_namespace must not be empty", ErrInvalidConfig)
	}
	for i := 1; i < len(c.MetricsBucketsMs); i++ {
		if c.MetricsBucketsMs[i] <= c.MetricsBucketsMs[i-1] {
			return fmt.Errorf("%w: metrics_buckets_ms must be strictly increasing", ErrInvalidConfig)
		}
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, c.Schedule, err)
	}
	return nil
}
