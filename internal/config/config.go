// Package config defines service configuration and its defaults.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Email providers.
const (
	ProviderNoop   = "noop"
	ProviderResend = "resend"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// MetricsEnabled turns Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// DatabasePath is the SQLite DSN, a file path or ":memory:".
	DatabasePath string `koanf:"database_path"`

	// EvalParallelism bounds concurrent per-GM evaluations.
	EvalParallelism int `koanf:"eval_parallelism"`

	// DefaultMinimumBreakMinutes applies when a game sets no break.
	DefaultMinimumBreakMinutes int `koanf:"default_minimum_break_minutes"`

	// GameCacheTTLSeconds bounds the game mapping cache.
	GameCacheTTLSeconds int `koanf:"game_cache_ttl_seconds"`

	// RandomSeed seeds the selector; 0 seeds from the clock.
	RandomSeed uint64 `koanf:"random_seed"`

	// BatchIntervalSeconds schedules the batch job; 0 disables it.
	BatchIntervalSeconds int `koanf:"batch_interval_seconds"`
	// BatchLookaheadDays limits how far ahead a batch looks; 0 is unbounded.
	BatchLookaheadDays int `koanf:"batch_lookahead_days"`

	// QueueSize bounds the notification queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of notification workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize sets how many notification keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	EmailProvider       string  `koanf:"email_provider"`
	ResendAPIKey        string  `koanf:"resend_api_key"`
	EmailFrom           string  `koanf:"email_from"`
	NotifyRatePerSecond float64 `koanf:"notify_rate_per_second"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                   "info",
		LogFormat:                  "text",
		Addr:                       ":9080",
		MetricsEnabled:             true,
		DatabasePath:               "gmassign.db",
		EvalParallelism:            runtime.NumCPU(),
		DefaultMinimumBreakMinutes: 30,
		GameCacheTTLSeconds:        300,
		BatchIntervalSeconds:       0,
		BatchLookaheadDays:         0,
		QueueSize:                  1024,
		WorkerCount:                2,
		DedupeSize:                 10_000,
		EmailProvider:              ProviderNoop,
		EmailFrom:                  "planning@localhost",
		NotifyRatePerSecond:        2,
	}
}

// GameCacheTTL returns the cache TTL as a duration.
func (c *Config) GameCacheTTL() time.Duration {
	return time.Duration(c.GameCacheTTLSeconds) * time.Second
}

// BatchInterval returns the batch period; zero means disabled.
func (c *Config) BatchInterval() time.Duration {
	return time.Duration(c.BatchIntervalSeconds) * time.Second
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DatabasePath == "":
		return fmt.Errorf("%w: database_path must not be empty", ErrInvalidConfig)
	case c.DefaultMinimumBreakMinutes < 0:
		return fmt.Errorf("%w: default_minimum_break_minutes must not be negative", ErrInvalidConfig)
	case c.BatchIntervalSeconds < 0 || c.BatchLookaheadDays < 0:
		return fmt.Errorf("%w: batch settings must not be negative", ErrInvalidConfig)
	}
	switch c.EmailProvider {
	case ProviderNoop:
	case ProviderResend:
		if c.ResendAPIKey == "" || c.EmailFrom == "" {
			return fmt.Errorf("%w: resend requires resend_api_key and email_from", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown email_provider %q", ErrInvalidConfig, c.EmailProvider)
	}
	return nil
}
