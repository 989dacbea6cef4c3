// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for reaper.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Log controls the process-wide slog handler.
	Log LogConfig `yaml:"log"`

	// Expire configures the expiration sweep and its recurring trigger.
	Expire ExpireConfig `yaml:"expire"`

	// Queue configures the background job worker.
	Queue QueueConfig `yaml:"queue"`

	// Telemetry configures OpenTelemetry trace export.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "store.sqlite").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`

	// Format is "text" or "json". Defaults to text.
	Format string `yaml:"format"`
}

// ExpireConfig configures the expiration sweep.
type ExpireConfig struct {
	// Schedule is the standard 5-field cron expression that enqueues a sweep.
	Schedule string `yaml:"schedule"`

	// Priority is attached to the sweep entry and inherited by its sub-jobs.
	Priority int `yaml:"priority"`

	// OptimizeItems runs a storage optimization after each delete pass.
	// Off by default since it is expensive on large databases.
	OptimizeItems bool `yaml:"optimize_items"`

	// AuditLog is an optional JSON Lines file recording every expire hook run.
	AuditLog string `yaml:"audit_log"`
}

// QueueConfig configures the job worker and queue housekeeping.
type QueueConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
	CleanupAge      time.Duration `yaml:"cleanup_age"`
}

// TelemetryConfig configures trace export. Tracing is disabled when
// OTLPEndpoint is empty.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

const (
	DefaultExpireSchedule  = "30 3 * * *"
	DefaultCleanupSchedule = "0 * * * *"
	DefaultPollInterval    = 2 * time.Second
	DefaultCleanupAge      = 24 * time.Hour
	DefaultPriority        = 40
	DefaultServiceName     = "reaper"
)

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Expire.Schedule == "" {
		c.Expire.Schedule = DefaultExpireSchedule
	}
	if c.Expire.Priority == 0 {
		c.Expire.Priority = DefaultPriority
	}
	if c.Queue.PollInterval <= 0 {
		c.Queue.PollInterval = DefaultPollInterval
	}
	if c.Queue.CleanupSchedule == "" {
		c.Queue.CleanupSchedule = DefaultCleanupSchedule
	}
	if c.Queue.CleanupAge <= 0 {
		c.Queue.CleanupAge = DefaultCleanupAge
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
}
