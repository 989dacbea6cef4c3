package config

import (
	"errors"
	"fmt"

	"github.com/flemzord/reaper/internal/core"
	"github.com/robfig/cron/v3"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry, and validates the
// log, expire and queue sections. Defaults should be applied first.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	for _, id := range core.Missing(ids) {
		errs = append(errs, fmt.Errorf("config: unknown module %q", id))
	}

	errs = append(errs, validateLog(cfg.Log)...)
	errs = append(errs, validateExpire(cfg.Expire)...)
	errs = append(errs, validateQueue(cfg.Queue)...)

	return errors.Join(errs...)
}

func validateLog(l LogConfig) []error {
	var errs []error
	switch l.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: log.level: unsupported level %q", l.Level))
	}
	switch l.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format: unsupported format %q", l.Format))
	}
	return errs
}

func validateExpire(e ExpireConfig) []error {
	var errs []error
	if e.Schedule != "" {
		if _, err := cron.ParseStandard(e.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("config: expire.schedule: %w", err))
		}
	}
	if e.Priority < 0 {
		errs = append(errs, fmt.Errorf("config: expire.priority must not be negative, got %d", e.Priority))
	}
	return errs
}

func validateQueue(q QueueConfig) []error {
	var errs []error
	if q.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(q.CleanupSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: queue.cleanup_schedule: %w", err))
		}
	}
	if q.PollInterval < 0 {
		errs = append(errs, errors.New("config: queue.poll_interval must not be negative"))
	}
	if q.CleanupAge < 0 {
		errs = append(errs, errors.New("config: queue.cleanup_age must not be negative"))
	}
	return errs
}
