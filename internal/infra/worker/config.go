// Package worker holds the gardener's periodic-job configuration: cron
// schedule, timezone and per-run tuning, loaded fail-open from the
// environment the same way the rest of the bot's ambient config is
// (internal/config's WithFallback/Int/Duration helpers).
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"rssbot/internal/config"
)

// GardenerConfig controls the daily membership-prune job described in
// §4.6: when it runs, and how many subscribers' chats it checks
// concurrently per run.
type GardenerConfig struct {
	// CronSchedule is the 5-field cron expression the prune job runs on.
	// Default: "0 3 * * *" (03:00 daily).
	CronSchedule string

	// Timezone is the IANA timezone name the schedule is evaluated in.
	// Default: "UTC".
	Timezone string

	// ScanTimeout bounds a single prune pass over every subscriber.
	// Default: 10 minutes.
	ScanTimeout time.Duration

	// PruneConcurrency caps how many subscriber chat/membership lookups
	// run concurrently within one pass.
	// Default: 5.
	PruneConcurrency int
}

// DefaultConfig returns production defaults: once daily at 03:00 UTC, a
// ten-minute scan budget, five chats checked at a time.
func DefaultConfig() GardenerConfig {
	return GardenerConfig{
		CronSchedule:     "0 3 * * *",
		Timezone:         "UTC",
		ScanTimeout:      10 * time.Minute,
		PruneConcurrency: 5,
	}
}

// Validate checks every field, aggregating all failures into one error.
func (c *GardenerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateDurationRange(c.ScanTimeout, time.Minute, time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("scan timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.PruneConcurrency, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("prune concurrency: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads GardenerConfig from the environment with the
// bot's usual fail-open strategy: an invalid value logs a warning, bumps
// metrics and falls back to the default rather than failing startup.
//
// Environment variables:
//   - GARDENER_CRON_SCHEDULE (default "0 3 * * *")
//   - GARDENER_TIMEZONE (default "UTC")
//   - GARDENER_SCAN_TIMEOUT (default "10m")
//   - GARDENER_PRUNE_CONCURRENCY (default 5)
func LoadConfigFromEnv(logger *slog.Logger, metrics *GardenerMetrics) (*GardenerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	apply := func(field string, result config.LoadResult) {
		if !result.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field)
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	result := config.WithFallback("GARDENER_CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)
	cfg.CronSchedule = result.Value.(string)
	apply("cron_schedule", result)

	result = config.WithFallback("GARDENER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	apply("timezone", result)

	result = config.Duration("GARDENER_SCAN_TIMEOUT", cfg.ScanTimeout, func(d time.Duration) error {
		return config.ValidateDurationRange(d, time.Minute, time.Hour)
	})
	cfg.ScanTimeout = result.Value.(time.Duration)
	apply("scan_timeout", result)

	result = config.Int("GARDENER_PRUNE_CONCURRENCY", cfg.PruneConcurrency, func(v int) error {
		return config.ValidateIntRange(v, 1, 50)
	})
	cfg.PruneConcurrency = result.Value.(int)
	apply("prune_concurrency", result)

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
