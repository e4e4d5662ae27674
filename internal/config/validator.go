package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateCronSchedule parses schedule with the standard 5-field cron
// grammar used by the gardener's prune job.
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("cron schedule cannot be empty")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateTimezone checks that tz is a loadable IANA timezone name.
func ValidateTimezone(tz string) error {
	if tz == "" {
		return fmt.Errorf("timezone cannot be empty")
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return nil
}

// ValidateDurationRange checks min <= d <= max.
func ValidateDurationRange(d, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) > max (%v)", min, max)
	}
	if d < min {
		return fmt.Errorf("duration %v is below minimum %v", d, min)
	}
	if d > max {
		return fmt.Errorf("duration %v exceeds maximum %v", d, max)
	}
	return nil
}

// ValidatePositiveDuration checks d > 0.
func ValidatePositiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %v", d)
	}
	return nil
}

// ValidateIntRange checks min <= v <= max.
func ValidateIntRange(v, min, max int) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%d) > max (%d)", min, max)
	}
	if v < min {
		return fmt.Errorf("value %d is below minimum %d", v, min)
	}
	if v > max {
		return fmt.Errorf("value %d exceeds maximum %d", v, max)
	}
	return nil
}

// ValidateInt64Range checks min <= v <= max for 64-bit values such as
// --max-feed-size.
func ValidateInt64Range(v, min, max int64) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%d) > max (%d)", min, max)
	}
	if v < min {
		return fmt.Errorf("value %d is below minimum %d", v, min)
	}
	if v > max {
		return fmt.Errorf("value %d exceeds maximum %d", v, max)
	}
	return nil
}
