package worker

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.CronSchedule != "0 3 * * *" {
		t.Errorf("Expected CronSchedule '0 3 * * *', got '%s'", cfg.CronSchedule)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Expected Timezone 'UTC', got '%s'", cfg.Timezone)
	}
	if cfg.ScanTimeout != 10*time.Minute {
		t.Errorf("Expected ScanTimeout 10m, got %v", cfg.ScanTimeout)
	}
	if cfg.PruneConcurrency != 5 {
		t.Errorf("Expected PruneConcurrency 5, got %d", cfg.PruneConcurrency)
	}
}

func TestDefaultConfig_Immutability(t *testing.T) {
	cfg1 := DefaultConfig()
	cfg2 := DefaultConfig()

	cfg1.CronSchedule = "0 6 * * *"
	cfg1.PruneConcurrency = 20

	if cfg2.CronSchedule != "0 3 * * *" {
		t.Error("DefaultConfig returned a shared instance instead of a new one")
	}
	if cfg2.PruneConcurrency != 5 {
		t.Error("DefaultConfig returned a shared instance instead of a new one")
	}
}

func TestGardenerConfig_Validate_ValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got error: %v", err)
	}
}

func TestGardenerConfig_Validate_InvalidCronSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CronSchedule = "invalid cron"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for invalid cron schedule")
	}
}

func TestGardenerConfig_Validate_EmptyCronSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CronSchedule = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for empty cron schedule")
	}
}

func TestGardenerConfig_Validate_InvalidTimezone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Invalid/Timezone"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for invalid timezone")
	}
}

func TestGardenerConfig_Validate_ScanTimeoutOutOfRange(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		valid    bool
	}{
		{"below min", 30 * time.Second, false},
		{"min valid", time.Minute, true},
		{"mid", 10 * time.Minute, true},
		{"max valid", time.Hour, true},
		{"above max", 2 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ScanTimeout = tt.duration
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config, got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected validation error for duration %v", tt.duration)
			}
		})
	}
}

func TestGardenerConfig_Validate_PruneConcurrencyBoundary(t *testing.T) {
	tests := []struct {
		name  string
		value int
		valid bool
	}{
		{"min valid (1)", 1, true},
		{"max valid (50)", 50, true},
		{"below min (0)", 0, false},
		{"negative", -1, false},
		{"above max (51)", 51, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.PruneConcurrency = tt.value
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config, got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected validation error for value %d", tt.value)
			}
		})
	}
}

func TestGardenerConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := GardenerConfig{
		CronSchedule:     "invalid",
		Timezone:         "Invalid/Zone",
		ScanTimeout:      0,
		PruneConcurrency: 0,
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation errors for multiple invalid fields")
	}
}

var globalTestMetrics = NewGardenerMetrics()

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("Failed to set %s: %v", key, err)
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("Failed to unset %s: %v", key, err)
	}
}

func TestLoadConfigFromEnv_AllEnvVarsValid(t *testing.T) {
	setEnv(t, "GARDENER_CRON_SCHEDULE", "0 6 * * *")
	setEnv(t, "GARDENER_TIMEZONE", "America/New_York")
	setEnv(t, "GARDENER_SCAN_TIMEOUT", "20m")
	setEnv(t, "GARDENER_PRUNE_CONCURRENCY", "8")
	defer func() {
		unsetEnv(t, "GARDENER_CRON_SCHEDULE")
		unsetEnv(t, "GARDENER_TIMEZONE")
		unsetEnv(t, "GARDENER_SCAN_TIMEOUT")
		unsetEnv(t, "GARDENER_PRUNE_CONCURRENCY")
	}()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if cfg.CronSchedule != "0 6 * * *" {
		t.Errorf("Expected CronSchedule '0 6 * * *', got '%s'", cfg.CronSchedule)
	}
	if cfg.Timezone != "America/New_York" {
		t.Errorf("Expected Timezone 'America/New_York', got '%s'", cfg.Timezone)
	}
	if cfg.ScanTimeout != 20*time.Minute {
		t.Errorf("Expected ScanTimeout 20m, got %v", cfg.ScanTimeout)
	}
	if cfg.PruneConcurrency != 8 {
		t.Errorf("Expected PruneConcurrency 8, got %d", cfg.PruneConcurrency)
	}
	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
}

func TestLoadConfigFromEnv_MissingEnvVars(t *testing.T) {
	unsetEnv(t, "GARDENER_CRON_SCHEDULE")
	unsetEnv(t, "GARDENER_TIMEZONE")
	unsetEnv(t, "GARDENER_SCAN_TIMEOUT")
	unsetEnv(t, "GARDENER_PRUNE_CONCURRENCY")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.CronSchedule != defaults.CronSchedule {
		t.Errorf("Expected default CronSchedule, got '%s'", cfg.CronSchedule)
	}
	if cfg.Timezone != defaults.Timezone {
		t.Errorf("Expected default Timezone, got '%s'", cfg.Timezone)
	}
	if cfg.ScanTimeout != defaults.ScanTimeout {
		t.Errorf("Expected default ScanTimeout, got %v", cfg.ScanTimeout)
	}
	if cfg.PruneConcurrency != defaults.PruneConcurrency {
		t.Errorf("Expected default PruneConcurrency, got %d", cfg.PruneConcurrency)
	}
	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
}

func TestLoadConfigFromEnv_InvalidCronSchedule(t *testing.T) {
	setEnv(t, "GARDENER_CRON_SCHEDULE", "invalid cron")
	defer unsetEnv(t, "GARDENER_CRON_SCHEDULE")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if cfg.CronSchedule != DefaultConfig().CronSchedule {
		t.Errorf("Expected default CronSchedule, got '%s'", cfg.CronSchedule)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "configuration fallback applied") {
		t.Error("Expected fallback warning in logs")
	}
	if !strings.Contains(logOutput, "cron_schedule") {
		t.Error("Expected cron_schedule field in warning")
	}
}

func TestLoadConfigFromEnv_InvalidTimezone(t *testing.T) {
	setEnv(t, "GARDENER_TIMEZONE", "Invalid/Timezone")
	defer unsetEnv(t, "GARDENER_TIMEZONE")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if cfg.Timezone != DefaultConfig().Timezone {
		t.Errorf("Expected default Timezone, got '%s'", cfg.Timezone)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "configuration fallback applied") {
		t.Error("Expected fallback warning in logs")
	}
}

func TestLoadConfigFromEnv_InvalidScanTimeout(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"too short", "10s"},
		{"too long", "3h"},
		{"invalid format", "not-a-duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, "GARDENER_SCAN_TIMEOUT", tt.value)
			defer unsetEnv(t, "GARDENER_SCAN_TIMEOUT")

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			if cfg.ScanTimeout != DefaultConfig().ScanTimeout {
				t.Errorf("Expected default ScanTimeout, got %v", cfg.ScanTimeout)
			}
			if !strings.Contains(buf.String(), "configuration fallback applied") {
				t.Error("Expected fallback warning in logs")
			}
		})
	}
}

func TestLoadConfigFromEnv_InvalidPruneConcurrency(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"zero", "0"},
		{"negative", "-1"},
		{"too high", "51"},
		{"invalid format", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, "GARDENER_PRUNE_CONCURRENCY", tt.value)
			defer unsetEnv(t, "GARDENER_PRUNE_CONCURRENCY")

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			if cfg.PruneConcurrency != DefaultConfig().PruneConcurrency {
				t.Errorf("Expected default PruneConcurrency, got %d", cfg.PruneConcurrency)
			}
			if !strings.Contains(buf.String(), "configuration fallback applied") {
				t.Error("Expected fallback warning in logs")
			}
		})
	}
}

func TestLoadConfigFromEnv_PartiallyValid(t *testing.T) {
	setEnv(t, "GARDENER_CRON_SCHEDULE", "0 6 * * *")
	setEnv(t, "GARDENER_TIMEZONE", "Invalid/Zone")
	setEnv(t, "GARDENER_SCAN_TIMEOUT", "15m")
	setEnv(t, "GARDENER_PRUNE_CONCURRENCY", "invalid")
	defer func() {
		unsetEnv(t, "GARDENER_CRON_SCHEDULE")
		unsetEnv(t, "GARDENER_TIMEZONE")
		unsetEnv(t, "GARDENER_SCAN_TIMEOUT")
		unsetEnv(t, "GARDENER_PRUNE_CONCURRENCY")
	}()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if cfg.CronSchedule != "0 6 * * *" {
		t.Errorf("Expected CronSchedule '0 6 * * *', got '%s'", cfg.CronSchedule)
	}
	if cfg.ScanTimeout != 15*time.Minute {
		t.Errorf("Expected ScanTimeout 15m, got %v", cfg.ScanTimeout)
	}
	if cfg.Timezone != DefaultConfig().Timezone {
		t.Errorf("Expected default Timezone, got '%s'", cfg.Timezone)
	}
	if cfg.PruneConcurrency != DefaultConfig().PruneConcurrency {
		t.Errorf("Expected default PruneConcurrency, got %d", cfg.PruneConcurrency)
	}

	warningCount := strings.Count(buf.String(), "configuration fallback applied")
	if warningCount != 2 {
		t.Errorf("Expected 2 warnings, got %d", warningCount)
	}
}
