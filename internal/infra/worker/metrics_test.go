package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewGardenerMetrics(t *testing.T) {
	m := NewGardenerMetrics()

	if m == nil {
		t.Fatal("NewGardenerMetrics returned nil")
	}
	if m.Metrics == nil {
		t.Fatal("embedded config.Metrics is nil")
	}

	// Collectors are created unregistered; registering the family on a
	// fresh registry must succeed exactly once.
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	// Exercise the embedded recorders; a panic here means the collectors
	// weren't wired correctly.
	m.RecordLoadTimestamp()
	m.RecordValidationError("cron_schedule")
	m.RecordFallback("cron_schedule")
	m.SetFallbackActive(true)
	m.SetFallbackActive(false)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected gardener config metric families to be gathered")
	}
}

func TestGardenerMetrics_DoubleRegistrationPanics(t *testing.T) {
	m := NewGardenerMetrics()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected second MustRegister on the same registry to panic")
		}
	}()
	m.MustRegister(reg)
}
