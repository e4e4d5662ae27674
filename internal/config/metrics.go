package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks configuration load/fallback behaviour for one component
// (e.g. "scheduler", "gardener"), parameterized so multiple components can
// each get their own metric family without name collisions.
type Metrics struct {
	LoadTimestamp         prometheus.Gauge
	ValidationErrorsTotal *prometheus.CounterVec
	FallbacksTotal        *prometheus.CounterVec
	FallbackActive        prometheus.Gauge
}

// NewMetrics creates a Metrics family prefixed with component. The
// collectors are not registered; call MustRegister to expose them on a
// registry (the bot registers on prometheus.DefaultRegisterer at startup).
func NewMetrics(component string) *Metrics {
	return &Metrics{
		LoadTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_load_timestamp", component),
			Help: fmt.Sprintf("Unix timestamp of last %s configuration load", component),
		}),
		ValidationErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_validation_errors_total", component),
			Help: fmt.Sprintf("Total %s configuration validation errors by field", component),
		}, []string{"field"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_fallbacks_total", component),
			Help: fmt.Sprintf("Total %s configuration fallback operations by field", component),
		}, []string{"field"}),
		FallbackActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_fallback_active", component),
			Help: fmt.Sprintf("1 if any %s configuration fallback is active, 0 otherwise", component),
		}),
	}
}

// MustRegister registers the family's collectors with reg, panicking on a
// name collision — construct one Metrics per component per process.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.LoadTimestamp, m.ValidationErrorsTotal, m.FallbacksTotal, m.FallbackActive)
}

func (m *Metrics) RecordLoadTimestamp() { m.LoadTimestamp.SetToCurrentTime() }

func (m *Metrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

func (m *Metrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

func (m *Metrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
		return
	}
	m.FallbackActive.Set(0)
}
