package worker

import "rssbot/internal/config"

// GardenerMetrics tracks GardenerConfig's own load/fallback behaviour.
// Run-level observability (runs total, subscribers pruned, last-run timestamp)
// is recorded directly against internal/metrics' Gardener* family by the
// gardener package itself; this type only covers the config layer.
type GardenerMetrics struct {
	*config.Metrics
}

// NewGardenerMetrics creates a GardenerMetrics instance whose Prometheus
// collectors use the "gardener" component prefix. They are not registered;
// call MustRegister to expose them.
func NewGardenerMetrics() *GardenerMetrics {
	return &GardenerMetrics{Metrics: config.NewMetrics("gardener")}
}
