// Package metrics is the process's Prometheus registry: feed polling,
// delivery, the subscriber store and the admin HTTP surface all record
// through here so a single /metrics endpoint covers the whole bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics cover the admin surface (/healthz, /readyz, /metrics).
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests to the admin server",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Admin HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Feed polling metrics.
var (
	FeedPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rssbot_feed_polls_total",
			Help: "Total feed poll attempts by outcome",
		},
		[]string{"outcome"}, // unchanged, updated, error
	)

	FeedPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rssbot_feed_poll_duration_seconds",
			Help:    "Time taken to fetch and parse one feed",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	FeedsDownGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rssbot_feeds_down",
			Help: "Number of feeds currently marked unreachable (down_time set)",
		},
	)

	FeedsTrackedGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rssbot_feeds_tracked",
			Help: "Number of feeds currently tracked in the store",
		},
	)

	SchedulerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rssbot_scheduler_queue_depth",
			Help: "Number of feeds currently queued for polling",
		},
	)

	SchedulerThrottleSleeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rssbot_scheduler_throttle_sleeps_total",
			Help: "Total number of times the scheduler slept to respect min_interval",
		},
	)
)

// Delivery metrics.
var (
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rssbot_deliveries_total",
			Help: "Total message delivery attempts by outcome",
		},
		[]string{"outcome"}, // sent, retried, unsubscribed, migrated, failed
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rssbot_delivery_duration_seconds",
			Help:    "Time taken to deliver one message to one subscriber",
			Buckets: prometheus.DefBuckets,
		},
	)

	SubscribersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rssbot_subscribers_total",
			Help: "Total number of distinct subscriber chat IDs",
		},
	)
)

// Gardener metrics.
var (
	GardenerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rssbot_gardener_runs_total",
			Help: "Total gardener prune runs by status",
		},
		[]string{"status"}, // success, failure
	)

	GardenerSubscribersPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rssbot_gardener_subscribers_pruned_total",
			Help: "Total subscribers removed by the gardener because the bot has left or been kicked from their chat",
		},
	)

	GardenerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rssbot_gardener_last_run_timestamp",
			Help: "Unix timestamp of the last gardener run",
		},
	)
)

// RecordHTTPRequest records one admin HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordFeedPoll records the outcome and latency of one poll cycle.
func RecordFeedPoll(outcome string, duration time.Duration) {
	FeedPollsTotal.WithLabelValues(outcome).Inc()
	FeedPollDuration.Observe(duration.Seconds())
}

// RecordDelivery records the outcome and latency of one delivery attempt.
func RecordDelivery(outcome string, duration time.Duration) {
	DeliveriesTotal.WithLabelValues(outcome).Inc()
	DeliveryDuration.Observe(duration.Seconds())
}

// RecordGardenerRun records one gardener pass.
func RecordGardenerRun(success bool, subscribersPruned int) {
	status := "success"
	if !success {
		status = "failure"
	}
	GardenerRunsTotal.WithLabelValues(status).Inc()
	GardenerSubscribersPrunedTotal.Add(float64(subscribersPruned))
	GardenerLastRunTimestamp.SetToCurrentTime()
}
