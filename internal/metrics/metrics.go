// Package metrics provides Prometheus metrics for the offline sync subsystem.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActionsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncbox_actions_enqueued_total",
			Help: "Total number of actions enqueued",
		},
		[]string{"type"},
	)
	ActionsReplayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncbox_actions_replayed_total",
			Help: "Total number of actions replayed successfully",
		},
		[]string{"type"},
	)
	ActionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncbox_actions_failed_total",
			Help: "Total number of replay attempts that failed",
		},
		[]string{"type"},
	)
	ActionsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncbox_actions_skipped_total",
			Help: "Total number of actions skipped for lack of a registered handler",
		},
		[]string{"type"},
	)
	ActionsExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncbox_actions_exhausted_total",
			Help: "Total number of actions skipped after reaching the retry cap",
		},
		[]string{"type"},
	)
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncbox_queue_depth",
			Help: "Current number of pending actions in the sync queue",
		},
	)
	DrainDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncbox_drain_duration_seconds",
			Help:    "Duration of drain passes in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"result"},
	)
	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncbox_handler_duration_seconds",
			Help:    "Replay handler execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type", "status"},
	)
	SnapshotsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncbox_snapshots_saved_total",
			Help: "Total number of performance snapshots saved",
		},
	)
	SnapshotsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncbox_snapshots_evicted_total",
			Help: "Total number of performance snapshots evicted by the retention cap",
		},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncbox_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncbox_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordActionEnqueued(actionType string) {
	ActionsEnqueued.WithLabelValues(actionType).Inc()
}

func RecordActionReplayed(actionType string, duration time.Duration) {
	ActionsReplayed.WithLabelValues(actionType).Inc()
	HandlerDuration.WithLabelValues(actionType, "ok").Observe(duration.Seconds())
}

func RecordActionFailed(actionType string, duration time.Duration) {
	ActionsFailed.WithLabelValues(actionType).Inc()
	HandlerDuration.WithLabelValues(actionType, "error").Observe(duration.Seconds())
}

func RecordActionSkipped(actionType string) {
	ActionsSkipped.WithLabelValues(actionType).Inc()
}

func RecordActionExhausted(actionType string) {
	ActionsExhausted.WithLabelValues(actionType).Inc()
}

func RecordDrain(result string, duration time.Duration) {
	DrainDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func UpdateQueueDepth(depth int) {
	QueueDepth.Set(float64(depth))
}

func RecordSnapshotSaved(evicted int) {
	SnapshotsSaved.Inc()
	if evicted > 0 {
		SnapshotsEvicted.Add(float64(evicted))
	}
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
