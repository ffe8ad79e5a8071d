// Package metrics holds the Prometheus instruments of the insights service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CategoryDuration times one category pipeline (query, split, compare).
	CategoryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insights_category_duration_seconds",
			Help:    "Duration of one insight category computation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	// CategoryFailures counts failed category computations by reason.
	CategoryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_category_failures_total",
			Help: "Total number of failed insight category computations",
		},
		[]string{"category", "reason"}, // "data_source", "no_data"
	)

	// ReportsBuilt counts completed report builds.
	ReportsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_reports_total",
			Help: "Total number of insight reports built",
		},
		[]string{"trigger"}, // "api", "scheduler", "cli"
	)

	// NewEvents is the size of new_events of the latest scheduled report.
	NewEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "insights_new_events",
			Help: "Number of new dimension keys in the latest scheduled report",
		},
		[]string{"project_id", "category"},
	)

	// SchedulerLastRun is the unix time of the last completed scheduler tick.
	SchedulerLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insights_scheduler_last_run_timestamp_seconds",
			Help: "Unix time of the last completed scheduler refresh",
		},
	)
)

// RecordCategory observes one category computation. reason is empty on success.
func RecordCategory(category string, duration time.Duration, reason string) {
	CategoryDuration.WithLabelValues(category).Observe(duration.Seconds())
	if reason != "" {
		CategoryFailures.WithLabelValues(category, reason).Inc()
	}
}

// RecordReport counts one finished report.
func RecordReport(trigger string) {
	ReportsBuilt.WithLabelValues(trigger).Inc()
}
