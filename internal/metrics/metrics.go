// Package metrics defines the prometheus instruments exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts inbound commands by action and admission outcome.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorman_commands_total",
		Help: "Commands received, labeled by action and admission outcome.",
	}, []string{"action", "outcome"})

	// ResolutionsTotal counts how pending requests ended.
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorman_resolutions_total",
		Help: "Pending request resolutions, labeled by action and resolution.",
	}, []string{"action", "resolution"})

	// ResolutionSeconds observes command-to-resolution latency.
	ResolutionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "doorman_resolution_seconds",
		Help:    "Seconds from command admission to resolution.",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"resolution"})

	// PendingRequests tracks the number of in-flight requests.
	PendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "doorman_pending_requests",
		Help: "Number of in-flight door requests.",
	})

	// SensorReadingsTotal counts raw sensor readings consumed.
	SensorReadingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doorman_sensor_readings_total",
		Help: "Raw sensor readings consumed from the bus.",
	})

	// StatusChangesTotal counts reconciled label changes by new label.
	StatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorman_status_changes_total",
		Help: "Reconciled door status changes, labeled by new label.",
	}, []string{"label"})

	// AcksTotal counts actuator acks by outcome; stray marks acks whose
	// correlation id is not tracked.
	AcksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorman_acks_total",
		Help: "Actuator acks consumed, labeled by outcome.",
	}, []string{"outcome"})

	// PublishFailuresTotal counts bus publishes that returned an error.
	PublishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doorman_publish_failures_total",
		Help: "Bus publishes that failed.",
	})
)
