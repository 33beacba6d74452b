// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicare_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chronicare_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Ingestion metrics
	ReadingsEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicare_readings_evaluated_total",
			Help: "Total number of vital-sign readings evaluated",
		},
		[]string{"type"},
	)

	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicare_alert_candidates_total",
			Help: "Alert candidates produced by threshold evaluation",
		},
		[]string{"category", "severity"},
	)

	// Alert lifecycle metrics
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicare_alerts_created_total",
			Help: "Alerts persisted",
		},
		[]string{"category", "severity"},
	)

	AlertCreateFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicare_alert_create_failures_total",
			Help: "Alert candidates that could not be persisted",
		},
		[]string{"reason"}, // not_found, store
	)

	AlertAccessDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicare_alert_access_denied_total",
			Help: "Alert operations rejected by the access policy",
		},
		[]string{"action"},
	)

	// Realtime metrics
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chronicare_realtime_connections",
			Help: "Currently connected realtime channels",
		},
	)

	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicare_realtime_events_total",
			Help: "Realtime event deliveries per channel",
		},
		[]string{"status"}, // delivered, dropped
	)

	RealtimeRelayErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronicare_realtime_relay_errors_total",
			Help: "Errors publishing to or decoding from the cross-instance relay",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronicare_panics_recovered_total",
			Help: "Total number of panics recovered in HTTP handlers",
		},
	)
)
