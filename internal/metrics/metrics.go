package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soil_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soil_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Ingestion metrics
	IngestCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soil_ingest_cycles_total",
			Help: "Total number of ingestion cycles",
		},
		[]string{"outcome"}, // outcome: stored, invalid, store_failed
	)

	IngestCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soil_ingest_cycle_duration_seconds",
			Help:    "Time taken by one ingestion cycle",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soil_alerts_created_total",
			Help: "Total number of alerts persisted",
		},
		[]string{"type"},
	)

	AlertPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soil_alert_persist_failures_total",
			Help: "Total number of alert inserts that failed",
		},
	)

	// Live channel metrics
	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "soil_live_subscribers",
			Help: "Number of connected live subscribers",
		},
	)

	LiveEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soil_live_events_total",
			Help: "Total number of events broadcast",
		},
		[]string{"event"},
	)

	LiveSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soil_live_send_failures_total",
			Help: "Total number of subscribers dropped because a send failed",
		},
	)

	// Kafka mirror metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soil_kafka_publish_total",
			Help: "Total number of events mirrored to Kafka",
		},
		[]string{"status"}, // status: success, failed
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soil_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
