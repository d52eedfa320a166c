package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counts how many messages went through the duplicate check.
var MessagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "dupebot_messages_processed_total",
	Help: "Total number of messages checked for duplicate links",
})

// Counts every link looked up in the fingerprint store.
var LinksChecked = promauto.NewCounter(prometheus.CounterOpts{
	Name: "dupebot_links_checked_total",
	Help: "Total number of links checked against the fingerprint store",
})

// Counts links that were flagged as duplicates.
var DuplicatesDetected = promauto.NewCounter(prometheus.CounterOpts{
	Name: "dupebot_duplicates_detected_total",
	Help: "Total number of links that were flagged as duplicates",
})

// Notice metrics
var (
	NoticesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupebot_notices_sent_total",
		Help: "Total number of duplicate notices sent",
	})

	NoticeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupebot_notice_failures_total",
		Help: "Total number of duplicate notices that could not be sent",
	})

	GateOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dupebot_gate_outcomes_total",
			Help: "How interaction gates closed (removed, ignored, timeout, cancelled, failed)",
		},
		[]string{"outcome"},
	)

	UnauthorizedActivations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupebot_unauthorized_activations_total",
		Help: "Total number of button presses by users other than the original author",
	})

	OpenGates = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dupebot_open_gates",
		Help: "Number of notices currently listening for button presses",
	})
)

// Cache metrics
var (
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dupebot_cache_errors_total",
			Help: "Total number of failed fingerprint store operations",
		},
		[]string{"operation"},
	)

	CacheLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dupebot_cache_latency_seconds",
			Help:    "Time taken by fingerprint store operations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // From 0.5ms to ~1s
		},
		[]string{"operation"},
	)

	DeletionsSynced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupebot_deletions_synced_total",
		Help: "Total number of message deletions forwarded to the fingerprint store",
	})

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dupebot_circuit_breaker_state",
			Help: "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service"},
	)
)

// Event pipeline metrics
var (
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dupebot_events_received_total",
			Help: "Total number of events received from the gateway, before redelivery and queue checks",
		},
		[]string{"kind"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dupebot_events_dropped_total",
			Help: "Total number of gateway events dropped (queue full or redelivered)",
		},
		[]string{"reason"},
	)
)
