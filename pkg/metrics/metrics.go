package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_messages_total",
			Help: "Total number of deliveries dispatched, by final status (count)",
		},
		[]string{"subscription", "status"},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_duration_ms",
			Help:    "End-to-end duration of one dispatch call in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"subscription", "status"},
	)

	MessagesInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_messages_in_flight",
			Help: "Deliveries currently held by the drain lock (count)",
		},
		[]string{"subscription"},
	)

	PublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_publishes_total",
			Help: "Total number of response publishes attempted (count)",
		},
		[]string{"subscription", "status"},
	)

	WatcherDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_decisions_total",
			Help: "Watcher decisions by kind (count)",
		},
		[]string{"subscription", "decision"},
	)

	WatcherTrackedMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_tracked_messages",
			Help: "Message identities currently tracked by the counter watcher (count)",
		},
	)

	BrokerConsumeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_consume_errors_total",
			Help: "Transport-level fetch/receive errors (count)",
		},
		[]string{"broker", "topic"},
	)

	BrokerRedeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_redeliveries_total",
			Help: "Messages redelivered after a retry decision (count)",
		},
		[]string{"broker", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Messages routed to the dead-letter topic (count)",
		},
		[]string{"broker", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_rate_limited_total",
			Help: "Deliveries delayed by the rate-limit middleware (count)",
		},
		[]string{"subscription"},
	)
)

func RegisterDispatchMetrics() {
	prometheus.MustRegister(
		MessagesDispatchedTotal,
		DispatchDuration,
		MessagesInFlight,
		PublishesTotal,
		WatcherDecisionsTotal,
		WatcherTrackedMessages,
		RateLimitedTotal,
	)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(
		BrokerConsumeErrorsTotal,
		BrokerRedeliveriesTotal,
		DLQMessagesTotal,
	)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
}
