package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of order creation attempts (count)",
		},
		[]string{"status"},
	)

	OrderEventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_events_published_total",
			Help: "Total number of order event publish attempts (count)",
		},
		[]string{"status"},
	)

	MessagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_messages_processed_total",
			Help: "Total number of queue messages handled by the worker (count)",
		},
		[]string{"status"},
	)

	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_processing_duration_ms",
			Help:    "Per-message processing duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages dead-lettered (count)",
		},
		[]string{"topic", "reason"},
	)

	BrokerMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_written_total",
			Help: "Total number of messages written to the broker (count)",
		},
		[]string{"topic"},
	)

	BrokerMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_read_total",
			Help: "Total number of messages read from the broker (count)",
		},
		[]string{"topic"},
	)

	BrokerWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_write_duration_ms",
			Help:    "Duration of broker writes in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"topic"},
	)

	IdempotencyChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_idempotency_checks_total",
			Help: "Total number of idempotency-store checks (count)",
		},
		[]string{"result"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"component", "strategy"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

func RegisterOrderMetrics() {
	prometheus.MustRegister(
		OrdersCreatedTotal,
		OrderEventsPublishedTotal,
	)
}

func RegisterWorkerMetrics() {
	prometheus.MustRegister(
		MessagesProcessedTotal,
		ProcessingDuration,
		IdempotencyChecksTotal,
		FallbackUsageTotal,
	)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(
		DLQMessagesTotal,
		BrokerMessagesWrittenTotal,
		BrokerMessagesReadTotal,
		BrokerWriteDuration,
	)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(
		CircuitBreakerState,
		CircuitBreakerRequests,
		CircuitBreakerFailures,
	)
}

func RegisterRateLimitMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveProcessingDuration(d time.Duration, status string) {
	ProcessingDuration.WithLabelValues(status).Observe(float64(d.Milliseconds()))
}

func ObserveBrokerWrite(topic string, d time.Duration) {
	BrokerMessagesWrittenTotal.WithLabelValues(topic).Inc()
	BrokerWriteDuration.WithLabelValues(topic).Observe(float64(d.Milliseconds()))
}
