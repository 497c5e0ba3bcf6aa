package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Evaluation sources.
const (
	SourceAPI    = "api"
	SourceSaved  = "saved"
	SourceStream = "stream"
)

var (
	MessagesEvaluatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sieve_messages_evaluated_total",
			Help: "Total number of messages evaluated against a filter (count)",
		},
		[]string{"source", "result"},
	)

	EvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sieve_evaluation_duration_ms",
			Help:    "Duration of one filter evaluation call in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"source"},
	)

	EvaluationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sieve_evaluation_errors_total",
			Help: "Total number of filter evaluation errors by error code (count)",
		},
		[]string{"source", "code"},
	)

	StreamActiveFilters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sieve_stream_active_filters",
			Help: "Number of saved filters applied to the input stream (count)",
		},
	)

	StreamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sieve_stream_messages_total",
			Help: "Total number of stream messages by outcome (count)",
		},
		[]string{"status"},
	)

	SavedFilterOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sieve_saved_filter_operations_total",
			Help: "Total number of saved filter store operations (count)",
		},
		[]string{"operation", "status"},
	)

	FilterCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sieve_filter_cache_requests_total",
			Help: "Total number of saved filter cache lookups (count)",
		},
		[]string{"result"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"strategy", "reason"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"topic", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"topic", "direction"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"topic"},
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

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"database", "operation"},
	)
)

func RegisterFilteringMetrics() {
	prometheus.MustRegister(MessagesEvaluatedTotal)
	prometheus.MustRegister(EvaluationDuration)
	prometheus.MustRegister(EvaluationErrorsTotal)
	prometheus.MustRegister(SavedFilterOperationsTotal)
	prometheus.MustRegister(FilterCacheRequestsTotal)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterStreamMetrics() {
	prometheus.MustRegister(StreamActiveFilters)
	prometheus.MustRegister(StreamMessagesTotal)
	prometheus.MustRegister(FallbackUsageTotal)
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

// RecordEvaluation counts the outcome of one evaluation call over total
// messages of which matched passed.
func RecordEvaluation(source string, total, matched int, duration time.Duration) {
	MessagesEvaluatedTotal.WithLabelValues(source, "matched").Add(float64(matched))
	MessagesEvaluatedTotal.WithLabelValues(source, "filtered").Add(float64(total - matched))
	EvaluationDuration.WithLabelValues(source).Observe(float64(duration.Milliseconds()))
}

func IncEvaluationError(source, code string) {
	EvaluationErrorsTotal.WithLabelValues(source, code).Inc()
}

func SetStreamActiveFilters(count int) {
	StreamActiveFilters.Set(float64(count))
}

func IncStreamMessages(status string) {
	StreamMessagesTotal.WithLabelValues(status).Inc()
}

func IncSavedFilterOperation(operation, status string) {
	SavedFilterOperationsTotal.WithLabelValues(operation, status).Inc()
}

func IncFilterCacheRequest(result string) {
	FilterCacheRequestsTotal.WithLabelValues(result).Inc()
}

func IncKafkaMessagesRead(topic string) {
	KafkaMessagesReadTotal.WithLabelValues(topic).Inc()
}

func IncKafkaMessagesWritten(topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(topic).Inc()
}

func ObserveKafkaMessageSize(topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(topic, direction).Observe(float64(sizeBytes))
}

func ObserveKafkaWriteDuration(topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(database, operation).Observe(float64(duration.Milliseconds()))
}
