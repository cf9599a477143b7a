package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail2alert_messages_total",
			Help: "Total number of messages routed, by manager and outcome (count)",
		},
		[]string{"manager", "status"},
	)

	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mail2alert_processing_duration_ms",
			Help:    "Duration of routing one message through a manager in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"manager"},
	)

	RuleMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail2alert_rule_matches_total",
			Help: "Total number of rules that matched a message (count)",
		},
		[]string{"manager", "rule"},
	)

	RuleErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail2alert_rule_errors_total",
			Help: "Total number of rule evaluation errors, by applied policy (count)",
		},
		[]string{"manager", "policy"},
	)

	EventCorrectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail2alert_event_corrections_total",
			Help: "Total number of literal events rewritten by the build-state tracker (count)",
		},
		[]string{"from", "to"},
	)

	SnapshotEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail2alert_snapshot_entries_total",
			Help: "Total number of status snapshot entries handled, by outcome (count)",
		},
		[]string{"status"},
	)

	ParseFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail2alert_parse_failures_total",
			Help: "Total number of inbound messages that could not be parsed (count)",
		},
		[]string{"source"},
	)

	ActionsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail2alert_actions_dropped_total",
			Help: "Total number of action references that could not be resolved (count)",
		},
		[]string{"manager", "reason"},
	)

	TopologyRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail2alert_topology_refresh_total",
			Help: "Total number of pipeline topology refreshes (count)",
		},
		[]string{"status"},
	)

	TopologyPipelines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mail2alert_topology_pipelines",
			Help: "Number of pipelines in the current topology snapshot (count)",
		},
	)

	SlackPostsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail2alert_slack_posts_total",
			Help: "Total number of chat notifications posted (count)",
		},
		[]string{"status"},
	)

	SMTPForwardTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail2alert_smtp_forward_total",
			Help: "Total number of messages relayed to the upstream mail server (count)",
		},
		[]string{"status"},
	)

	SMTPRefusedRecipientsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mail2alert_smtp_refused_recipients_total",
			Help: "Total number of recipients refused by the upstream mail server (count)",
		},
	)

	DecisionsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail2alert_decisions_published_total",
			Help: "Total number of routing decisions published to the broker (count)",
		},
		[]string{"status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "operation"},
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
		[]string{"limiter", "status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)
)

var registerOnce sync.Once

// RegisterAll registers every collector with the default registry. Safe to call more than once.
func RegisterAll() {
	registerOnce.Do(func() {
		RegisterRoutingMetrics()
		RegisterDeliveryMetrics()
		RegisterBrokerMetrics()
		RegisterCircuitBreakerMetrics()
	})
}

func RegisterRoutingMetrics() {
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(ProcessingDuration)
	prometheus.MustRegister(RuleMatchesTotal)
	prometheus.MustRegister(RuleErrorsTotal)
	prometheus.MustRegister(EventCorrectionsTotal)
	prometheus.MustRegister(SnapshotEntriesTotal)
	prometheus.MustRegister(ParseFailuresTotal)
	prometheus.MustRegister(ActionsDroppedTotal)
	prometheus.MustRegister(TopologyRefreshTotal)
	prometheus.MustRegister(TopologyPipelines)
}

func RegisterDeliveryMetrics() {
	prometheus.MustRegister(SlackPostsTotal)
	prometheus.MustRegister(SMTPForwardTotal)
	prometheus.MustRegister(SMTPRefusedRecipientsTotal)
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(DecisionsPublishedTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveProcessingDuration(manager string, duration time.Duration) {
	ProcessingDuration.WithLabelValues(manager).Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}
