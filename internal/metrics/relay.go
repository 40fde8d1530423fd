package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Local mirrors of the gauges, since prometheus metrics can't be read directly
var (
	activeConnectionsCount int64
	messagesProcessedCount int64
	messagesSentCount      int64
)

// IncrementMessagesProcessed counts one inbound frame.
func IncrementMessagesProcessed(size int) {
	MessagesReceived.Inc()
	MessageSizeBytes.Observe(float64(size))
	atomic.AddInt64(&messagesProcessedCount, 1)
}

// GetMessagesProcessedCount returns the number of inbound frames since start
func GetMessagesProcessedCount() int64 {
	return atomic.LoadInt64(&messagesProcessedCount)
}

// IncrementMessagesSent counts one outbound frame.
func IncrementMessagesSent(size int) {
	MessagesSent.Inc()
	MessageSizeBytesSent.Observe(float64(size))
	atomic.AddInt64(&messagesSentCount, 1)
}

// GetMessagesSentCount returns the number of outbound frames since start
func GetMessagesSentCount() int64 {
	return atomic.LoadInt64(&messagesSentCount)
}

// IncrementActiveConnections increments both the prometheus gauge and our local counter
func IncrementActiveConnections() {
	ActiveConnections.Inc()
	atomic.AddInt64(&activeConnectionsCount, 1)
}

// DecrementActiveConnections decrements both the prometheus gauge and our local counter
func DecrementActiveConnections() {
	ActiveConnections.Dec()
	atomic.AddInt64(&activeConnectionsCount, -1)
}

// GetActiveConnectionsCount returns the current number of active WebSocket connections
func GetActiveConnectionsCount() int64 {
	return atomic.LoadInt64(&activeConnectionsCount)
}

// Metrics for tracking relay performance and usage
var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edge_relay_active_connections",
		Help: "The number of active WebSocket connections",
	})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edge_relay_active_subscriptions",
		Help: "The number of active subscriptions",
	})

	SlowConsumerDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edge_relay_slow_consumer_disconnects_total",
		Help: "Connections dropped because their outbound queue was full",
	})

	// Message metrics
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edge_relay_messages_received_total",
		Help: "The total number of messages received",
	})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edge_relay_messages_sent_total",
		Help: "The total number of messages sent",
	})

	MessageSizeBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "edge_relay_message_size_bytes",
		Help:    "Size of received messages in bytes",
		Buckets: prometheus.ExponentialBuckets(10, 10, 6), // 10, 100, 1000, ..., 1000000
	})

	MessageSizeBytesSent = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "edge_relay_message_size_bytes_sent",
		Help:    "Size of sent messages in bytes",
		Buckets: prometheus.ExponentialBuckets(10, 10, 6),
	})

	// Command metrics
	CommandsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_relay_commands_received_total",
		Help: "The total number of commands received by type",
	}, []string{"type"}) // "EVENT", "REQ", "CLOSE", etc.

	CommandProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edge_relay_command_processing_duration_seconds",
		Help:    "Time to process different command types",
		Buckets: prometheus.ExponentialBuckets(0.0001, 10, 5),
	}, []string{"type"})

	RateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_relay_rate_limit_hits_total",
		Help: "Rejected attempts by rate limited action",
	}, []string{"action"})

	// Event metrics
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_relay_events_processed_total",
		Help: "Submitted events by store outcome",
	}, []string{"outcome"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_relay_events_rejected_total",
		Help: "Rejected events by reason prefix",
	}, []string{"reason"})

	EventsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edge_relay_events_broadcast_total",
		Help: "EVENT frames queued to live subscriptions",
	})

	// Storage metrics
	StoredEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edge_relay_events_stored",
		Help: "The number of events currently held in memory",
	})

	Tombstones = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edge_relay_tombstones",
		Help: "The number of id and address tombstones held",
	})

	StorageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_relay_storage_operations_total",
		Help: "Store mutations by operation",
	}, []string{"operation"}) // "stored", "replaced", "evicted", "deleted", "purged", "compacted"

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_relay_http_requests_total",
		Help: "The total number of HTTP requests by path",
	}, []string{"path"})

	// Error metrics
	ErrorsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_relay_errors_total",
		Help: "The total number of errors by type",
	}, []string{"type"})
)

// RegisterMetrics pre-creates the common label values so they export as zero.
func RegisterMetrics() {
	for _, cmdType := range []string{"EVENT", "REQ", "CLOSE", "AUTH", "COUNT"} {
		CommandsReceived.WithLabelValues(cmdType)
		CommandProcessingDuration.WithLabelValues(cmdType)
	}

	for _, outcome := range []string{"stored", "ephemeral", "duplicate", "tombstoned", "superseded"} {
		EventsProcessed.WithLabelValues(outcome)
	}

	for _, reason := range []string{"invalid", "pow", "blocked", "rate-limited", "error"} {
		EventsRejected.WithLabelValues(reason)
	}

	for _, action := range []string{"event", "req", "frame"} {
		RateLimitHits.WithLabelValues(action)
	}

	for _, op := range []string{"stored", "replaced", "evicted", "deleted", "purged", "compacted"} {
		StorageOperations.WithLabelValues(op)
	}

	for _, errType := range []string{"validation", "rate_limit", "policy", "storage", "network", "internal"} {
		ErrorsCount.WithLabelValues(errType)
	}

	for _, path := range []string{"/", "ws", "/health", "/api/stats"} {
		HTTPRequests.WithLabelValues(path)
	}
}
