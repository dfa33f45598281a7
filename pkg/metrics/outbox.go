package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox publish results.
const (
	OutboxPublished    = "published"
	OutboxRetry        = "retry"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics covers the outbox publisher loop.
type OutboxMetrics struct {
	events *prometheus.CounterVec
	lag    prometheus.Histogram
	errors prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox rows handled by event type and result.",
		}, []string{"event_type", "result"}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_lag_seconds",
			Help:      "Seconds between an outbox row's insert and its publish.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_errors_total",
			Help:      "Batches aborted and retried with backoff.",
		}),
	}
	reg.MustRegister(m.events, m.lag, m.errors)
	return m
}

// Event counts one row outcome; lag is only observed for published rows.
func (m *OutboxMetrics) Event(eventType, result string, lag time.Duration) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), result).Inc()
	if result == OutboxPublished && lag >= 0 {
		m.lag.Observe(lag.Seconds())
	}
}

func (m *OutboxMetrics) BatchError() {
	if m == nil || m.errors == nil {
		return
	}
	m.errors.Inc()
}
