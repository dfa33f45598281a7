package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics tracks the assistant tool loop.
type ChatMetrics struct {
	rounds    prometheus.Histogram
	toolCalls *prometheus.CounterVec
	truncated prometheus.Counter
	escalated prometheus.Counter
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	if reg == nil {
		return &ChatMetrics{}
	}
	rounds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "tool_rounds",
		Help:      "Tool rounds used per user message.",
		Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
	})
	toolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "tool_calls_total",
		Help:      "Tool executions by tool name and outcome.",
	}, []string{"tool", "outcome"})
	truncated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "loop_truncations_total",
		Help:      "Messages that hit the tool round limit.",
	})
	escalated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "escalations_total",
		Help:      "Conversations escalated to a human agent.",
	})
	reg.MustRegister(rounds, toolCalls, truncated, escalated)
	return &ChatMetrics{rounds: rounds, toolCalls: toolCalls, truncated: truncated, escalated: escalated}
}

func (c *ChatMetrics) ObserveRounds(n int) {
	if c == nil || c.rounds == nil {
		return
	}
	c.rounds.Observe(float64(n))
}

func (c *ChatMetrics) ToolCall(tool, outcome string) {
	if c == nil || c.toolCalls == nil {
		return
	}
	c.toolCalls.WithLabelValues(normalizeLabel(tool), normalizeLabel(outcome)).Inc()
}

func (c *ChatMetrics) Truncated() {
	if c == nil || c.truncated == nil {
		return
	}
	c.truncated.Inc()
}

func (c *ChatMetrics) Escalated() {
	if c == nil || c.escalated == nil {
		return
	}
	c.escalated.Inc()
}
