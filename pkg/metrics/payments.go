package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics counts webhook outcomes and success-latch results.
type PaymentMetrics struct {
	webhooks *prometheus.CounterVec
	latch    *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "webhooks_total",
		Help:      "Provider webhooks by provider and outcome.",
	}, []string{"provider", "outcome"})
	latch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "success_handler_total",
		Help:      "Success handler invocations by result (applied, already_applied, error).",
	}, []string{"result"})
	reg.MustRegister(webhooks, latch)
	return &PaymentMetrics{webhooks: webhooks, latch: latch}
}

func (p *PaymentMetrics) Webhook(provider, outcome string) {
	if p == nil || p.webhooks == nil {
		return
	}
	p.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func (p *PaymentMetrics) SuccessHandler(result string) {
	if p == nil || p.latch == nil {
		return
	}
	p.latch.WithLabelValues(normalizeLabel(result)).Inc()
}
