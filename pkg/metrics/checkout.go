package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "checkout"

// CheckoutMetrics tracks order creation, cancellation and payment outcomes.
type CheckoutMetrics struct {
	ordersCreated   *prometheus.CounterVec
	ordersCancelled *prometheus.CounterVec
	failures        *prometheus.CounterVec
	payments        *prometheus.CounterVec
	createLatency   prometheus.Histogram
}

// NewCheckoutMetrics registers checkout metrics on reg. A nil registerer
// yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders committed, by payment method.",
		}, []string{"payment_method"}),
		ordersCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled, by origin (user or expiry).",
		}, []string{"origin"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Checkout operations rejected, by operation and error code.",
		}, []string{"operation", "code"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_transitions_total",
			Help:      "Payment status transitions applied, by source and status.",
		}, []string{"source", "status"}),
		createLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_create_duration_seconds",
			Help:      "Latency of the order creation transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.ordersCreated, m.ordersCancelled, m.failures, m.payments, m.createLatency)
	return m
}

func (m *CheckoutMetrics) OrderCreated(paymentMethod string, took time.Duration) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
	m.createLatency.Observe(took.Seconds())
}

func (m *CheckoutMetrics) OrderCancelled(origin string) {
	if m == nil || m.ordersCancelled == nil {
		return
	}
	m.ordersCancelled.WithLabelValues(normalizeLabel(origin)).Inc()
}

func (m *CheckoutMetrics) Failure(operation, code string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

func (m *CheckoutMetrics) PaymentTransition(source, status string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(source), normalizeLabel(status)).Inc()
}
