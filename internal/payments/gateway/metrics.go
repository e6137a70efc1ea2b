package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records outbound gateway calls. A nil *Metrics is a no-op.
type Metrics struct {
	duration *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

// NewMetrics registers the gateway metrics on the provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_duration_seconds",
		Help:    "Duration of payment gateway requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_requests_total",
		Help: "Payment gateway requests by operation and outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(duration, requests)
	return &Metrics{
		duration: duration,
		requests: requests,
	}
}

// ObserveRequest counts one call and, when it reached the network, its duration.
func (m *Metrics) ObserveRequest(op, outcome string, d time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	op = normalizeLabel(op)
	m.requests.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	if d > 0 {
		m.duration.WithLabelValues(op).Observe(d.Seconds())
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
