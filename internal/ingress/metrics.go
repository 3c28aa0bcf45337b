package ingress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ingress module.
type Metrics struct {
	Verifications *prometheus.CounterVec
	Duplicates    *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all ingress metrics
// registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgate_ingress_verifications_total",
			Help: "Webhook verification outcomes by provider and result",
		}, []string{"provider", "outcome"}),

		Duplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgate_ingress_duplicates_total",
			Help: "Webhook deliveries dropped as duplicates, by provider",
		}, []string{"provider"}),
	}
}

// IncrementVerification records one verification outcome.
func (m *Metrics) IncrementVerification(provider, outcome string) {
	if m != nil {
		m.Verifications.WithLabelValues(provider, outcome).Inc()
	}
}

// IncrementDuplicate records one suppressed duplicate.
func (m *Metrics) IncrementDuplicate(provider string) {
	if m != nil {
		m.Duplicates.WithLabelValues(provider).Inc()
	}
}
