package policy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy module.
type Metrics struct {
	Decisions    *prometheus.CounterVec
	CheckLatency prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all policy metrics
// registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgate_policy_decisions_total",
			Help: "Authorization decisions by outcome and reason",
		}, []string{"decision", "reason"}),

		CheckLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustgate_policy_check_duration_seconds",
			Help:    "Duration of a full policy check including audit emission",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		}),
	}
}

// IncrementDecision records a decision outcome.
func (m *Metrics) IncrementDecision(decision, reason string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision, reason).Inc()
	}
}

// ObserveCheckLatency records the total check duration.
func (m *Metrics) ObserveCheckLatency(d time.Duration) {
	if m != nil {
		m.CheckLatency.Observe(d.Seconds())
	}
}
