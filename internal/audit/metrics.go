package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustgate_audit_events_total",
		Help: "Audit events accepted by the writer, by type and result",
	}, []string{"type", "result"})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustgate_audit_dropped_total",
		Help: "Audit events dropped before persistence, by cause",
	}, []string{"cause"}) // cause: "invalid_shape", "buffer_full"

	sinkErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trustgate_audit_sink_errors_total",
		Help: "Failed appends to the configured audit sink",
	})
)
