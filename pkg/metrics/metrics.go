package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application-level counters shared by services and
// workers.
type Metrics struct {
	AuditAppendFailures prometheus.Counter
	OutboxProcessed     *prometheus.CounterVec
	DeletionsProcessed  *prometheus.CounterVec
	ExportsTotal        prometheus.Counter
}

func New(prefix string) *Metrics {
	return &Metrics{
		AuditAppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_audit_append_failures_total",
			Help: "Audit log appends that failed and were swallowed",
		}),
		OutboxProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_outbox_events_total",
			Help: "Outbox events processed by status",
		}, []string{"status"}),
		DeletionsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_deletion_requests_total",
			Help: "Deletion requests processed by outcome",
		}, []string{"outcome"}),
		ExportsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_data_exports_total",
			Help: "Completed personal data exports",
		}),
	}
}
