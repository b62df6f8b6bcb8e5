package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics shared by the workflow engine.
type Metrics struct {
	TransitionsTotal  *prometheus.CounterVec
	TransitionsFailed *prometheus.CounterVec
	LedgerAppends     prometheus.Counter
	RequestsSubmitted prometheus.Counter
}

// New creates and registers all workflow metrics.
func New() *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certflow_transitions_total",
			Help: "Total number of applied status transitions by entity kind",
		}, []string{"entity"}),
		TransitionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certflow_transitions_failed_total",
			Help: "Total number of rejected or failed status transitions by entity kind",
		}, []string{"entity"}),
		LedgerAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certflow_ledger_appends_total",
			Help: "Total number of status history entries appended",
		}),
		RequestsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certflow_requests_submitted_total",
			Help: "Total number of certification requests submitted",
		}),
	}
}
