package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks dispatch outcomes for operational visibility; delivery
// failures never surface to the transition that triggered them.
type Metrics struct {
	Dispatched prometheus.Counter
	Failed     prometheus.Counter
	Skipped    prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Dispatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certflow_notifications_dispatched_total",
			Help: "Total number of notifications handed to the mailer successfully",
		}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certflow_notifications_failed_total",
			Help: "Total number of notification dispatch attempts that failed",
		}),
		Skipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certflow_notifications_skipped_total",
			Help: "Total number of ledger entries with no recipient or no template",
		}),
	}
}
