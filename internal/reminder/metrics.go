package reminder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Scheduled    prometheus.Counter
	Sent         prometheus.Counter
	Failed       prometheus.Counter
	Cancelled    prometheus.Counter
	SweepSkipped prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Scheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certflow_reminders_scheduled_total",
			Help: "Total number of reminders created",
		}),
		Sent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certflow_reminders_sent_total",
			Help: "Total number of reminders dispatched successfully",
		}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certflow_reminders_failed_total",
			Help: "Total number of reminder dispatch attempts that failed",
		}),
		Cancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certflow_reminders_cancelled_total",
			Help: "Total number of reminders cancelled before firing",
		}),
		SweepSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certflow_reminder_sweeps_skipped_total",
			Help: "Total number of sweep invocations skipped because another sweep held the lease",
		}),
	}
}
