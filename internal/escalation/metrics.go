package escalation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes escalation pass counters.
type Metrics struct {
	passes       prometheus.Counter
	passDuration prometheus.Histogram
	processed    prometheus.Counter
	escalated    prometheus.Counter
	expired      prometheus.Counter
	warningsSent prometheus.Counter
	errors       prometheus.Counter
}

// NewMetrics registers escalation metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		passes: factory.NewCounter(prometheus.CounterOpts{
			Name: "hr_workflows_escalation_passes_total",
			Help: "Completed escalation passes.",
		}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hr_workflows_escalation_pass_duration_seconds",
			Help:    "Wall-clock duration of one escalation pass.",
			Buckets: prometheus.DefBuckets,
		}),
		processed: factory.NewCounter(prometheus.CounterOpts{
			Name: "hr_workflows_instances_processed_total",
			Help: "Pending workflow instances examined.",
		}),
		escalated: factory.NewCounter(prometheus.CounterOpts{
			Name: "hr_workflows_instances_escalated_total",
			Help: "Escalation actions applied.",
		}),
		expired: factory.NewCounter(prometheus.CounterOpts{
			Name: "hr_workflows_instances_expired_total",
			Help: "Workflow instances force-expired.",
		}),
		warningsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "hr_workflows_sla_warnings_sent_total",
			Help: "SLA warning/critical notifications sent.",
		}),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "hr_workflows_instance_errors_total",
			Help: "Per-instance processing errors.",
		}),
	}
}

// ObservePass records one pass outcome. Safe on a nil receiver.
func (m *Metrics) ObservePass(s *Summary, d time.Duration) {
	if m == nil {
		return
	}
	m.passes.Inc()
	m.passDuration.Observe(d.Seconds())
	m.processed.Add(float64(s.Processed))
	m.escalated.Add(float64(s.Escalated))
	m.expired.Add(float64(s.Expired))
	m.warningsSent.Add(float64(s.WarningsSent))
	m.errors.Add(float64(len(s.Errors)))
}
