package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for ops audit tracking.
type Metrics struct {
	Tracked         prometheus.Counter
	Sampled         prometheus.Counter
	PersistFailures prometheus.Counter
}

// NewMetrics registers the ops audit metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Tracked: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustreg_audit_ops_tracked_total",
			Help: "Total number of operational audit events successfully tracked",
		}),
		Sampled: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustreg_audit_ops_sampled_total",
			Help: "Total number of operational audit events dropped due to sampling",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustreg_audit_ops_persist_failures_total",
			Help: "Total number of operational audit event persistence failures",
		}),
	}
}
