package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the registry module.
type Metrics struct {
	Registrations         prometheus.Counter
	Deactivations         prometheus.Counter
	Reactivations         prometheus.Counter
	Denials               *prometheus.CounterVec
	VerificationChecks    *prometheus.CounterVec
	MutationDuration      *prometheus.HistogramVec
	JournalAppendDuration prometheus.Histogram
	Height                prometheus.Gauge
	Entities              prometheus.Gauge
}

// New registers the registry metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustreg_registrations_total",
			Help: "Total number of manufacturers registered",
		}),
		Deactivations: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustreg_deactivations_total",
			Help: "Total number of accepted deactivation calls",
		}),
		Reactivations: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustreg_reactivations_total",
			Help: "Total number of accepted reactivation calls",
		}),
		Denials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustreg_mutation_denials_total",
			Help: "Rejected mutating calls by operation and reason",
		}, []string{"operation", "reason"}),
		VerificationChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustreg_verification_checks_total",
			Help: "Verification checks by outcome",
		}, []string{"outcome"}),
		MutationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustreg_mutation_duration_seconds",
			Help:    "Duration of mutating registry calls, including the journal append",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		JournalAppendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustreg_journal_append_duration_seconds",
			Help:    "Duration of journal appends",
			Buckets: durationBuckets,
		}),
		Height: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trustreg_height",
			Help: "Height of the last accepted mutation",
		}),
		Entities: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trustreg_entities",
			Help: "Number of entities ever registered",
		}),
	}
}

func (m *Metrics) ObserveMutation(operation string, start time.Time) {
	m.MutationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveJournalAppend(d time.Duration) {
	m.JournalAppendDuration.Observe(d.Seconds())
}

func (m *Metrics) IncDenial(operation, reason string) {
	m.Denials.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) IncVerificationCheck(verified bool) {
	outcome := "unverified"
	if verified {
		outcome = "verified"
	}
	m.VerificationChecks.WithLabelValues(outcome).Inc()
}

// SetState publishes the current height and entity count.
func (m *Metrics) SetState(height uint64, entities int) {
	m.Height.Set(float64(height))
	m.Entities.Set(float64(entities))
}
