package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for certificate registration and lookup.
type Metrics struct {
	Registrations        *prometheus.CounterVec
	RegistrationDuration prometheus.Histogram
	Lookups              *prometheus.CounterVec
	LookupDuration       prometheus.Histogram
	OrphanedLedgerWrites prometheus.Counter
}

// New registers the certificate metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_certificate_registrations_total",
			Help: "Certificate registrations by outcome (the error code, or ok)",
		}, []string{"outcome"}),
		RegistrationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "certledger_certificate_registration_duration_seconds",
			Help:    "Duration of Register, ledger submission included",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_certificate_lookups_total",
			Help: "Certificate lookups by mode (key, student_name) and outcome",
		}, []string{"mode", "outcome"}),
		LookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "certledger_certificate_lookup_duration_seconds",
			Help:    "Duration of certificate lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		OrphanedLedgerWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "certledger_ledger_orphaned_writes_total",
			Help: "Ledger writes that succeeded without a matching local record",
		}),
	}
}

// ObserveRegistration records one Register call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegistration(outcome string, start time.Time) {
	m.Registrations.WithLabelValues(outcome).Inc()
	m.RegistrationDuration.Observe(time.Since(start).Seconds())
}

// ObserveLookup records one lookup call.
func (m *Metrics) ObserveLookup(mode, outcome string, start time.Time) {
	m.Lookups.WithLabelValues(mode, outcome).Inc()
	m.LookupDuration.Observe(time.Since(start).Seconds())
}

// IncrementOrphaned records a ledger write left without a local record.
func (m *Metrics) IncrementOrphaned() {
	m.OrphanedLedgerWrites.Inc()
}
