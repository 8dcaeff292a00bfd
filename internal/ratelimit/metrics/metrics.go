package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions      *prometheus.CounterVec
	FallbackActive prometheus.Gauge
	StoreErrors    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_ratelimit_decisions_total",
			Help: "Rate limit decisions by endpoint class and outcome",
		}, []string{"class", "outcome"}),
		FallbackActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "certledger_ratelimit_fallback_active",
			Help: "1 while the in-memory fallback limiter is serving decisions",
		}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "certledger_ratelimit_store_errors_total",
			Help: "Errors returned by the shared rate limit store",
		}),
	}
}

func (m *Metrics) ObserveDecision(class string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	m.Decisions.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
		return
	}
	m.FallbackActive.Set(0)
}

func (m *Metrics) IncrementStoreErrors() {
	m.StoreErrors.Inc()
}
