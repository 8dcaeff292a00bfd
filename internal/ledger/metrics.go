package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments ledger calls.
type Metrics struct {
	Calls        *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	CircuitState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_ledger_calls_total",
			Help: "Ledger calls by operation and outcome (ok, rejected, unavailable, timeout, circuit_open)",
		}, []string{"op", "outcome"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certledger_ledger_call_duration_seconds",
			Help:    "Ledger call latency by operation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		CircuitState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "certledger_ledger_circuit_open",
			Help: "1 while the ledger circuit breaker is open",
		}),
	}
}

func (m *Metrics) observe(op, outcome string, seconds float64) {
	m.Calls.WithLabelValues(op, outcome).Inc()
	m.Duration.WithLabelValues(op).Observe(seconds)
}
