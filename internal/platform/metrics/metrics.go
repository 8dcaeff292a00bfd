package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds process-wide Prometheus metrics and the registry feature
// packages register their own collectors on.
type Metrics struct {
	Registry      *prometheus.Registry
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	LedgerUp      prometheus.Gauge
	RecordStoreUp prometheus.Gauge
}

// New creates a fresh registry with runtime collectors and the shared metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		LedgerUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "certledger_ledger_up",
			Help: "1 when the last ledger health probe succeeded",
		}),
		RecordStoreUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "certledger_record_store_up",
			Help: "1 when the last record store health probe succeeded",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) ObserveRequest(route string, status string, seconds float64) {
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(seconds)
}

func (m *Metrics) SetLedgerUp(up bool) {
	m.LedgerUp.Set(boolToFloat(up))
}

func (m *Metrics) SetRecordStoreUp(up bool) {
	m.RecordStoreUp.Set(boolToFloat(up))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
