// Package httptransport assembles the HTTP surface: shared middleware, feature
// routes and the metrics endpoint.
package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"certledger/internal/platform/metrics"
	metadata "certledger/pkg/platform/middleware/metadata"
	"certledger/pkg/platform/middleware/request"
	"certledger/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires the common middleware chain and mounts each registrar.
// Metrics may be nil, in which case /metrics is not served.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, registrars ...Registrar) chi.Router {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Recovery(logger))
	r.Use(request.Logger(logger))
	if m != nil {
		r.Use(observe(m))
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	for _, reg := range registrars {
		reg.Register(r)
	}
	return r
}

// observe records request counts and latency by route pattern so path
// parameters do not explode label cardinality.
func observe(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(route, strconv.Itoa(status), time.Since(start).Seconds())
		})
	}
}
