package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"certledger/internal/platform/metrics"
	"certledger/pkg/platform/middleware/request"
	"certledger/pkg/requestcontext"
	httptestutil "certledger/pkg/testutil"
)

type echoRoutes struct{}

func (echoRoutes) Register(r chi.Router) {
	r.Get("/get_certificate/{key}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, requestcontext.ClientIP(r.Context()))
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func newTestRouter() (chi.Router, *metrics.Metrics) {
	m := metrics.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(logger, m, echoRoutes{}), m
}

func TestRouterMiddleware(t *testing.T) {
	r, m := newTestRouter()

	req := httptestutil.NewRequest(t, http.MethodGet, "/get_certificate/0xabc")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rr := httptestutil.DoRequest(r, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "203.0.113.9", string(httptestutil.ReadBody(t, rr)))
	assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/get_certificate/{key}", "200")))
}

func TestRouterRecoversPanics(t *testing.T) {
	r, _ := newTestRouter()

	rr := httptestutil.DoRequest(r, httptestutil.NewRequest(t, http.MethodGet, "/boom"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRouterServesMetrics(t *testing.T) {
	r, _ := newTestRouter()
	httptestutil.DoRequest(r, httptestutil.NewRequest(t, http.MethodGet, "/get_certificate/0xabc"))

	rr := httptestutil.DoRequest(r, httptestutil.NewRequest(t, http.MethodGet, "/metrics"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(string(httptestutil.ReadBody(t, rr)), "certledger_http_requests_total"))
}
