package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/pkg/testutil"
)

type stubChecker struct {
	mu  sync.Mutex
	err error
	n   int
}

func (c *stubChecker) Health(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.err
}

func (c *stubChecker) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type recordingGauges struct {
	ledger, records *bool
}

func (g *recordingGauges) SetLedgerUp(up bool)      { g.ledger = &up }
func (g *recordingGauges) SetRecordStoreUp(up bool) { g.records = &up }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProbe(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		gauges := &recordingGauges{}
		p := NewProber(&stubChecker{}, WithLedger(&stubChecker{}), WithGauges(gauges), WithLogger(quietLogger()))

		status := p.Probe(context.Background())
		assert.True(t, status.Healthy())
		require.NotNil(t, gauges.ledger)
		assert.True(t, *gauges.ledger)
		assert.True(t, *gauges.records)
	})

	t.Run("ledger down", func(t *testing.T) {
		gauges := &recordingGauges{}
		p := NewProber(&stubChecker{}, WithLedger(&stubChecker{err: errors.New("dial tcp")}), WithGauges(gauges), WithLogger(quietLogger()))

		status := p.Probe(context.Background())
		assert.False(t, status.Healthy())
		assert.False(t, *gauges.ledger)
		assert.Equal(t, status, p.Status())
	})

	t.Run("ledger disabled is not probed", func(t *testing.T) {
		gauges := &recordingGauges{}
		p := NewProber(&stubChecker{}, WithGauges(gauges), WithLogger(quietLogger()))

		status := p.Probe(context.Background())
		assert.True(t, status.Healthy())
		assert.Nil(t, status.Ledger)
		assert.Nil(t, gauges.ledger)
	})
}

func TestStartProbesImmediately(t *testing.T) {
	records := &stubChecker{}
	p := NewProber(records, WithLogger(quietLogger()))
	require.NoError(t, p.Start(time.Hour))
	defer p.Stop()

	assert.Eventually(t, func() bool { return records.calls() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler(t *testing.T) {
	ledger := &stubChecker{}
	p := NewProber(&stubChecker{}, WithLedger(ledger), WithLogger(quietLogger()))
	r := chi.NewRouter()
	NewHandler(p).Register(r)

	p.Probe(context.Background())
	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/health"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "ledger_up", true)

	ledger.err = errors.New("down")
	p.Probe(context.Background())
	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/health"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
