// Package health probes the ledger and record store on a schedule and serves
// the cached result.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Checker is anything with a Health method: ledgers, stores, redis.
type Checker interface {
	Health(ctx context.Context) error
}

// Gauges receives probe outcomes.
type Gauges interface {
	SetLedgerUp(up bool)
	SetRecordStoreUp(up bool)
}

// Status is the last known state of each dependency. Ledger is nil when the
// ledger is disabled.
type Status struct {
	Ledger      *bool     `json:"ledger_up,omitempty"`
	RecordStore bool      `json:"record_store_up"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Healthy reports whether every probed dependency answered.
func (s Status) Healthy() bool {
	return s.RecordStore && (s.Ledger == nil || *s.Ledger)
}

type Prober struct {
	ledger  Checker
	records Checker
	gauges  Gauges
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	status Status

	scheduler gocron.Scheduler
}

type Option func(*Prober)

// WithLedger enables ledger probing.
func WithLedger(c Checker) Option {
	return func(p *Prober) {
		p.ledger = c
	}
}

func WithGauges(g Gauges) Option {
	return func(p *Prober) {
		p.gauges = g
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		p.logger = logger
	}
}

func NewProber(records Checker, opts ...Option) *Prober {
	p := &Prober{
		records: records,
		timeout: 5 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe runs every check once and stores the result.
func (p *Prober) Probe(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	status := Status{CheckedAt: time.Now()}
	if err := p.records.Health(ctx); err != nil {
		p.logger.WarnContext(ctx, "record store health probe failed", "error", err)
	} else {
		status.RecordStore = true
	}
	if p.gauges != nil {
		p.gauges.SetRecordStoreUp(status.RecordStore)
	}

	if p.ledger != nil {
		up := true
		if err := p.ledger.Health(ctx); err != nil {
			p.logger.WarnContext(ctx, "ledger health probe failed", "error", err)
			up = false
		}
		status.Ledger = &up
		if p.gauges != nil {
			p.gauges.SetLedgerUp(up)
		}
	}

	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
	return status
}

// Status returns the last probe result.
func (p *Prober) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Start probes once, then every interval until Stop.
func (p *Prober) Start(interval time.Duration) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { p.Probe(context.Background()) }),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return err
	}
	p.logger.Info("starting health prober", "interval", interval.String())
	p.scheduler = s
	s.Start()
	return nil
}

func (p *Prober) Stop() {
	if p.scheduler == nil {
		return
	}
	if err := p.scheduler.Shutdown(); err != nil {
		p.logger.Error("error shutting down health prober", "error", err)
	}
}
