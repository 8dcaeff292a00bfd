// Package ops emits routine operational audit events. Tracking never fails
// the caller: events are sampled, and dropped while the sink is unhealthy.
package ops

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "certledger/pkg/platform/audit"
	"certledger/pkg/platform/circuit"
)

type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *circuit.Breaker
	metrics *Metrics
	logger  *slog.Logger
}

type Option func(*Tracker)

func WithSampler(s *Sampler) Option {
	return func(t *Tracker) {
		t.sampler = s
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(t *Tracker) {
		t.breaker = b
	}
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// New creates a tracker that keeps every event and trips after 5 failures.
func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		sampler: NewSampler(1),
		breaker: circuit.New("audit-ops", circuit.WithCooldown(time.Minute)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track records an operational event on a best-effort basis.
func (t *Tracker) Track(ctx context.Context, event audit.Event) {
	if !t.sampler.ShouldSample(event.Action) {
		if t.metrics != nil {
			t.metrics.Sampled.Inc()
		}
		return
	}
	if !t.breaker.Allow() {
		if t.metrics != nil {
			t.metrics.CircuitBreakerDropped.Inc()
		}
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.CategoryOperations

	if err := t.store.Append(ctx, event); err != nil {
		_, change := t.breaker.RecordFailure()
		if t.metrics != nil {
			t.metrics.PersistFailures.Inc()
			if change.Opened {
				t.metrics.SetCircuitBreakerState(true)
			}
		}
		t.logger.WarnContext(ctx, "ops audit event dropped",
			"action", event.Action,
			"request_id", event.RequestID,
			"error", err,
		)
		return
	}

	_, change := t.breaker.RecordSuccess()
	if t.metrics != nil {
		t.metrics.Tracked.Inc()
		if change.Closed {
			t.metrics.SetCircuitBreakerState(false)
		}
	}
}
