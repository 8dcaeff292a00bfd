// Package limiter answers rate limit checks from a shared store, switching to
// a process-local store while the shared one is failing.
package limiter

import (
	"context"
	"log/slog"

	"certledger/internal/ratelimit/metrics"
	"certledger/internal/ratelimit/models"
	"certledger/pkg/platform/circuit"
)

// Store counts one request against a key.
type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, error)
}

type Limiter struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Limiter)

func WithBreaker(b *circuit.Breaker) Option {
	return func(l *Limiter) {
		l.breaker = b
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New builds a Limiter. A nil primary makes the fallback the only store.
func New(primary, fallback Store, opts ...Option) *Limiter {
	l := &Limiter{
		primary:  primary,
		fallback: fallback,
		breaker:  circuit.New("ratelimit"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Check(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, error) {
	if l.primary == nil {
		return l.fallback.Allow(ctx, key, limit)
	}
	if !l.breaker.Allow() {
		return l.degraded(ctx, key, limit)
	}

	res, err := l.primary.Allow(ctx, key, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		_, change := l.breaker.RecordFailure()
		if l.metrics != nil {
			l.metrics.IncrementStoreErrors()
		}
		if change.Opened {
			l.logger.WarnContext(ctx, "rate limit store failing, using in-memory fallback", "error", err)
			if l.metrics != nil {
				l.metrics.SetFallbackActive(true)
			}
		}
		return l.degraded(ctx, key, limit)
	}

	if _, change := l.breaker.RecordSuccess(); change.Closed {
		l.logger.InfoContext(ctx, "rate limit store recovered")
		if l.metrics != nil {
			l.metrics.SetFallbackActive(false)
		}
	}
	return res, nil
}

func (l *Limiter) degraded(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, error) {
	res, err := l.fallback.Allow(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	res.Degraded = true
	return res, nil
}
