package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"certledger/internal/ratelimit/metrics"
	"certledger/internal/ratelimit/models"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/audit"
	"certledger/pkg/platform/httputil"
	metadata "certledger/pkg/platform/middleware/metadata"
	"certledger/pkg/requestcontext"
)

type RateLimiter interface {
	Check(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Middleware struct {
	limiter  RateLimiter
	limits   map[models.EndpointClass]models.Limit
	audit    AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithLimit overrides the quota of one endpoint class.
func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(m *Middleware) {
		m.limits[class] = limit
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(m *Middleware) {
		m.audit = p
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		limits:  DefaultLimits(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// DefaultLimits are per client IP.
func DefaultLimits() map[models.EndpointClass]models.Limit {
	return map[models.EndpointClass]models.Limit{
		models.ClassWrite: {RequestsPerWindow: 30, Window: time.Minute},
		models.ClassAdmin: {RequestsPerWindow: 10, Window: time.Minute},
		models.ClassRead:  {RequestsPerWindow: 300, Window: time.Minute},
	}
}

func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	limit := m.limits[class]
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled || limit.RequestsPerWindow <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			if ip == "" {
				ip = metadata.ClientIPFromRequest(r)
			}

			result, err := m.limiter.Check(ctx, models.NewIPKey(class, ip), limit)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"request_id", requestcontext.RequestID(ctx),
					"class", string(class),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			if m.metrics != nil {
				m.metrics.ObserveDecision(string(class), result.Allowed)
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.rejected(ctx, class, ip)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, please try again later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) rejected(ctx context.Context, class models.EndpointClass, ip string) {
	m.logger.WarnContext(ctx, "rate limit exceeded",
		"request_id", requestcontext.RequestID(ctx),
		"class", string(class),
		"client_ip", ip,
	)
	if m.audit == nil {
		return
	}
	if err := m.audit.Emit(ctx, audit.Event{
		Action:    string(audit.EventRateLimitExceeded),
		Subject:   ip,
		Decision:  "rejected",
		Reason:    string(class),
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		m.logger.WarnContext(ctx, "failed to emit audit event", "action", string(audit.EventRateLimitExceeded), "error", err)
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if result.Degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
}
