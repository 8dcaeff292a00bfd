package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"certledger/pkg/platform/circuit"
)

// ErrCircuitOpen is wrapped by calls short-circuited while the ledger is
// considered down.
var ErrCircuitOpen = errors.New("ledger circuit open")

// Guarded wraps a Ledger with a per-call deadline, a circuit breaker, metrics
// and tracing. Rejections do not count against the breaker.
type Guarded struct {
	next    Ledger
	timeout time.Duration
	breaker *circuit.Breaker
	metrics *Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

type GuardOption func(*Guarded)

func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guarded) {
		g.timeout = d
	}
}

func WithBreaker(b *circuit.Breaker) GuardOption {
	return func(g *Guarded) {
		g.breaker = b
	}
}

func WithMetrics(m *Metrics) GuardOption {
	return func(g *Guarded) {
		g.metrics = m
	}
}

func WithTracer(t trace.Tracer) GuardOption {
	return func(g *Guarded) {
		g.tracer = t
	}
}

func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guarded) {
		g.logger = logger
	}
}

func NewGuarded(next Ledger, opts ...GuardOption) *Guarded {
	g := &Guarded{
		next:   next,
		tracer: otel.Tracer("certledger/ledger"),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guarded) RegisterCertificate(ctx context.Context, sub CertificateSubmission) (Receipt, error) {
	var receipt Receipt
	err := g.do(ctx, OpRegisterCertificate, sub.Key, func(ctx context.Context) error {
		var err error
		receipt, err = g.next.RegisterCertificate(ctx, sub)
		return err
	})
	return receipt, err
}

func (g *Guarded) GetCertificate(ctx context.Context, key string) (Lookup, error) {
	var lookup Lookup
	err := g.do(ctx, OpGetCertificate, key, func(ctx context.Context) error {
		var err error
		lookup, err = g.next.GetCertificate(ctx, key)
		return err
	})
	return lookup, err
}

func (g *Guarded) RegisterInstitution(ctx context.Context, admin Authority, inst Institution) (Receipt, error) {
	var receipt Receipt
	err := g.do(ctx, OpRegisterInstitution, inst.TaxID, func(ctx context.Context) error {
		var err error
		receipt, err = g.next.RegisterInstitution(ctx, admin, inst)
		return err
	})
	return receipt, err
}

func (g *Guarded) VerifyInstitution(ctx context.Context, admin Authority, institutionAddress string) (Receipt, error) {
	var receipt Receipt
	err := g.do(ctx, OpVerifyInstitution, institutionAddress, func(ctx context.Context) error {
		var err error
		receipt, err = g.next.VerifyInstitution(ctx, admin, institutionAddress)
		return err
	})
	return receipt, err
}

func (g *Guarded) TransferAdmin(ctx context.Context, admin Authority, newAdminAddress string) (Receipt, error) {
	var receipt Receipt
	err := g.do(ctx, OpTransferAdmin, newAdminAddress, func(ctx context.Context) error {
		var err error
		receipt, err = g.next.TransferAdmin(ctx, admin, newAdminAddress)
		return err
	})
	return receipt, err
}

// Health bypasses the breaker so probes can observe recovery.
func (g *Guarded) Health(ctx context.Context) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	if err := g.next.Health(ctx); err != nil {
		return g.classify(ctx, OpHealth, err)
	}
	return nil
}

func (g *Guarded) do(ctx context.Context, op, subject string, call func(context.Context) error) error {
	ctx, span := g.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.op", op),
		attribute.String("ledger.subject", subject),
	))
	defer span.End()

	if g.breaker != nil && !g.breaker.Allow() {
		g.record(op, "circuit_open", 0)
		err := Unavailable(op, ErrCircuitOpen)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := g.now()
	err := call(ctx)
	elapsed := g.now().Sub(start).Seconds()

	if err != nil {
		err = g.classify(ctx, op, err)
		category := CategoryOf(err)
		g.record(op, string(category), elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(category))
		if Infrastructure(err) {
			g.failure(ctx, op)
		} else {
			g.success(ctx)
		}
		return err
	}

	g.record(op, "ok", elapsed)
	g.success(ctx)
	return nil
}

// classify makes sure every failure leaving the decorator is an *Error and
// that deadline expiry is reported as a timeout.
func (g *Guarded) classify(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.DeadlineExceeded) {
		if le, ok := AsError(err); !ok || le.Category != CategoryRejected {
			return Timeout(op, err)
		}
	}
	if _, ok := AsError(err); ok {
		return err
	}
	return Unavailable(op, err)
}

func (g *Guarded) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Guarded) record(op, outcome string, seconds float64) {
	if g.metrics != nil {
		g.metrics.observe(op, outcome, seconds)
	}
}

func (g *Guarded) failure(ctx context.Context, op string) {
	if g.breaker == nil {
		return
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.WarnContext(ctx, "ledger circuit opened", "op", op)
		if g.metrics != nil {
			g.metrics.CircuitState.Set(1)
		}
	}
}

func (g *Guarded) success(ctx context.Context) {
	if g.breaker == nil {
		return
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "ledger circuit closed")
		if g.metrics != nil {
			g.metrics.CircuitState.Set(0)
		}
	}
}

var _ Ledger = (*Guarded)(nil)
