// Package service coordinates certificate registration and lookup across the
// file store, the ledger and the record store.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"certledger/internal/certificate/metrics"
	"certledger/internal/certificate/models"
	"certledger/internal/ledger"
	"certledger/internal/ledger/ethkey"
	"certledger/internal/platform/config"
	"certledger/pkg/platform/audit"
)

type Store interface {
	Insert(ctx context.Context, record *models.Record) error
	FindByKey(ctx context.Context, key string) (*models.Record, error)
	ListByStudentName(ctx context.Context, name string) ([]*models.Record, error)
}

// TxRunner provides the transactional boundary around the record insert and
// the file promotion. Implementations wrap a database transaction or, in
// memory, a sharded lock with buffered writes.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

type FileStore interface {
	Allowed(fileName string) bool
	Stage(ctx context.Context, key, fileName string, data []byte) (*models.StagedFile, error)
	Promote(staged *models.StagedFile) (string, error)
	Remove(path string) error
}

type SignatureVerifier interface {
	VerifySignature(address, message, signature string) bool
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type OpsTracker interface {
	Track(ctx context.Context, event audit.Event)
}

const defaultLookupConcurrency = 8

// Service implements the registration and lookup coordinators.
type Service struct {
	store    Store
	tx       TxRunner
	files    FileStore
	ledger   ledger.Ledger
	verifier SignatureVerifier

	authorityModel    string
	lookupPolicy      string
	lookupConcurrency int

	auditPublisher AuditPublisher
	ops            OpsTracker
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	logger         *slog.Logger
}

type Option func(*Service)

// WithLedger enables ledger integration. Without it the service runs in
// purely-local mode.
func WithLedger(l ledger.Ledger) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

func WithSignatureVerifier(v SignatureVerifier) Option {
	return func(s *Service) {
		s.verifier = v
	}
}

// WithAuthorityModel selects config.AuthorityIssuer or config.AuthorityInstitution.
func WithAuthorityModel(model string) Option {
	return func(s *Service) {
		if model != "" {
			s.authorityModel = model
		}
	}
}

// WithLookupPolicy selects config.LookupStrict or config.LookupLenient.
func WithLookupPolicy(policy string) Option {
	return func(s *Service) {
		if policy != "" {
			s.lookupPolicy = policy
		}
	}
}

// WithLookupConcurrency bounds the ledger queries issued by a by-name lookup.
func WithLookupConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lookupConcurrency = n
		}
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func WithOpsTracker(t OpsTracker) Option {
	return func(s *Service) {
		s.ops = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New constructs a Service. tx must run its callback against the same
// records store reads from.
func New(store Store, tx TxRunner, files FileStore, opts ...Option) *Service {
	s := &Service{
		store:             store,
		tx:                tx,
		files:             files,
		verifier:          ethkey.Verifier{},
		authorityModel:    config.AuthorityIssuer,
		lookupPolicy:      config.LookupStrict,
		lookupConcurrency: defaultLookupConcurrency,
		tracer:            otel.Tracer("certledger/certificate"),
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LedgerEnabled reports whether registrations are anchored on a ledger.
func (s *Service) LedgerEnabled() bool {
	return s.ledger != nil
}

// AuthorityModel reports how authority identity is supplied.
func (s *Service) AuthorityModel() string {
	return s.authorityModel
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"subject", event.Subject,
			"error", err,
		)
	}
}

func (s *Service) track(ctx context.Context, event audit.Event) {
	if s.ops == nil {
		return
	}
	s.ops.Track(ctx, event)
}
