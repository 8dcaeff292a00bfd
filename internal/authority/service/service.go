// Package service forwards administrative operations to the ledger with the
// configured administrator credential. Nothing is persisted locally.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"certledger/internal/authority/models"
	"certledger/internal/ledger"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/audit"
	"certledger/pkg/requestcontext"
)

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service implements the authority coordinator.
type Service struct {
	ledger         ledger.Ledger
	admin          ledger.Authority
	auditPublisher AuditPublisher
	tracer         trace.Tracer
	logger         *slog.Logger
}

type Option func(*Service)

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service. admin is the credential every write is signed with.
func New(l ledger.Ledger, admin ledger.Authority, opts ...Option) *Service {
	s := &Service{
		ledger: l,
		admin:  admin,
		tracer: otel.Tracer("certledger/authority"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) RegisterInstitution(ctx context.Context, req *models.RegisterInstitutionRequest) (*models.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, ledger.OpRegisterInstitution, audit.EventInstitutionRegistered, req.TaxID, func(ctx context.Context) (ledger.Receipt, error) {
		return s.ledger.RegisterInstitution(ctx, s.admin, ledger.Institution{
			Name:        req.Name,
			TaxID:       req.TaxID,
			Responsible: req.Responsible,
			Address:     req.Address,
		})
	})
}

func (s *Service) VerifyInstitution(ctx context.Context, req *models.VerifyInstitutionRequest) (*models.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, ledger.OpVerifyInstitution, audit.EventInstitutionVerified, req.InstitutionAddress, func(ctx context.Context) (ledger.Receipt, error) {
		return s.ledger.VerifyInstitution(ctx, s.admin, req.InstitutionAddress)
	})
}

func (s *Service) TransferAdmin(ctx context.Context, req *models.TransferAdminRequest) (*models.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	res, err := s.run(ctx, ledger.OpTransferAdmin, audit.EventAdminTransferred, req.NewAdminAddress, func(ctx context.Context) (ledger.Receipt, error) {
		return s.ledger.TransferAdmin(ctx, s.admin, req.NewAdminAddress)
	})
	if err != nil {
		return nil, err
	}
	s.logger.WarnContext(ctx, "ledger administrator transferred; the configured admin credential no longer has admin rights",
		"request_id", requestcontext.RequestID(ctx),
		"new_admin_address", res.Address,
	)
	return res, nil
}

func (s *Service) run(ctx context.Context, op string, event audit.AuditEvent, subject string, call func(context.Context) (ledger.Receipt, error)) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "authority."+op, trace.WithAttributes(
		attribute.String("authority.subject", subject),
	))
	defer span.End()

	if s.admin.PrivateKey == "" {
		return nil, dErrors.New(dErrors.CodeForbidden, "administrator credential is not configured")
	}

	receipt, err := call(ctx)
	if err != nil {
		span.RecordError(err)
		s.logger.WarnContext(ctx, "administrative ledger operation failed",
			"request_id", requestcontext.RequestID(ctx),
			"op", op,
			"subject", subject,
			"error", err,
		)
		return nil, ledger.DomainError(err)
	}

	s.logger.InfoContext(ctx, "administrative ledger operation succeeded",
		"request_id", requestcontext.RequestID(ctx),
		"op", op,
		"subject", subject,
		"transaction_hash", receipt.TxHash,
	)
	if s.auditPublisher != nil {
		if err := s.auditPublisher.Emit(ctx, audit.Event{
			Action:          string(event),
			Subject:         firstNonEmpty(receipt.AuthorityAddress, subject),
			ActorID:         requestcontext.AdminSubject(ctx),
			TransactionHash: receipt.TxHash,
			Decision:        "applied",
			RequestID:       requestcontext.RequestID(ctx),
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "action", string(event), "error", err)
		}
	}
	return &models.Result{TransactionHash: receipt.TxHash, Address: receipt.AuthorityAddress}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
