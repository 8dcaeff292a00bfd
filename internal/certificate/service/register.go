package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"certledger/internal/certificate/models"
	"certledger/internal/ledger"
	"certledger/internal/ledger/ethkey"
	"certledger/internal/platform/config"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/audit"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/requestcontext"
)

// Register stores the certificate file, anchors it on the ledger when one is
// configured and inserts the record. The ledger write is never retried.
func (s *Service) Register(ctx context.Context, in *models.RegistrationInput) (result *models.RegistrationResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "certificate.register", trace.WithAttributes(
		attribute.String("certificate.key", in.Key),
		attribute.Bool("ledger.enabled", s.LedgerEnabled()),
	))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveRegistration(outcome, start)
		}
	}()

	issueDate, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	if !s.files.Allowed(in.FileName) {
		return nil, dErrors.New(dErrors.CodeUnsupportedFileType, "file type not allowed; use png, jpg, jpeg or pdf")
	}
	if err := s.authorize(ctx, in); err != nil {
		return nil, err
	}

	staged, err := s.files.Stage(ctx, in.Key, in.FileName, in.File)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to store certificate file",
			"request_id", requestcontext.RequestID(ctx),
			"certificate_hash", in.Key,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to store certificate file")
	}

	record := &models.Record{
		Key:         in.Key,
		StudentName: in.StudentName,
		IssueDate:   issueDate,
		FilePath:    staged.FinalPath,
	}

	if s.LedgerEnabled() {
		receipt, err := s.submit(ctx, in, issueDate)
		if err != nil {
			// The staged file stays where it is; cleanup of files orphaned by a
			// failed ledger write is left to operators.
			return nil, err
		}
		record.AuthorityAddress = receipt.AuthorityAddress
		record.TransactionHash = receipt.TxHash
	}

	persistCtx := ctx
	if record.TransactionHash != "" {
		// The ledger write is final; a caller disconnect must not strand it
		// without a local record. The tx runner still applies its deadline.
		persistCtx = context.WithoutCancel(ctx)
	}
	if err := s.persist(withTxKey(persistCtx, in.Key), record, staged); err != nil {
		if record.TransactionHash != "" {
			s.orphaned(persistCtx, record, err)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "certificate registered",
		"request_id", requestcontext.RequestID(ctx),
		"certificate_hash", record.Key,
		"transaction_hash", record.TransactionHash,
	)
	s.emit(ctx, audit.Event{
		Action:          string(audit.EventCertificateRegistered),
		Subject:         record.Key,
		ActorID:         record.AuthorityAddress,
		TransactionHash: record.TransactionHash,
		Decision:        "registered",
		RequestID:       requestcontext.RequestID(ctx),
	})

	return &models.RegistrationResult{
		Key:             record.Key,
		FilePath:        record.FilePath,
		TransactionHash: record.TransactionHash,
	}, nil
}

// validate trims the text fields in place and parses the issue date.
func (s *Service) validate(in *models.RegistrationInput) (int64, error) {
	in.Key = strings.TrimSpace(in.Key)
	in.StudentName = strings.TrimSpace(in.StudentName)
	in.IssueDate = strings.TrimSpace(in.IssueDate)
	in.InstitutionAddress = strings.TrimSpace(in.InstitutionAddress)

	var missing []string
	if in.Key == "" {
		missing = append(missing, "certificate_hash")
	}
	if in.StudentName == "" {
		missing = append(missing, "student_name")
	}
	if in.IssueDate == "" {
		missing = append(missing, "issue_date")
	}
	if in.FileName == "" || len(in.File) == 0 {
		missing = append(missing, "file")
	}
	if s.LedgerEnabled() {
		switch s.authorityModel {
		case config.AuthorityInstitution:
			if in.InstitutionAddress == "" {
				missing = append(missing, "institution_address")
			}
			if in.Signature == "" {
				missing = append(missing, "signature")
			}
		default:
			if in.IssuerPrivateKey == "" {
				missing = append(missing, "issuer_private_key")
			}
		}
	}
	if len(missing) > 0 {
		return 0, dErrors.New(dErrors.CodeIncompleteInput, "missing required fields: "+strings.Join(missing, ", "))
	}

	issueDate, err := strconv.ParseInt(in.IssueDate, 10, 64)
	if err != nil || issueDate < 0 {
		return 0, dErrors.New(dErrors.CodeIncompleteInput, "issue_date must be a non-negative integer epoch timestamp")
	}
	return issueDate, nil
}

// authorize checks the institution's signature over the certificate key. The
// issuer model carries its own credential, which only the ledger can check.
func (s *Service) authorize(ctx context.Context, in *models.RegistrationInput) error {
	if !s.LedgerEnabled() || s.authorityModel != config.AuthorityInstitution {
		return nil
	}
	if s.verifier.VerifySignature(in.InstitutionAddress, in.Key, in.Signature) {
		return nil
	}
	s.logger.WarnContext(ctx, "institution signature rejected",
		"request_id", requestcontext.RequestID(ctx),
		"certificate_hash", in.Key,
		"institution_address", in.InstitutionAddress,
	)
	s.emit(ctx, audit.Event{
		Action:    string(audit.EventAuthorizationDenied),
		Subject:   in.Key,
		ActorID:   in.InstitutionAddress,
		Decision:  "denied",
		Reason:    "invalid institution signature",
		RequestID: requestcontext.RequestID(ctx),
	})
	return dErrors.New(dErrors.CodeForbidden, "invalid institution signature")
}

func (s *Service) submit(ctx context.Context, in *models.RegistrationInput, issueDate int64) (ledger.Receipt, error) {
	authority := ledger.Authority{PrivateKey: in.IssuerPrivateKey}
	if s.authorityModel == config.AuthorityInstitution {
		authority = ledger.Authority{Address: in.InstitutionAddress}
	}

	receipt, err := s.ledger.RegisterCertificate(ctx, ledger.CertificateSubmission{
		Key:         in.Key,
		StudentName: in.StudentName,
		IssueDate:   issueDate,
		Authority:   authority,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "ledger rejected certificate registration",
			"request_id", requestcontext.RequestID(ctx),
			"certificate_hash", in.Key,
			"category", ledger.CategoryOf(err),
			"error", err,
		)
		s.track(ctx, audit.Event{
			Action:    string(audit.EventCertificateRejected),
			Subject:   in.Key,
			Decision:  string(ledger.CategoryOf(err)),
			Reason:    ledger.ReasonOf(err),
			RequestID: requestcontext.RequestID(ctx),
		})
		return ledger.Receipt{}, ledger.DomainError(err)
	}

	if receipt.AuthorityAddress == "" {
		switch s.authorityModel {
		case config.AuthorityInstitution:
			receipt.AuthorityAddress = ethkey.ChecksumAddress(in.InstitutionAddress)
		default:
			if addr, derr := ethkey.AddressFromPrivateKey(in.IssuerPrivateKey); derr == nil {
				receipt.AuthorityAddress = addr
			}
		}
	}
	return receipt, nil
}

// persist inserts the record and promotes the staged file inside one
// transaction. A promoted file whose transaction fails is removed again.
func (s *Service) persist(ctx context.Context, record *models.Record, staged *models.StagedFile) error {
	promoted := ""
	err := s.tx.RunInTx(ctx, func(store Store) error {
		if err := store.Insert(ctx, record); err != nil {
			return err
		}
		path, err := s.files.Promote(staged)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to store certificate file")
		}
		promoted = path
		return nil
	})
	if err == nil {
		return nil
	}

	if promoted != "" {
		if rmErr := s.files.Remove(promoted); rmErr != nil {
			s.logger.ErrorContext(ctx, "failed to remove promoted file after rollback",
				"certificate_hash", record.Key,
				"file_path", promoted,
				"error", rmErr,
			)
		}
	} else if rmErr := s.files.Remove(staged.TempPath); rmErr != nil {
		s.logger.WarnContext(ctx, "failed to remove staged file",
			"certificate_hash", record.Key,
			"error", rmErr,
		)
	}

	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed) && !dErrors.HasCode(err, dErrors.CodeStorageFailure):
		return dErrors.Wrap(err, dErrors.CodeDuplicateKey, "certificate already registered")
	case dErrors.HasCode(err, dErrors.CodeStorageFailure), dErrors.HasCode(err, dErrors.CodeTimeout):
		return err
	default:
		s.logger.ErrorContext(ctx, "failed to insert certificate record",
			"request_id", requestcontext.RequestID(ctx),
			"certificate_hash", record.Key,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to save certificate record")
	}
}

// orphaned reports a ledger write that has no local record.
func (s *Service) orphaned(ctx context.Context, record *models.Record, cause error) {
	s.logger.ErrorContext(ctx, "ledger write without local record; manual reconciliation required",
		"request_id", requestcontext.RequestID(ctx),
		"certificate_hash", record.Key,
		"transaction_hash", record.TransactionHash,
		"error", cause,
	)
	if s.metrics != nil {
		s.metrics.IncrementOrphaned()
	}
	s.emit(ctx, audit.Event{
		Action:          string(audit.EventLedgerOrphaned),
		Subject:         record.Key,
		ActorID:         record.AuthorityAddress,
		TransactionHash: record.TransactionHash,
		Reason:          string(dErrors.CodeOf(cause)),
		RequestID:       requestcontext.RequestID(ctx),
	})
}
