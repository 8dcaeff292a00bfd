package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"certledger/internal/certificate/models"
	"certledger/internal/ledger"
	"certledger/internal/platform/config"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/audit"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/requestcontext"
)

// GetByKey returns the certificate registered under key. A local record is
// always required. With a ledger configured, the ledger's fields are
// authoritative and a certificate the ledger does not know is not found.
func (s *Service) GetByKey(ctx context.Context, key string) (view *models.View, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "certificate.get_by_key", trace.WithAttributes(
		attribute.String("certificate.key", key),
	))
	defer func() {
		s.finishLookup(span, "key", start, err)
	}()

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, dErrors.New(dErrors.CodeIncompleteInput, "certificate_hash or student_name is required")
	}

	record, err := s.store.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to load certificate")
	}

	if !s.LedgerEnabled() {
		s.viewed(ctx, record.Key)
		return models.ViewFromRecord(record), nil
	}

	lookup, err := s.ledger.GetCertificate(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "ledger lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"certificate_hash", key,
			"error", err,
		)
		return nil, ledger.DomainError(err)
	}

	view, ok := s.merge(ctx, record, lookup)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found on ledger")
	}
	s.viewed(ctx, record.Key)
	return view, nil
}

// GetByStudentName resolves every local candidate for name with the per-key
// rule, preserving insertion order. Candidates whose ledger lookup fails or
// comes back empty are dropped. No match is an empty list.
func (s *Service) GetByStudentName(ctx context.Context, name string) (views []*models.View, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "certificate.get_by_student_name")
	defer func() {
		s.finishLookup(span, "student_name", start, err)
	}()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeIncompleteInput, "certificate_hash or student_name is required")
	}

	records, err := s.store.ListByStudentName(ctx, name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to list certificates")
	}
	span.SetAttributes(attribute.Int("certificate.candidates", len(records)))

	if !s.LedgerEnabled() {
		views = make([]*models.View, 0, len(records))
		for _, r := range records {
			views = append(views, models.ViewFromRecord(r))
		}
		return views, nil
	}

	resolved := make([]*models.View, len(records))
	var g errgroup.Group
	g.SetLimit(s.lookupConcurrency)
	for i, r := range records {
		g.Go(func() error {
			lookup, err := s.ledger.GetCertificate(ctx, r.Key)
			if err != nil {
				s.logger.WarnContext(ctx, "dropping candidate after ledger lookup failure",
					"request_id", requestcontext.RequestID(ctx),
					"certificate_hash", r.Key,
					"error", err,
				)
				return nil
			}
			if v, ok := s.merge(ctx, r, lookup); ok {
				resolved[i] = v
			}
			return nil
		})
	}
	_ = g.Wait()

	views = make([]*models.View, 0, len(records))
	for _, v := range resolved {
		if v != nil {
			views = append(views, v)
		}
	}
	return views, nil
}

// merge applies the reconciliation rule: ledger fields win, the local record
// supplies the file path. ok is false when the certificate must be treated as
// absent.
func (s *Service) merge(ctx context.Context, record *models.Record, lookup ledger.Lookup) (*models.View, bool) {
	if !lookup.Found {
		if s.lookupPolicy != config.LookupLenient {
			return nil, false
		}
		s.logger.WarnContext(ctx, "certificate missing on ledger; serving local record",
			"request_id", requestcontext.RequestID(ctx),
			"certificate_hash", record.Key,
		)
		return models.ViewFromRecord(record), true
	}
	return &models.View{
		Key:              record.Key,
		StudentName:      lookup.View.StudentName,
		IssueDate:        lookup.View.IssueDate,
		AuthorityAddress: lookup.View.AuthorityAddress,
		TransactionHash:  record.TransactionHash,
		FilePath:         record.FilePath,
	}, true
}

func (s *Service) viewed(ctx context.Context, key string) {
	s.track(ctx, audit.Event{
		Action:    string(audit.EventCertificateViewed),
		Subject:   key,
		RequestID: requestcontext.RequestID(ctx),
	})
}

func (s *Service) finishLookup(span trace.Span, mode string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
	if s.metrics != nil {
		s.metrics.ObserveLookup(mode, outcome, start)
	}
}
