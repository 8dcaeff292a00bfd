package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"certledger/internal/certificate/models"
	"certledger/internal/certificate/service"
	"certledger/internal/certificate/service/mocks"
	"certledger/internal/ledger"
	ledgermocks "certledger/internal/ledger/mocks"
	"certledger/internal/platform/config"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

type LookupSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	store  *mocks.MockStore
	ledger *ledgermocks.MockLedger
	ops    *mocks.MockOpsTracker
}

func TestLookupSuite(t *testing.T) {
	suite.Run(t, new(LookupSuite))
}

func (s *LookupSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.ledger = ledgermocks.NewMockLedger(s.ctrl)
	s.ops = mocks.NewMockOpsTracker(s.ctrl)
	s.ops.EXPECT().Track(gomock.Any(), gomock.Any()).AnyTimes()
}

func (s *LookupSuite) newService(opts ...service.Option) *service.Service {
	ctrl := s.ctrl
	base := []service.Option{
		service.WithLedger(s.ledger),
		service.WithOpsTracker(s.ops),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return service.New(s.store, mocks.NewMockTxRunner(ctrl), mocks.NewMockFileStore(ctrl), append(base, opts...)...)
}

func localRecord(key, name string) *models.Record {
	return &models.Record{
		Key:              key,
		StudentName:      name,
		IssueDate:        1600000000,
		AuthorityAddress: "0x0000000000000000000000000000000000000001",
		TransactionHash:  "0xlocaltx",
		FilePath:         "uploads/" + key + ".pdf",
	}
}

func ledgerLookup(name string) ledger.Lookup {
	return ledger.Lookup{Found: true, View: ledger.View{
		StudentName:      name,
		IssueDate:        1700000000,
		AuthorityAddress: testIssuerAddr,
	}}
}

func (s *LookupSuite) TestGetByKey() {
	s.Run("ledger fields win, local supplies file path", func() {
		s.SetupTest()
		svc := s.newService()
		s.store.EXPECT().FindByKey(gomock.Any(), testKey).Return(localRecord(testKey, "Local Name"), nil)
		s.ledger.EXPECT().GetCertificate(gomock.Any(), testKey).Return(ledgerLookup("Maria Silva"), nil)

		view, err := svc.GetByKey(context.Background(), testKey)
		s.Require().NoError(err)
		s.Equal("Maria Silva", view.StudentName)
		s.Equal(int64(1700000000), view.IssueDate)
		s.Equal(testIssuerAddr, view.AuthorityAddress)
		s.Equal("uploads/"+testKey+".pdf", view.FilePath)
		s.Equal("0xlocaltx", view.TransactionHash)
	})

	s.Run("missing local record is not found without asking the ledger", func() {
		s.SetupTest()
		svc := s.newService()
		s.store.EXPECT().FindByKey(gomock.Any(), testKey).Return(nil, sentinel.ErrNotFound)

		_, err := svc.GetByKey(context.Background(), testKey)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("strict policy treats ledger absence as not found", func() {
		s.SetupTest()
		svc := s.newService()
		s.store.EXPECT().FindByKey(gomock.Any(), testKey).Return(localRecord(testKey, "Maria Silva"), nil)
		s.ledger.EXPECT().GetCertificate(gomock.Any(), testKey).Return(ledger.Lookup{Found: false}, nil)

		_, err := svc.GetByKey(context.Background(), testKey)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("lenient policy falls back to the local record", func() {
		s.SetupTest()
		svc := s.newService(service.WithLookupPolicy(config.LookupLenient))
		s.store.EXPECT().FindByKey(gomock.Any(), testKey).Return(localRecord(testKey, "Maria Silva"), nil)
		s.ledger.EXPECT().GetCertificate(gomock.Any(), testKey).Return(ledger.Lookup{Found: false}, nil)

		view, err := svc.GetByKey(context.Background(), testKey)
		s.Require().NoError(err)
		s.Equal("Maria Silva", view.StudentName)
		s.Equal(int64(1600000000), view.IssueDate)
	})

	s.Run("ledger failure surfaces as ledger error", func() {
		s.SetupTest()
		svc := s.newService()
		s.store.EXPECT().FindByKey(gomock.Any(), testKey).Return(localRecord(testKey, "Maria Silva"), nil)
		s.ledger.EXPECT().GetCertificate(gomock.Any(), testKey).Return(ledger.Lookup{}, ledger.Unavailable(ledger.OpGetCertificate, errors.New("down")))

		_, err := svc.GetByKey(context.Background(), testKey)
		s.True(dErrors.HasCode(err, dErrors.CodeLedgerUnavailable))
	})

	s.Run("store failure is a storage failure", func() {
		s.SetupTest()
		svc := s.newService()
		s.store.EXPECT().FindByKey(gomock.Any(), testKey).Return(nil, errors.New("db down"))

		_, err := svc.GetByKey(context.Background(), testKey)
		s.True(dErrors.HasCode(err, dErrors.CodeStorageFailure))
	})

	s.Run("empty key is incomplete input", func() {
		s.SetupTest()
		svc := s.newService()

		_, err := svc.GetByKey(context.Background(), " ")
		s.True(dErrors.HasCode(err, dErrors.CodeIncompleteInput))
	})
}

func (s *LookupSuite) TestGetByKeyLocalMode() {
	svc := service.New(s.store, mocks.NewMockTxRunner(s.ctrl), mocks.NewMockFileStore(s.ctrl),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.store.EXPECT().FindByKey(gomock.Any(), "CERT-1").Return(localRecord("CERT-1", "Maria Silva"), nil)

	view, err := svc.GetByKey(context.Background(), "CERT-1")
	s.Require().NoError(err)
	s.Equal("Maria Silva", view.StudentName)
	s.Equal(int64(1600000000), view.IssueDate)
}

func (s *LookupSuite) TestGetByStudentName() {
	s.Run("drops absent and failing candidates and keeps insertion order", func() {
		s.SetupTest()
		svc := s.newService(service.WithLookupConcurrency(2))
		records := []*models.Record{
			localRecord("K1", "Ana"),
			localRecord("K2", "Ana"),
			localRecord("K3", "Ana"),
			localRecord("K4", "Ana"),
		}
		s.store.EXPECT().ListByStudentName(gomock.Any(), "Ana").Return(records, nil)
		s.ledger.EXPECT().GetCertificate(gomock.Any(), "K1").Return(ledgerLookup("Ana"), nil)
		s.ledger.EXPECT().GetCertificate(gomock.Any(), "K2").Return(ledger.Lookup{Found: false}, nil)
		s.ledger.EXPECT().GetCertificate(gomock.Any(), "K3").Return(ledger.Lookup{}, ledger.Timeout(ledger.OpGetCertificate, context.DeadlineExceeded))
		s.ledger.EXPECT().GetCertificate(gomock.Any(), "K4").Return(ledgerLookup("Ana"), nil)

		views, err := svc.GetByStudentName(context.Background(), "Ana")
		s.Require().NoError(err)
		s.Require().Len(views, 2)
		s.Equal("K1", views[0].Key)
		s.Equal("K4", views[1].Key)
	})

	s.Run("lenient policy keeps absent candidates but still drops failures", func() {
		s.SetupTest()
		svc := s.newService(service.WithLookupPolicy(config.LookupLenient))
		s.store.EXPECT().ListByStudentName(gomock.Any(), "Ana").Return([]*models.Record{
			localRecord("K1", "Ana"),
			localRecord("K2", "Ana"),
		}, nil)
		s.ledger.EXPECT().GetCertificate(gomock.Any(), "K1").Return(ledger.Lookup{Found: false}, nil)
		s.ledger.EXPECT().GetCertificate(gomock.Any(), "K2").Return(ledger.Lookup{}, ledger.Unavailable(ledger.OpGetCertificate, errors.New("down")))

		views, err := svc.GetByStudentName(context.Background(), "Ana")
		s.Require().NoError(err)
		s.Require().Len(views, 1)
		s.Equal("K1", views[0].Key)
	})

	s.Run("no candidates is an empty list", func() {
		s.SetupTest()
		svc := s.newService()
		s.store.EXPECT().ListByStudentName(gomock.Any(), "Nobody").Return([]*models.Record{}, nil)

		views, err := svc.GetByStudentName(context.Background(), "Nobody")
		s.Require().NoError(err)
		s.NotNil(views)
		s.Empty(views)
	})

	s.Run("store failure is a storage failure", func() {
		s.SetupTest()
		svc := s.newService()
		s.store.EXPECT().ListByStudentName(gomock.Any(), "Ana").Return(nil, errors.New("db down"))

		_, err := svc.GetByStudentName(context.Background(), "Ana")
		s.True(dErrors.HasCode(err, dErrors.CodeStorageFailure))
	})
}
