package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"certledger/internal/certificate/handler/mocks"
	"certledger/internal/certificate/models"
	"certledger/internal/platform/config"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/testutil"
)

const (
	validKey  = "0x9c22ff5f21f0b81b113e63f7db6da94fedef11b2119b4088b89664fb9a3cb658"
	validAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.setup(Config{LedgerEnabled: true, AuthorityModel: config.AuthorityIssuer})
}

func (s *HandlerSuite) setup(cfg Config, opts ...Option) {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.service, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...).Register(s.router)
}

func registerFields(key string) map[string]string {
	return map[string]string{
		"certificate_hash":   key,
		"student_name":       "Maria Silva",
		"issue_date":         "1700000000",
		"issuer_private_key": "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	}
}

func pdf() testutil.MultipartFile {
	return testutil.MultipartFile{Field: "file", Name: "certificado.pdf", Contents: []byte("%PDF-1.4")}
}

func (s *HandlerSuite) TestRegister() {
	s.Run("maps form fields onto the registration input", func() {
		s.SetupTest()
		s.service.EXPECT().Register(gomock.Any(), gomock.Cond(func(in *models.RegistrationInput) bool {
			return in.Key == validKey &&
				in.StudentName == "Maria Silva" &&
				in.IssueDate == "1700000000" &&
				in.FileName == "certificado.pdf" &&
				string(in.File) == "%PDF-1.4" &&
				in.IssuerPrivateKey != ""
		})).Return(&models.RegistrationResult{
			Key:             validKey,
			FilePath:        "uploads/" + validKey + ".pdf",
			TransactionHash: "0x01",
		}, nil)

		req := testutil.NewMultipartRequest(s.T(), http.MethodPost, "/register_certificate", registerFields(validKey), pdf())
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.Equal("success", (*body)["status"])
		s.Equal("uploads/"+validKey+".pdf", (*body)["file_path"])
		s.Equal("0x01", (*body)["transaction_hash"])
	})

	s.Run("ignores URL query values for form fields", func() {
		s.SetupTest()
		fields := registerFields(validKey)
		delete(fields, "student_name")

		s.service.EXPECT().Register(gomock.Any(), gomock.Cond(func(in *models.RegistrationInput) bool {
			return in.Key == validKey && in.StudentName == ""
		})).Return(nil, dErrors.New(dErrors.CodeIncompleteInput, "missing required fields: student_name"))

		req := testutil.NewMultipartRequest(s.T(), http.MethodPost, "/register_certificate?student_name=Injected", fields, pdf())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeIncompleteInput))
	})

	s.Run("form values win over URL query values", func() {
		s.SetupTest()
		s.service.EXPECT().Register(gomock.Any(), gomock.Cond(func(in *models.RegistrationInput) bool {
			return in.Key == validKey && in.StudentName == "Maria Silva"
		})).Return(&models.RegistrationResult{Key: validKey, FilePath: "f.pdf", TransactionHash: "0x01"}, nil)

		req := testutil.NewMultipartRequest(s.T(), http.MethodPost, "/register_certificate?student_name=Injected", registerFields(validKey), pdf())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONHasKey(s.T(), rr, "transaction_hash")
	})

	s.Run("accepts certificate_code alias", func() {
		s.SetupTest()
		fields := registerFields("")
		delete(fields, "certificate_hash")
		fields["certificate_code"] = validKey
		s.service.EXPECT().Register(gomock.Any(), gomock.Cond(func(in *models.RegistrationInput) bool {
			return in.Key == validKey
		})).Return(&models.RegistrationResult{Key: validKey, FilePath: "f.pdf"}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewMultipartRequest(s.T(), http.MethodPost, "/register_certificate", fields, pdf()))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("rejects malformed key when the ledger is enabled", func() {
		s.SetupTest()
		rr := testutil.DoRequest(s.router, testutil.NewMultipartRequest(s.T(), http.MethodPost, "/register_certificate", registerFields("0xabc"), pdf()))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("accepts any key in local mode", func() {
		s.setup(Config{LedgerEnabled: false})
		s.service.EXPECT().Register(gomock.Any(), gomock.Any()).Return(&models.RegistrationResult{Key: "CERT-1", FilePath: "uploads/CERT-1.pdf"}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewMultipartRequest(s.T(), http.MethodPost, "/register_certificate", registerFields("CERT-1"), pdf()))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("service errors use the error envelope", func() {
		s.SetupTest()
		s.service.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeDuplicateKey, "certificate already registered"))

		rr := testutil.DoRequest(s.router, testutil.NewMultipartRequest(s.T(), http.MethodPost, "/register_certificate", registerFields(validKey), pdf()))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeDuplicateKey))
	})

	s.Run("non-multipart body is a bad request", func() {
		s.SetupTest()
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/register_certificate", `{"x":1}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("oversized upload is a bad request", func() {
		s.setup(Config{LedgerEnabled: false, MaxUploadBytes: 64})
		big := testutil.MultipartFile{Field: "file", Name: "big.pdf", Contents: make([]byte, 4096)}
		rr := testutil.DoRequest(s.router, testutil.NewMultipartRequest(s.T(), http.MethodPost, "/register_certificate", registerFields("CERT-1"), big))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("write middleware guards registration", func() {
		deny := func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			})
		}
		s.setup(Config{LedgerEnabled: true}, WithWriteMiddleware(deny))

		rr := testutil.DoRequest(s.router, testutil.NewMultipartRequest(s.T(), http.MethodPost, "/register_certificate", registerFields(validKey), pdf()))
		testutil.AssertStatus(s.T(), rr, http.StatusTooManyRequests)
	})
}

func (s *HandlerSuite) TestReadMiddlewareGuardsLookups() {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	s.setup(Config{LedgerEnabled: true}, WithReadMiddleware(deny))

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/get_certificate?certificate_hash="+validKey))
	testutil.AssertStatus(s.T(), rr, http.StatusTooManyRequests)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/get_certificate/"+validKey))
	testutil.AssertStatus(s.T(), rr, http.StatusTooManyRequests)
}

func (s *HandlerSuite) TestGet() {
	view := &models.View{
		Key:              validKey,
		StudentName:      "Maria Silva",
		IssueDate:        1700000000,
		AuthorityAddress: validAddr,
		TransactionHash:  "0x01",
		FilePath:         "uploads/" + validKey + ".pdf",
	}

	s.Run("by key query", func() {
		s.SetupTest()
		s.service.EXPECT().GetByKey(gomock.Any(), validKey).Return(view, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/get_certificate?certificate_hash="+validKey))
		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[getResponse](s.T(), rr)
		s.Equal("success", body.Status)
		s.Equal("Maria Silva", body.Certificate.StudentName)
		s.Equal(int64(1700000000), body.Certificate.IssueDate)
		s.Equal(validAddr, body.Certificate.IssuerAddress)
		s.Empty(body.Certificate.InstitutionAddress)
	})

	s.Run("by key path", func() {
		s.SetupTest()
		s.service.EXPECT().GetByKey(gomock.Any(), validKey).Return(view, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/get_certificate/"+validKey))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("institution model names the authority field accordingly", func() {
		s.setup(Config{LedgerEnabled: true, AuthorityModel: config.AuthorityInstitution})
		s.service.EXPECT().GetByKey(gomock.Any(), validKey).Return(view, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/get_certificate?key="+validKey))
		body := testutil.UnmarshalResponse[getResponse](s.T(), rr)
		s.Equal(validAddr, body.Certificate.InstitutionAddress)
		s.Empty(body.Certificate.IssuerAddress)
	})

	s.Run("not found is 404", func() {
		s.SetupTest()
		s.service.EXPECT().GetByKey(gomock.Any(), validKey).Return(nil, dErrors.New(dErrors.CodeNotFound, "certificate not found"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/get_certificate/"+validKey))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("by student name", func() {
		s.SetupTest()
		s.service.EXPECT().GetByStudentName(gomock.Any(), "Maria Silva").Return([]*models.View{view}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/get_certificate?student_name=Maria%20Silva"))
		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[listResponse](s.T(), rr)
		s.Require().Len(body.Certificates, 1)
		s.Equal(validKey, body.Certificates[0].CertificateHash)
	})

	s.Run("empty name result is an empty list", func() {
		s.SetupTest()
		s.service.EXPECT().GetByStudentName(gomock.Any(), "Nobody").Return([]*models.View{}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/get_certificate?student_name=Nobody"))
		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[listResponse](s.T(), rr)
		s.NotNil(body.Certificates)
		s.Empty(body.Certificates)
	})

	s.Run("no criteria is incomplete input", func() {
		s.SetupTest()
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/get_certificate"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeIncompleteInput))
	})
}
