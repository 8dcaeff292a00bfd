package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"certledger/internal/certificate/models"
	"certledger/internal/ledger/ethkey"
	"certledger/internal/platform/config"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
	"certledger/pkg/platform/middleware/request"
)

// Service defines the certificate operations the handler exposes.
type Service interface {
	Register(ctx context.Context, in *models.RegistrationInput) (*models.RegistrationResult, error)
	GetByKey(ctx context.Context, key string) (*models.View, error)
	GetByStudentName(ctx context.Context, name string) ([]*models.View, error)
}

const (
	defaultMaxUploadBytes = 10 << 20
	multipartMemory       = 8 << 20
)

// Config mirrors the deployment choices that change the wire contract.
type Config struct {
	LedgerEnabled  bool
	AuthorityModel string
	MaxUploadBytes int64
}

// Handler serves the certificate endpoints.
type Handler struct {
	certificates Service
	cfg          Config
	logger       *slog.Logger
	writeGuards  []func(http.Handler) http.Handler
	readGuards   []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithWriteMiddleware guards the registration endpoint, e.g. with a rate limiter.
func WithWriteMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.writeGuards = append(h.writeGuards, mw...)
	}
}

// WithReadMiddleware guards the lookup endpoints.
func WithReadMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.readGuards = append(h.readGuards, mw...)
	}
}

// New creates a certificate Handler.
func New(certificates Service, cfg Config, logger *slog.Logger, opts ...Option) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.AuthorityModel == "" {
		cfg.AuthorityModel = config.AuthorityIssuer
	}
	h := &Handler{certificates: certificates, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the certificate routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.With(h.writeGuards...).Post("/register_certificate", h.handleRegister)
	r.With(h.readGuards...).Get("/get_certificate", h.handleGet)
	r.With(h.readGuards...).Get("/get_certificate/{key}", h.handleGetByPath)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.logger.WarnContext(ctx, "invalid registration form",
			"request_id", requestID,
			"error", err,
		)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "upload exceeds the size limit"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	in := &models.RegistrationInput{
		Key:                firstValue(r, "certificate_hash", "certificate_code", "key"),
		StudentName:        r.PostFormValue("student_name"),
		IssueDate:          r.PostFormValue("issue_date"),
		IssuerPrivateKey:   r.PostFormValue("issuer_private_key"),
		InstitutionAddress: firstValue(r, "institution_address", "issuer_address"),
		Signature:          r.PostFormValue("signature"),
	}
	if err := readFile(r, in); err != nil {
		h.logger.WarnContext(ctx, "failed to read uploaded file",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read uploaded file"))
		return
	}
	if err := h.checkShape(in); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.certificates.Register(ctx, in)
	if err != nil {
		h.logger.WarnContext(ctx, "certificate registration failed",
			"request_id", requestID,
			"certificate_hash", in.Key,
			"code", dErrors.CodeOf(err),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, registerResponse{
		Status:          statusSuccess,
		Message:         "certificate registered",
		CertificateHash: result.Key,
		FilePath:        result.FilePath,
		TransactionHash: result.TransactionHash,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if key := firstNonEmpty(q.Get("certificate_hash"), q.Get("certificate_code"), q.Get("key")); key != "" {
		h.writeByKey(w, r, key)
		return
	}
	name := strings.TrimSpace(q.Get("student_name"))
	if name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeIncompleteInput, "certificate_hash or student_name is required"))
		return
	}

	ctx := r.Context()
	views, err := h.certificates.GetByStudentName(ctx, name)
	if err != nil {
		h.logger.WarnContext(ctx, "certificate lookup by name failed",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	out := make([]certificateResponse, 0, len(views))
	for _, v := range views {
		out = append(out, h.toResponse(v))
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Status: statusSuccess, Certificates: out})
}

func (h *Handler) handleGetByPath(w http.ResponseWriter, r *http.Request) {
	h.writeByKey(w, r, chi.URLParam(r, "key"))
}

func (h *Handler) writeByKey(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()
	view, err := h.certificates.GetByKey(ctx, strings.TrimSpace(key))
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.WarnContext(ctx, "certificate lookup failed",
				"request_id", request.GetRequestID(ctx),
				"certificate_hash", key,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, getResponse{Status: statusSuccess, Certificate: h.toResponse(view)})
}

// checkShape enforces ledger-addressable keys and well-formed addresses at
// the boundary. Purely-local deployments accept any non-empty key.
func (h *Handler) checkShape(in *models.RegistrationInput) error {
	if !h.cfg.LedgerEnabled {
		return nil
	}
	key := strings.TrimSpace(in.Key)
	if key != "" && !ethkey.IsHash(key) {
		return dErrors.New(dErrors.CodeInvalidInput, "certificate_hash must be 0x followed by 64 hex characters")
	}
	addr := strings.TrimSpace(in.InstitutionAddress)
	if addr != "" && (!ethkey.IsAddress(addr) || ethkey.IsZeroAddress(addr)) {
		return dErrors.New(dErrors.CodeInvalidInput, "institution_address must be 0x followed by 40 hex characters")
	}
	return nil
}

func readFile(r *http.Request, in *models.RegistrationInput) error {
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil
		}
		return err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	in.FileName = header.Filename
	in.File = data
	return nil
}

func firstValue(r *http.Request, fields ...string) string {
	for _, f := range fields {
		if v := strings.TrimSpace(r.PostFormValue(f)); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
