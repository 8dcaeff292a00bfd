package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certledger/internal/authority/models"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
	"certledger/pkg/platform/middleware/auth"
	"certledger/pkg/platform/middleware/request"
)

// Service defines the administrative ledger operations.
type Service interface {
	RegisterInstitution(ctx context.Context, req *models.RegisterInstitutionRequest) (*models.Result, error)
	VerifyInstitution(ctx context.Context, req *models.VerifyInstitutionRequest) (*models.Result, error)
	TransferAdmin(ctx context.Context, req *models.TransferAdminRequest) (*models.Result, error)
}

// Handler serves the admin-only authority endpoints.
type Handler struct {
	authority    Service
	jwtValidator auth.JWTValidator
	logger       *slog.Logger
	guards       []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithMiddleware adds middleware run after the admin check.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.guards = append(h.guards, mw...)
	}
}

// New creates an authority Handler.
func New(authority Service, jwtValidator auth.JWTValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{authority: authority, jwtValidator: jwtValidator, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the authority routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin(h.jwtValidator, h.logger))
		r.Use(h.guards...)
		r.Post("/register_institution", h.handleRegisterInstitution)
		r.Post("/verify_institution", h.handleVerifyInstitution)
		r.Post("/transfer_admin", h.handleTransferAdmin)
	})
}

func (h *Handler) handleRegisterInstitution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.RegisterInstitutionRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	res, err := h.authority.RegisterInstitution(ctx, req)
	h.respond(w, r, "register_institution", res, err)
}

func (h *Handler) handleVerifyInstitution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.VerifyInstitutionRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	res, err := h.authority.VerifyInstitution(ctx, req)
	h.respond(w, r, "verify_institution", res, err)
}

func (h *Handler) handleTransferAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.TransferAdminRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	res, err := h.authority.TransferAdmin(ctx, req)
	h.respond(w, r, "transfer_admin", res, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, op string, res *models.Result, err error) {
	if err != nil {
		h.logger.WarnContext(r.Context(), "authority operation failed",
			"request_id", request.GetRequestID(r.Context()),
			"op", op,
			"code", dErrors.CodeOf(err),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.OperationResponse{
		Status:          "success",
		TransactionHash: res.TransactionHash,
		Address:         res.Address,
	})
}
