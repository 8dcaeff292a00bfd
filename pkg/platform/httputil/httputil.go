// Package httputil holds the JSON response helpers shared by every handler.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "certledger/pkg/domain-errors"
)

// Validatable is implemented by request DTOs that normalize and check themselves.
type Validatable interface {
	Validate() error
}

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as {status:"error", message}. Internal errors never leak detail.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)
	message := dErrors.MessageOf(err)
	if status >= http.StatusInternalServerError || message == "" {
		message = "internal server error"
	}
	WriteJSON(w, status, ErrorResponse{
		Status:  "error",
		Code:    string(code),
		Message: message,
	})
}

// StatusFor maps a domain code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	case dErrors.CodeBadRequest,
		dErrors.CodeValidation,
		dErrors.CodeInvalidInput,
		dErrors.CodeInvalidRequest,
		dErrors.CodeInvariantViolation,
		dErrors.CodeConflict,
		dErrors.CodeTimeout,
		dErrors.CodeUnavailable,
		dErrors.CodeIncompleteInput,
		dErrors.CodeUnsupportedFileType,
		dErrors.CodeStorageFailure,
		dErrors.CodeDuplicateKey,
		dErrors.CodeLedgerUnavailable,
		dErrors.CodeLedgerRejected,
		dErrors.CodeLedgerTimeout:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// DecodeAndPrepare decodes a JSON body into T and runs its validation.
// On failure it writes the error response and returns ok=false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	if err := PT(&req).Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
