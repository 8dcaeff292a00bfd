package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "certledger/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits detail", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["status"] != "error" {
			t.Fatalf("expected status error, got %q", body["status"])
		}
		if body["message"] != "internal server error" {
			t.Fatalf("expected generic message for internal errors, got %q", body["message"])
		}
	})

	t.Run("ledger rejection is a 400 with message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeLedgerRejected, "certificate already registered"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["message"] != "certificate already registered" {
			t.Fatalf("expected message to be returned, got %q", body["message"])
		}
		if body["code"] != "ledger_rejected" {
			t.Fatalf("expected code ledger_rejected, got %q", body["code"])
		}
	})

	t.Run("not found is a 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeNotFound, "certificate not found"))
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}
