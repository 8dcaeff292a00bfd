package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"certledger/pkg/platform/httputil"
)

type Handler struct {
	prober *Prober
}

func NewHandler(p *Prober) *Handler {
	return &Handler{prober: p}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

// handleHealth reports the last scheduled probe. 503 when a dependency is down.
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := h.prober.Status()
	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, status)
}
