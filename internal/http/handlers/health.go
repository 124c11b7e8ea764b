package handlers

import (
	"net/http"
	"time"

	"github.com/hongminglow/carepoint/internal/http/respond"
)

// HealthHandler returns uptime and the backend the portal relays to.
type HealthHandler struct {
	startedAt time.Time
	backend   string
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, backend string) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, backend: backend}
}

// Register wires the handler into a ServeMux.
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, "ok", map[string]string{
		"status":  "ok",
		"uptime":  time.Since(h.startedAt).Truncate(time.Second).String(),
		"backend": h.backend,
	})
}
