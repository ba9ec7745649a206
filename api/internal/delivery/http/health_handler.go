package http

import (
	"context"
	"net/http"
	"time"
)

// Pinger is anything whose liveness the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	vault Pinger
}

func NewHealthHandler(vault Pinger) *HealthHandler {
	return &HealthHandler{vault: vault}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	// Keep probes cheap: a stuck backend should fail fast, not hang the orchestrator.
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.vault.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unhealthy: vault unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("healthy"))
}
