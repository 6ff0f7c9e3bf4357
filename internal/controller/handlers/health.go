package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

type healthResponse struct {
	Status string `json:"status"`
}

// Health GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Ready GET /ready проверяет соединение с базой
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		h.respond(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}

	h.respond(w, http.StatusOK, healthResponse{Status: "ready"})
}
