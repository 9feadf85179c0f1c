package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"flow-gateway/internal/orchestrator"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	provider *orchestrator.Provider
	logger   *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(provider *orchestrator.Provider, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		provider: provider,
		logger:   logger,
	}
}

// HandleHealth handles GET /health
// @Summary     Liveness probe
// @Tags        health
// @Produce     application/json
// @Success     200 {object} map[string]string
// @Router      /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleReady handles GET /ready; 503 when the orchestrator is unreachable
// @Summary     Readiness probe
// @Tags        health
// @Produce     application/json
// @Success     200 {object} map[string]string
// @Failure     503 {object} map[string]string
// @Router      /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.Client().Health(r.Context()); err != nil {
		h.logger.Warn("Orchestrator unreachable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
