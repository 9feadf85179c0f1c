package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"flow-gateway/internal/models"
	"flow-gateway/internal/orchestrator"
	svcerr "flow-gateway/pkg/errors"
)

// DeploymentHandler handles deployment listing requests
type DeploymentHandler struct {
	provider *orchestrator.Provider
	logger   *zap.Logger
}

// NewDeploymentHandler creates a new deployment handler
func NewDeploymentHandler(provider *orchestrator.Provider, logger *zap.Logger) *DeploymentHandler {
	return &DeploymentHandler{
		provider: provider,
		logger:   logger,
	}
}

// HandleList handles GET /api/v1/deployments/
// @Summary     List deployments
// @Tags        deployments
// @Produce     application/json
// @Param       limit  query    int false "Page size (1-100)"
// @Param       offset query    int false "Page offset"
// @Success     200    {object} models.DeploymentListResponse
// @Failure     422    {object} map[string]string
// @Failure     500    {object} map[string]string
// @Router      /api/v1/deployments/ [get]
func (h *DeploymentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil || limit < 1 || limit > 100 {
		writeError(w, svcerr.WithMessage(svcerr.ErrValidation, "limit must be between 1 and 100"))
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, svcerr.WithMessage(svcerr.ErrValidation, "offset must not be negative"))
		return
	}

	deployments, err := h.provider.Client().ListDeployments(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Deployment listing failed", zap.Error(err))
		writeError(w, svcerr.WithMessage(svcerr.ErrOrchestrator, "Failed to list deployments: "+err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, models.DeploymentListResponse{
		Deployments: deployments,
		Total:       len(deployments),
		Limit:       limit,
		Offset:      offset,
	})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def, nil
	}
	return strconv.Atoi(value)
}
