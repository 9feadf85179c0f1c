package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"flow-gateway/internal/database"
	"flow-gateway/internal/middleware"
	"flow-gateway/internal/models"
	svcerr "flow-gateway/pkg/errors"
)

// ExecutionHandler serves the caller's own recorded executions
type ExecutionHandler struct {
	repo   database.Repository
	logger *zap.Logger
}

// NewExecutionHandler creates a new execution handler
func NewExecutionHandler(repo database.Repository, logger *zap.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		repo:   repo,
		logger: logger,
	}
}

// HandleList handles GET /api/v1/executions
// @Summary     List own triggered runs
// @Description Returns execution records attributed to the authenticated caller
// @Tags        executions
// @Produce     application/json
// @Param       limit query    int false "Page size (1-100)"
// @Success     200   {object} models.ExecutionListResponse
// @Failure     401   {object} map[string]string
// @Router      /api/v1/executions [get]
func (h *ExecutionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, svcerr.ErrInvalidToken)
		return
	}

	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit < 1 || limit > 100 {
		writeError(w, svcerr.WithMessage(svcerr.ErrValidation, "limit must be between 1 and 100"))
		return
	}

	executions, err := h.repo.ListExecutionsBySubject(r.Context(), subject, limit)
	if err != nil {
		h.logger.Error("Execution listing failed", zap.String("subject", subject), zap.Error(err))
		writeError(w, svcerr.ErrInternalServer)
		return
	}
	if executions == nil {
		executions = []models.Execution{}
	}

	writeJSON(w, http.StatusOK, models.ExecutionListResponse{
		Executions: executions,
		Total:      len(executions),
	})
}
