package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"flow-gateway/internal/models"
	"flow-gateway/internal/orchestrator"
	svcerr "flow-gateway/pkg/errors"
)

// RunHandler handles flow run status, result and cancellation requests
type RunHandler struct {
	provider *orchestrator.Provider
	logger   *zap.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(provider *orchestrator.Provider, logger *zap.Logger) *RunHandler {
	return &RunHandler{
		provider: provider,
		logger:   logger,
	}
}

// HandleGetRun handles GET /api/v1/runs/{run_id}
// @Summary     Get flow run status
// @Tags        runs
// @Produce     application/json
// @Param       run_id path     string true "Flow run UUID"
// @Success     200    {object} models.FlowRun
// @Failure     401    {object} map[string]string
// @Failure     404    {object} map[string]string
// @Router      /api/v1/runs/{run_id} [get]
func (h *RunHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]

	run, err := h.provider.Client().GetFlowRun(r.Context(), runID)
	if err != nil {
		h.writeRunError(w, runID, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// HandleGetRunResult handles GET /api/v1/runs/{run_id}/result
// @Summary     Get flow run result
// @Tags        runs
// @Produce     application/json
// @Param       run_id path     string true "Flow run UUID"
// @Success     200    {object} models.FlowRunResultResponse
// @Failure     404    {object} map[string]string
// @Router      /api/v1/runs/{run_id}/result [get]
func (h *RunHandler) HandleGetRunResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := mux.Vars(r)["run_id"]
	client := h.provider.Client()

	run, err := client.GetFlowRun(ctx, runID)
	if err != nil {
		h.writeRunError(w, runID, err)
		return
	}

	resp := models.FlowRunResultResponse{
		RunID: runID,
		State: run.State,
	}

	switch run.StateType {
	case models.StateCompleted:
		result, err := client.GetFlowRunResult(ctx, runID)
		if err != nil {
			h.writeRunError(w, runID, err)
			return
		}
		resp.Result = result
	case models.StateFailed:
		resp.Error = "Flow run failed: " + run.State
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleCancelRun handles DELETE /api/v1/runs/{run_id}
// @Summary     Cancel a flow run
// @Tags        runs
// @Produce     application/json
// @Param       run_id path     string true "Flow run UUID"
// @Success     200    {object} models.CancelResponse
// @Failure     500    {object} map[string]string
// @Router      /api/v1/runs/{run_id} [delete]
func (h *RunHandler) HandleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]

	run, err := h.provider.Client().CancelFlowRun(r.Context(), runID)
	if err != nil {
		h.logger.Error("Flow run cancellation failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, svcerr.WithMessage(svcerr.ErrOrchestrator, "Failed to cancel flow run: "+err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, models.CancelResponse{
		Message: "Flow run cancelled successfully",
		RunID:   runID,
		State:   run.State,
	})
}

// writeRunError maps run-lookup failures: a run the orchestrator does not know
// is a 404, anything else surfaces as a 500 carrying the upstream error text.
func (h *RunHandler) writeRunError(w http.ResponseWriter, runID string, err error) {
	var notFound *orchestrator.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, svcerr.WithMessage(svcerr.ErrRunNotFound, "Flow run not found: "+runID))
		return
	}

	h.logger.Error("Flow run lookup failed", zap.String("run_id", runID), zap.Error(err))
	writeError(w, svcerr.WithMessage(svcerr.ErrOrchestrator, "Failed to fetch flow run: "+err.Error()))
}
