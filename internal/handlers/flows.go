package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"flow-gateway/internal/database"
	"flow-gateway/internal/middleware"
	"flow-gateway/internal/models"
	"flow-gateway/internal/orchestrator"
	svcerr "flow-gateway/pkg/errors"
)

// defaultDeploymentSuffix is the deployment targeted when the execute endpoint
// names only a flow.
const defaultDeploymentSuffix = "production"

// FlowHandler handles flow execution requests
type FlowHandler struct {
	provider *orchestrator.Provider
	repo     database.Repository
	logger   *zap.Logger
}

// NewFlowHandler creates a new flow handler
func NewFlowHandler(provider *orchestrator.Provider, repo database.Repository, logger *zap.Logger) *FlowHandler {
	return &FlowHandler{
		provider: provider,
		repo:     repo,
		logger:   logger,
	}
}

// HandleExecute handles POST /api/v1/flows/{flow_name}/execute
// @Summary     Execute a flow
// @Description Trigger the flow's default deployment with the given parameters
// @Tags        flows
// @Accept      application/json
// @Produce     application/json
// @Param       flow_name path     string                    true "Flow name"
// @Param       request   body     models.FlowExecuteRequest true "Execution request"
// @Success     202       {object} models.FlowRun
// @Failure     401       {object} map[string]string
// @Failure     422       {object} map[string]string
// @Failure     500       {object} map[string]string
// @Router      /api/v1/flows/{flow_name}/execute [post]
func (h *FlowHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	flowName := mux.Vars(r)["flow_name"]
	h.execute(w, r, flowName, defaultDeploymentSuffix)
}

// HandleExecuteDeployment handles POST /api/v1/flows/{flow_name}/execute/{deployment_name}
// @Summary     Execute a specific deployment
// @Tags        flows
// @Accept      application/json
// @Produce     application/json
// @Param       flow_name       path     string                    true "Flow name"
// @Param       deployment_name path     string                    true "Deployment name"
// @Param       request         body     models.FlowExecuteRequest true "Execution request"
// @Success     202             {object} models.FlowRun
// @Failure     401             {object} map[string]string
// @Failure     500             {object} map[string]string
// @Router      /api/v1/flows/{flow_name}/execute/{deployment_name} [post]
func (h *FlowHandler) HandleExecuteDeployment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.execute(w, r, vars["flow_name"], vars["deployment_name"])
}

func (h *FlowHandler) execute(w http.ResponseWriter, r *http.Request, flowName, deploymentSuffix string) {
	ctx := r.Context()

	subject, ok := middleware.SubjectFromContext(ctx)
	if !ok {
		writeError(w, svcerr.ErrInvalidToken)
		return
	}

	var req models.FlowExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, svcerr.Wrap(err, svcerr.ErrValidation))
		return
	}
	if req.Parameters == nil {
		writeError(w, svcerr.WithMessage(svcerr.ErrValidation, "parameters must be a JSON object"))
		return
	}

	// Tag the run with the authenticated caller so attribution never relies
	// on client-supplied tags.
	tags := append(req.Tags, "user:"+subject)

	deploymentName := flowName + "/" + deploymentSuffix
	run, err := h.provider.Client().RunDeployment(ctx, deploymentName, req.Parameters, tags)
	if err != nil {
		h.logger.Error("Flow execution failed",
			zap.String("deployment", deploymentName),
			zap.Error(err))
		writeError(w, svcerr.WithMessage(svcerr.ErrOrchestrator, "Failed to execute flow: "+err.Error()))
		return
	}

	h.recordExecution(r, subject, run, req.Parameters)

	writeJSON(w, http.StatusAccepted, run)
}

// recordExecution persists attribution metadata for a triggered run. Failures
// are logged, never surfaced: the run is already accepted by the orchestrator.
func (h *FlowHandler) recordExecution(r *http.Request, subject string, run *models.FlowRun, parameters map[string]interface{}) {
	params, err := json.Marshal(parameters)
	if err != nil {
		params = []byte("{}")
	}

	execution := &models.Execution{
		ID:             uuid.New().String(),
		RunID:          run.ID,
		FlowName:       run.FlowName,
		DeploymentName: run.DeploymentName,
		Subject:        subject,
		Parameters:     params,
		State:          run.StateType,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.repo.RecordExecution(r.Context(), execution); err != nil {
		h.logger.Warn("Failed to record execution metadata",
			zap.String("run_id", run.ID),
			zap.Error(err))
	}
}
