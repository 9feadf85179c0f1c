package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"flow-gateway/internal/models"
)

// Service is the interface handlers program against. *Client is the production
// implementation; tests substitute a mock through the Provider.
type Service interface {
	RunDeployment(ctx context.Context, deploymentName string, parameters map[string]interface{}, tags []string) (*models.FlowRun, error)
	GetFlowRun(ctx context.Context, runID string) (*models.FlowRun, error)
	GetFlowRunResult(ctx context.Context, runID string) (interface{}, error)
	CancelFlowRun(ctx context.Context, runID string) (*models.FlowRun, error)
	ListDeployments(ctx context.Context, limit, offset int) ([]models.Deployment, error)
	Health(ctx context.Context) error
	Close()
}

// NotFoundError reports that the orchestrator does not know the referenced run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("flow run %s not found", e.RunID)
}

// APIError reports a non-2xx orchestrator response other than a missing run.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("orchestrator returned %d: %s", e.Status, e.Body)
}

// Client wraps the orchestrator's HTTP API behind a single pooled connection
// context. It is safe for concurrent use; it holds no per-request state.
type Client struct {
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new orchestrator client with a fixed request timeout.
func NewClient(apiURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Close releases idle pooled connections. Safe to call more than once.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// RunDeployment triggers a run of the named deployment. The name has the form
// "flow-name/deployment-name"; a bare flow name targets its "default"
// deployment. Remote errors propagate unchanged; the orchestrator owns retry
// semantics for run execution.
func (c *Client) RunDeployment(ctx context.Context, deploymentName string, parameters map[string]interface{}, tags []string) (*models.FlowRun, error) {
	flowName, deploymentSuffix, found := strings.Cut(deploymentName, "/")
	if !found {
		deploymentSuffix = "default"
		deploymentName = flowName + "/" + deploymentSuffix
	}

	if parameters == nil {
		parameters = map[string]interface{}{}
	}
	if tags == nil {
		tags = []string{}
	}

	payload := map[string]interface{}{
		"parameters": parameters,
		"tags":       tags,
	}

	path := fmt.Sprintf("/deployments/name/%s/%s/create_flow_run", flowName, deploymentSuffix)
	raw, err := c.postJSON(ctx, path, payload)
	if err != nil {
		return nil, err
	}

	state := getMap(raw, "state")
	run := &models.FlowRun{
		ID:             getString(raw, "id", ""),
		FlowName:       flowName,
		DeploymentName: deploymentName,
		State:          getString(state, "name", models.StateScheduled),
		StateType:      getString(state, "type", models.StateScheduled),
		Parameters:     parameters,
		Tags:           tags,
		Created:        getString(raw, "created", ""),
	}

	c.logger.Info("Triggered flow run",
		zap.String("run_id", run.ID),
		zap.String("deployment", deploymentName))

	return run, nil
}

// GetFlowRun fetches and normalizes a single run by ID.
func (c *Client) GetFlowRun(ctx context.Context, runID string) (*models.FlowRun, error) {
	raw, err := c.getRawRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return normalizeFlowRun(raw), nil
}

// GetFlowRunResult returns the result payload embedded in a completed run's
// state, or nil when the run has not completed. The run is fetched once; the
// same response carries both the state type and the embedded result data.
func (c *Client) GetFlowRunResult(ctx context.Context, runID string) (interface{}, error) {
	raw, err := c.getRawRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	state := getMap(raw, "state")
	if getString(state, "type", "") != models.StateCompleted {
		return nil, nil
	}

	return state["data"], nil
}

// CancelFlowRun requests a transition to CANCELLED, then re-fetches and
// returns the updated run. The two remote calls are not atomic; a repeated
// cancellation is assumed idempotent on the orchestrator side.
func (c *Client) CancelFlowRun(ctx context.Context, runID string) (*models.FlowRun, error) {
	payload := map[string]interface{}{
		"type":    models.StateCancelled,
		"name":    "Cancelled",
		"message": "Flow run cancelled via gateway",
	}

	if _, err := c.postJSON(ctx, "/flow_runs/"+runID+"/set_state", payload); err != nil {
		return nil, err
	}

	return c.GetFlowRun(ctx, runID)
}

// ListDeployments returns available deployments. Bounds on limit and offset
// are enforced at the HTTP boundary, not here.
func (c *Client) ListDeployments(ctx context.Context, limit, offset int) ([]models.Deployment, error) {
	payload := map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	}

	body, err := c.do(ctx, http.MethodPost, "/deployments/filter", payload)
	if err != nil {
		return nil, err
	}

	var rawList []map[string]interface{}
	if err := json.Unmarshal(body, &rawList); err != nil {
		return nil, fmt.Errorf("failed to decode deployment list: %w", err)
	}

	deployments := make([]models.Deployment, 0, len(rawList))
	for _, raw := range rawList {
		deployments = append(deployments, models.Deployment{
			ID:          getString(raw, "id", ""),
			Name:        getString(raw, "name", ""),
			FlowName:    getString(raw, "flow_name", ""),
			Description: getString(raw, "description", ""),
			Tags:        getStrings(raw, "tags"),
			Parameters:  getMap(raw, "parameters"),
		})
	}

	return deployments, nil
}

// Health checks that the orchestrator API is reachable.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil)
	return err
}

func (c *Client) getRawRun(ctx context.Context, runID string) (map[string]interface{}, error) {
	body, err := c.do(ctx, http.MethodGet, "/flow_runs/"+runID, nil)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusNotFound {
			return nil, &NotFoundError{RunID: runID}
		}
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode flow run: %w", err)
	}
	return raw, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload map[string]interface{}) (map[string]interface{}, error) {
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode orchestrator response: %w", err)
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return body, nil
}

// normalizeFlowRun projects the orchestrator's loosely-typed run shape into
// the internal FlowRun. Every optional field is read with an explicit default;
// the remote schema omits fields depending on run state (end_time is absent
// while a run is still executing).
func normalizeFlowRun(raw map[string]interface{}) *models.FlowRun {
	state := getMap(raw, "state")
	return &models.FlowRun{
		ID:           getString(raw, "id", ""),
		FlowName:     getString(raw, "flow_name", ""),
		State:        getString(state, "name", ""),
		StateType:    getString(state, "type", ""),
		Parameters:   getMap(raw, "parameters"),
		Tags:         getStrings(raw, "tags"),
		Created:      getString(raw, "created", ""),
		StartTime:    getString(raw, "start_time", ""),
		EndTime:      getString(raw, "end_time", ""),
		TotalRunTime: getFloat(raw, "total_run_time"),
	}
}

func getString(m map[string]interface{}, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

func getFloat(m map[string]interface{}, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return map[string]interface{}{}
}

func getStrings(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
