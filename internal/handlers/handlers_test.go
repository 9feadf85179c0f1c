package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"flow-gateway/internal/auth"
	"flow-gateway/internal/config"
	"flow-gateway/internal/handlers"
	"flow-gateway/internal/middleware"
	"flow-gateway/internal/mocks"
	"flow-gateway/internal/models"
	"flow-gateway/internal/orchestrator"
)

const testServiceName = "test-service"

type fixture struct {
	orch   *mocks.MockOrchestrator
	repo   *mocks.MockRepository
	tokens *auth.TokenService
	router *mux.Router
}

// newFixture wires handlers the way cmd/gateway does, with the orchestrator
// singleton replaced through the provider's factory.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	orch := new(mocks.MockOrchestrator)
	repo := new(mocks.MockRepository)
	logger := zap.NewNop()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	provider := orchestrator.NewProvider(func() orchestrator.Service { return orch })

	cfg := &config.Config{JWTExpiry: time.Hour}

	flowHandler := handlers.NewFlowHandler(provider, repo, logger)
	runHandler := handlers.NewRunHandler(provider, logger)
	deploymentHandler := handlers.NewDeploymentHandler(provider, logger)
	executionHandler := handlers.NewExecutionHandler(repo, logger)
	tokenHandler := handlers.NewTokenHandler(repo, tokens, cfg, logger)
	healthHandler := handlers.NewHealthHandler(provider, logger)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")
	router.HandleFunc("/ready", healthHandler.HandleReady).Methods("GET")
	router.HandleFunc("/api/v1/auth/token", tokenHandler.HandleToken).Methods("POST")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(tokens, logger))
	api.HandleFunc("/flows/{flow_name}/execute", flowHandler.HandleExecute).Methods("POST")
	api.HandleFunc("/flows/{flow_name}/execute/{deployment_name}", flowHandler.HandleExecuteDeployment).Methods("POST")
	api.HandleFunc("/runs/{run_id}", runHandler.HandleGetRun).Methods("GET")
	api.HandleFunc("/runs/{run_id}/result", runHandler.HandleGetRunResult).Methods("GET")
	api.HandleFunc("/runs/{run_id}", runHandler.HandleCancelRun).Methods("DELETE")
	api.HandleFunc("/deployments/", deploymentHandler.HandleList).Methods("GET")
	api.HandleFunc("/executions", executionHandler.HandleList).Methods("GET")

	return &fixture{orch: orch, repo: repo, tokens: tokens, router: router}
}

func (f *fixture) request(t *testing.T, method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		token, err := f.tokens.IssueServiceToken(testServiceName)
		assert.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestExecuteFlow(t *testing.T) {
	f := newFixture(t)

	run := &models.FlowRun{
		ID:             "550e8400-e29b-41d4-a716-446655440000",
		FlowName:       "data-processing",
		DeploymentName: "data-processing/production",
		State:          "Scheduled",
		StateType:      models.StateScheduled,
		Parameters:     map[string]interface{}{"input_s3_path": "s3://bucket/input.parquet"},
		Tags:           []string{"user:" + testServiceName},
		Created:        "2024-01-01T00:00:00Z",
	}

	f.orch.On("RunDeployment", mock.Anything, "data-processing/production",
		map[string]interface{}{"input_s3_path": "s3://bucket/input.parquet"},
		[]string{"user:" + testServiceName},
	).Return(run, nil)
	f.repo.On("RecordExecution", mock.Anything, mock.AnythingOfType("*models.Execution")).Return(nil)

	rr := f.request(t, "POST", "/api/v1/flows/data-processing/execute",
		`{"parameters": {"input_s3_path": "s3://bucket/input.parquet"}}`, true)

	assert.Equal(t, http.StatusAccepted, rr.Code)

	var response models.FlowRun
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "data-processing", response.FlowName)
	assert.Contains(t, response.Tags, "user:"+testServiceName)

	f.orch.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestExecuteFlowAppendsCallerTag(t *testing.T) {
	f := newFixture(t)

	f.orch.On("RunDeployment", mock.Anything, "data-processing/production",
		map[string]interface{}{},
		[]string{"etl", "user:" + testServiceName},
	).Return(&models.FlowRun{ID: "run-1", FlowName: "data-processing"}, nil)
	f.repo.On("RecordExecution", mock.Anything, mock.Anything).Return(nil)

	rr := f.request(t, "POST", "/api/v1/flows/data-processing/execute",
		`{"parameters": {}, "tags": ["etl"]}`, true)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	f.orch.AssertExpectations(t)
}

func TestExecuteSpecificDeployment(t *testing.T) {
	f := newFixture(t)

	f.orch.On("RunDeployment", mock.Anything, "data-processing/nightly",
		map[string]interface{}{},
		[]string{"user:" + testServiceName},
	).Return(&models.FlowRun{ID: "run-1", FlowName: "data-processing", DeploymentName: "data-processing/nightly"}, nil)
	f.repo.On("RecordExecution", mock.Anything, mock.Anything).Return(nil)

	rr := f.request(t, "POST", "/api/v1/flows/data-processing/execute/nightly",
		`{"parameters": {}}`, true)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	f.orch.AssertExpectations(t)
}

func TestExecuteFlowUnauthenticated(t *testing.T) {
	f := newFixture(t)

	rr := f.request(t, "POST", "/api/v1/flows/data-processing/execute",
		`{"parameters": {}}`, false)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
	f.orch.AssertNotCalled(t, "RunDeployment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteFlowInvalidBody(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "parameters is an array", body: `{"parameters": [1, 2]}`},
		{name: "parameters is a scalar", body: `{"parameters": 42}`},
		{name: "parameters missing", body: `{}`},
		{name: "tags are not strings", body: `{"parameters": {}, "tags": [1]}`},
		{name: "not json", body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.request(t, "POST", "/api/v1/flows/data-processing/execute", tt.body, true)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		})
	}

	f.orch.AssertNotCalled(t, "RunDeployment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteFlowRemoteFailure(t *testing.T) {
	f := newFixture(t)

	f.orch.On("RunDeployment", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	rr := f.request(t, "POST", "/api/v1/flows/data-processing/execute", `{"parameters": {}}`, true)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection refused")
}

func TestExecuteFlowRecordFailureStillAccepted(t *testing.T) {
	f := newFixture(t)

	f.orch.On("RunDeployment", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&models.FlowRun{ID: "run-1", FlowName: "data-processing"}, nil)
	f.repo.On("RecordExecution", mock.Anything, mock.Anything).Return(errors.New("db down"))

	rr := f.request(t, "POST", "/api/v1/flows/data-processing/execute", `{"parameters": {}}`, true)

	// Metadata recording is best-effort; the run is already accepted.
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestGetRun(t *testing.T) {
	f := newFixture(t)

	f.orch.On("GetFlowRun", mock.Anything, "run-42").Return(&models.FlowRun{
		ID:        "run-42",
		FlowName:  "data-processing",
		State:     "Running",
		StateType: models.StateRunning,
	}, nil)

	rr := f.request(t, "GET", "/api/v1/runs/run-42", "", true)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response models.FlowRun
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "run-42", response.ID)
	assert.Equal(t, models.StateRunning, response.StateType)
}

func TestGetRunNotFound(t *testing.T) {
	f := newFixture(t)

	f.orch.On("GetFlowRun", mock.Anything, "ghost").
		Return(nil, &orchestrator.NotFoundError{RunID: "ghost"})

	rr := f.request(t, "GET", "/api/v1/runs/ghost", "", true)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "RUN_NOT_FOUND")
}

func TestGetRunRemoteFailure(t *testing.T) {
	f := newFixture(t)

	f.orch.On("GetFlowRun", mock.Anything, "run-42").
		Return(nil, &orchestrator.APIError{Status: 500, Body: "internal error"})

	rr := f.request(t, "GET", "/api/v1/runs/run-42", "", true)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal error")
}

func TestGetRunResult(t *testing.T) {
	tests := []struct {
		name       string
		stateType  string
		state      string
		result     interface{}
		wantResult bool
		wantError  string
	}{
		{
			name:      "running run",
			stateType: models.StateRunning,
			state:     "Running",
		},
		{
			name:      "failed run",
			stateType: models.StateFailed,
			state:     "Failed",
			wantError: "Flow run failed: Failed",
		},
		{
			name:       "completed run",
			stateType:  models.StateCompleted,
			state:      "Completed",
			result:     map[string]interface{}{"rows": float64(1000)},
			wantResult: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			f.orch.On("GetFlowRun", mock.Anything, "run-42").Return(&models.FlowRun{
				ID:        "run-42",
				State:     tt.state,
				StateType: tt.stateType,
			}, nil)
			if tt.wantResult {
				f.orch.On("GetFlowRunResult", mock.Anything, "run-42").Return(tt.result, nil)
			}

			rr := f.request(t, "GET", "/api/v1/runs/run-42/result", "", true)

			assert.Equal(t, http.StatusOK, rr.Code)

			var response models.FlowRunResultResponse
			assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Equal(t, "run-42", response.RunID)
			assert.Equal(t, tt.state, response.State)
			assert.Equal(t, tt.wantError, response.Error)
			if tt.wantResult {
				assert.Equal(t, tt.result, response.Result)
			} else {
				assert.Nil(t, response.Result)
				f.orch.AssertNotCalled(t, "GetFlowRunResult", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestCancelRun(t *testing.T) {
	f := newFixture(t)

	f.orch.On("CancelFlowRun", mock.Anything, "run-42").Return(&models.FlowRun{
		ID:        "run-42",
		State:     "Cancelled",
		StateType: models.StateCancelled,
	}, nil)

	rr := f.request(t, "DELETE", "/api/v1/runs/run-42", "", true)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response models.CancelResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "Flow run cancelled successfully", response.Message)
	assert.Equal(t, "run-42", response.RunID)
	assert.Equal(t, "Cancelled", response.State)
}

func TestCancelRunRemoteFailure(t *testing.T) {
	f := newFixture(t)

	f.orch.On("CancelFlowRun", mock.Anything, "run-42").
		Return(nil, &orchestrator.APIError{Status: 500, Body: "boom"})

	rr := f.request(t, "DELETE", "/api/v1/runs/run-42", "", true)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "boom")
}

func TestListDeployments(t *testing.T) {
	f := newFixture(t)

	f.orch.On("ListDeployments", mock.Anything, 10, 0).Return([]models.Deployment{
		{ID: "dep-1", Name: "production", FlowName: "data-processing"},
	}, nil)

	rr := f.request(t, "GET", "/api/v1/deployments/", "", true)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response models.DeploymentListResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Total)
	assert.Equal(t, 10, response.Limit)
	assert.Equal(t, 0, response.Offset)
}

func TestListDeploymentsBounds(t *testing.T) {
	f := newFixture(t)

	for _, query := range []string{"?limit=0", "?limit=101", "?limit=abc", "?offset=-1"} {
		rr := f.request(t, "GET", "/api/v1/deployments/"+query, "", true)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "query %s", query)
	}

	f.orch.AssertNotCalled(t, "ListDeployments", mock.Anything, mock.Anything, mock.Anything)
}

func TestListExecutions(t *testing.T) {
	f := newFixture(t)

	f.repo.On("ListExecutionsBySubject", mock.Anything, testServiceName, 20).Return([]models.Execution{
		{ID: "exec-1", RunID: "run-1", FlowName: "data-processing", Subject: testServiceName},
	}, nil)

	rr := f.request(t, "GET", "/api/v1/executions", "", true)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response models.ExecutionListResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Total)
	assert.Equal(t, "run-1", response.Executions[0].RunID)
}

func TestHandleToken(t *testing.T) {
	f := newFixture(t)

	hashed, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.DefaultCost)
	assert.NoError(t, err)

	f.repo.On("GetClientByID", mock.Anything, "backend-client").Return(&models.Client{
		ClientID:         "backend-client",
		ClientSecretHash: string(hashed),
		ServiceName:      "django-web-service",
	}, nil)

	rr := f.request(t, "POST", "/api/v1/auth/token",
		`{"client_id": "backend-client", "client_secret": "s3cret"}`, false)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response models.TokenResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "Bearer", response.TokenType)
	assert.NotEmpty(t, response.AccessToken)

	claims, err := f.tokens.Verify(response.AccessToken)
	assert.NoError(t, err)
	assert.Equal(t, "django-web-service", claims["sub"])
	assert.Equal(t, "service", claims["type"])
}

func TestHandleTokenBadCredentials(t *testing.T) {
	f := newFixture(t)

	hashed, _ := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.DefaultCost)
	f.repo.On("GetClientByID", mock.Anything, "backend-client").Return(&models.Client{
		ClientID:         "backend-client",
		ClientSecretHash: string(hashed),
		ServiceName:      "django-web-service",
	}, nil)
	f.repo.On("GetClientByID", mock.Anything, "unknown-client").Return(nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "wrong secret", body: `{"client_id": "backend-client", "client_secret": "wrong"}`},
		{name: "unknown client", body: `{"client_id": "unknown-client", "client_secret": "s3cret"}`},
		{name: "missing fields", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.request(t, "POST", "/api/v1/auth/token", tt.body, false)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rr := f.request(t, "GET", "/health", "", false)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "healthy")
}

func TestReady(t *testing.T) {
	f := newFixture(t)
	f.orch.On("Health", mock.Anything).Return(nil)

	rr := f.request(t, "GET", "/ready", "", false)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReadyOrchestratorDown(t *testing.T) {
	f := newFixture(t)
	f.orch.On("Health", mock.Anything).Return(errors.New("connection refused"))

	rr := f.request(t, "GET", "/ready", "", false)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
