package models

import (
	"encoding/json"
	"time"
)

// FlowRun is the normalized view of a single run owned by the orchestrator.
// The remote shape is loosely typed; the orchestrator client projects it into
// this struct before it leaves that package.
type FlowRun struct {
	ID             string                 `json:"id"`
	FlowName       string                 `json:"flow_name"`
	DeploymentName string                 `json:"deployment_name,omitempty"`
	State          string                 `json:"state"`
	StateType      string                 `json:"state_type"`
	Parameters     map[string]interface{} `json:"parameters"`
	Tags           []string               `json:"tags"`
	Created        string                 `json:"created,omitempty"`
	StartTime      string                 `json:"start_time,omitempty"`
	EndTime        string                 `json:"end_time,omitempty"`
	TotalRunTime   float64                `json:"total_run_time,omitempty"`
}

// State types reported by the orchestrator for a flow run.
const (
	StateScheduled = "SCHEDULED"
	StateRunning   = "RUNNING"
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
	StateCancelled = "CANCELLED"
)

// Deployment describes a triggerable template, not a run.
type Deployment struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	FlowName    string                 `json:"flow_name"`
	Description string                 `json:"description,omitempty"`
	Tags        []string               `json:"tags"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// FlowExecuteRequest is the request body for the execute endpoints.
// Parameters must be a JSON object and every tag must be a string; both are
// validated at the HTTP boundary before any remote call.
type FlowExecuteRequest struct {
	Parameters map[string]interface{} `json:"parameters"`
	Tags       []string               `json:"tags,omitempty"`
}

// FlowRunResultResponse is the response body for the run result endpoint.
type FlowRunResultResponse struct {
	RunID  string      `json:"run_id"`
	State  string      `json:"state"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// CancelResponse is the response body for run cancellation.
type CancelResponse struct {
	Message string `json:"message"`
	RunID   string `json:"run_id"`
	State   string `json:"state"`
}

// DeploymentListResponse is the response body for deployment listing.
type DeploymentListResponse struct {
	Deployments []Deployment `json:"deployments"`
	Total       int          `json:"total"`
	Limit       int          `json:"limit"`
	Offset      int          `json:"offset"`
}

// TokenRequest is the client-credentials request body for the token endpoint.
type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// TokenResponse is the token endpoint response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Client represents a service client allowed to obtain tokens (opaque secret,
// only the bcrypt hash is stored).
type Client struct {
	ID               int64     `db:"id"`
	ClientID         string    `db:"client_id"`
	ClientSecretHash string    `db:"client_secret_hash"`
	ServiceName      string    `db:"service_name"`
	RateLimit        int       `db:"rate_limit"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Execution is the persisted metadata record of a triggered run. The
// orchestrator owns the run itself; this row only attributes it to a caller.
type Execution struct {
	ID             string          `db:"id" json:"id"`
	RunID          string          `db:"run_id" json:"run_id"`
	FlowName       string          `db:"flow_name" json:"flow_name"`
	DeploymentName string          `db:"deployment_name" json:"deployment_name"`
	Subject        string          `db:"subject" json:"subject"`
	Parameters     json.RawMessage `db:"parameters" json:"parameters"`
	State          string          `db:"state" json:"state"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// ExecutionListResponse is the response body for the executions endpoint.
type ExecutionListResponse struct {
	Executions []Execution `json:"executions"`
	Total      int         `json:"total"`
}
