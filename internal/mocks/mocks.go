package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"flow-gateway/internal/models"
)

// MockOrchestrator is a mock implementation of orchestrator.Service
type MockOrchestrator struct {
	mock.Mock
}

func (m *MockOrchestrator) RunDeployment(ctx context.Context, deploymentName string, parameters map[string]interface{}, tags []string) (*models.FlowRun, error) {
	args := m.Called(ctx, deploymentName, parameters, tags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FlowRun), args.Error(1)
}

func (m *MockOrchestrator) GetFlowRun(ctx context.Context, runID string) (*models.FlowRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FlowRun), args.Error(1)
}

func (m *MockOrchestrator) GetFlowRunResult(ctx context.Context, runID string) (interface{}, error) {
	args := m.Called(ctx, runID)
	return args.Get(0), args.Error(1)
}

func (m *MockOrchestrator) CancelFlowRun(ctx context.Context, runID string) (*models.FlowRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FlowRun), args.Error(1)
}

func (m *MockOrchestrator) ListDeployments(ctx context.Context, limit, offset int) ([]models.Deployment, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Deployment), args.Error(1)
}

func (m *MockOrchestrator) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockOrchestrator) Close() {
	m.Called()
}

// MockRepository is a mock implementation of database.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) GetClientByID(ctx context.Context, clientID string) (*models.Client, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Client), args.Error(1)
}

func (m *MockRepository) RecordExecution(ctx context.Context, execution *models.Execution) error {
	args := m.Called(ctx, execution)
	return args.Error(0)
}

func (m *MockRepository) ListExecutionsBySubject(ctx context.Context, subject string, limit int) ([]models.Execution, error) {
	args := m.Called(ctx, subject, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Execution), args.Error(1)
}

// MockRateLimiter is a mock implementation of cache.RateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRateLimiter) CheckRateLimit(ctx context.Context, subject string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, subject, limit, window)
	return args.Bool(0), args.Error(1)
}
