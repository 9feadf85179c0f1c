package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gocloud.dev/postgres"
	_ "gocloud.dev/postgres/awspostgres"
	_ "gocloud.dev/postgres/gcppostgres"

	"flow-gateway/internal/models"
)

// Repository defines the interface for database operations
type Repository interface {
	Close() error

	// Clients
	GetClientByID(ctx context.Context, clientID string) (*models.Client, error)

	// Execution records
	RecordExecution(ctx context.Context, execution *models.Execution) error
	ListExecutionsBySubject(ctx context.Context, subject string, limit int) ([]models.Execution, error)
}

// PostgresRepository handles database operations
type PostgresRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRepository creates a new repository instance
func NewRepository(ctx context.Context, databaseURL string, logger *zap.Logger) (Repository, error) {
	// Retry connection with exponential backoff
	var db *sql.DB
	var err error
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		db, err = postgres.Open(ctx, databaseURL)
		if err == nil {
			// Test the connection
			if err = db.PingContext(ctx); err == nil {
				break
			}
			db.Close()
		}
		if i < maxRetries-1 {
			waitTime := time.Duration(i+1) * time.Second
			logger.Warn("Failed to connect to database, retrying...", zap.Int("attempt", i+1), zap.Duration("wait", waitTime), zap.Error(err))
			time.Sleep(waitTime)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	return &PostgresRepository{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// GetClientByID retrieves a service client by client_id
func (r *PostgresRepository) GetClientByID(ctx context.Context, clientID string) (*models.Client, error) {
	query := `
		SELECT id, client_id, client_secret_hash, service_name, rate_limit, created_at, updated_at
		FROM clients
		WHERE client_id = $1
	`

	var client models.Client
	err := r.db.QueryRowContext(ctx, query, clientID).Scan(
		&client.ID,
		&client.ClientID,
		&client.ClientSecretHash,
		&client.ServiceName,
		&client.RateLimit,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get client", zap.String("client_id", clientID), zap.Error(err))
		return nil, err
	}

	return &client, nil
}

// RecordExecution stores metadata about a triggered flow run. The orchestrator
// owns the run itself; this row only attributes it to the authenticated caller.
func (r *PostgresRepository) RecordExecution(ctx context.Context, execution *models.Execution) error {
	query := `
		INSERT INTO executions (id, run_id, flow_name, deployment_name, subject, parameters, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.RunID,
		execution.FlowName,
		execution.DeploymentName,
		execution.Subject,
		[]byte(execution.Parameters),
		execution.State,
		execution.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to record execution", zap.String("run_id", execution.RunID), zap.Error(err))
		return err
	}

	return nil
}

// ListExecutionsBySubject returns the most recent execution records triggered
// by the given subject, newest first.
func (r *PostgresRepository) ListExecutionsBySubject(ctx context.Context, subject string, limit int) ([]models.Execution, error) {
	query := `
		SELECT id, run_id, flow_name, deployment_name, subject, parameters, state, created_at
		FROM executions
		WHERE subject = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, subject, limit)
	if err != nil {
		r.logger.Error("Failed to list executions", zap.String("subject", subject), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var executions []models.Execution
	for rows.Next() {
		var e models.Execution
		var params []byte
		if err := rows.Scan(&e.ID, &e.RunID, &e.FlowName, &e.DeploymentName, &e.Subject, &params, &e.State, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Parameters = params
		executions = append(executions, e)
	}

	return executions, rows.Err()
}
