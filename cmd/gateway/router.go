package main

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"flow-gateway/internal/auth"
	"flow-gateway/internal/cache"
	"flow-gateway/internal/handlers"
	"flow-gateway/internal/middleware"
)

// SetupRouter configures and returns the HTTP router with all routes and middleware
func SetupRouter(
	tokens *auth.TokenService,
	limiter cache.RateLimiter,
	rateLimitPerMinute int,
	flowHandler *handlers.FlowHandler,
	runHandler *handlers.RunHandler,
	deploymentHandler *handlers.DeploymentHandler,
	executionHandler *handlers.ExecutionHandler,
	tokenHandler *handlers.TokenHandler,
	healthHandler *handlers.HealthHandler,
	logger *zap.Logger,
) *mux.Router {
	router := mux.NewRouter()

	// Add CORS middleware
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Add logging middleware
	router.Use(middleware.LoggingMiddleware(logger))

	// Health probes (unauthenticated)
	router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")
	router.HandleFunc("/ready", healthHandler.HandleReady).Methods("GET")

	// Token issuance (authenticated by client credentials, not bearer token)
	router.HandleFunc("/api/v1/auth/token", tokenHandler.HandleToken).Methods("POST", "OPTIONS")

	// Protected API (bearer token + per-subject rate limit)
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(tokens, logger))
	api.Use(middleware.RateLimitMiddleware(limiter, logger, rateLimitPerMinute, time.Minute))

	api.HandleFunc("/flows/{flow_name}/execute", flowHandler.HandleExecute).Methods("POST", "OPTIONS")
	api.HandleFunc("/flows/{flow_name}/execute/{deployment_name}", flowHandler.HandleExecuteDeployment).Methods("POST", "OPTIONS")
	api.HandleFunc("/runs/{run_id}", runHandler.HandleGetRun).Methods("GET")
	api.HandleFunc("/runs/{run_id}/result", runHandler.HandleGetRunResult).Methods("GET")
	api.HandleFunc("/runs/{run_id}", runHandler.HandleCancelRun).Methods("DELETE")
	api.HandleFunc("/deployments/", deploymentHandler.HandleList).Methods("GET")
	api.HandleFunc("/executions", executionHandler.HandleList).Methods("GET")

	// Swagger documentation
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	return router
}
