package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"flow-gateway/internal/auth"
	"flow-gateway/internal/cache"
	"flow-gateway/internal/config"
	"flow-gateway/internal/database"
	"flow-gateway/internal/handlers"
	"flow-gateway/internal/orchestrator"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting flow gateway")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize database
	ctx := context.Background()
	repo, err := database.NewRepository(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer repo.Close()

	// Initialize cache
	cacheClient, err := cache.NewCache(cfg.RedisURL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer cacheClient.Close()

	// Initialize token service
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)

	// Orchestrator client lifecycle: constructed lazily on first use, closed
	// once on shutdown.
	provider := orchestrator.NewProvider(func() orchestrator.Service {
		return orchestrator.NewClient(cfg.OrchestratorURL, cfg.OrchestratorTimeout, logger)
	})
	defer provider.Shutdown()

	// Initialize handlers
	flowHandler := handlers.NewFlowHandler(provider, repo, logger)
	runHandler := handlers.NewRunHandler(provider, logger)
	deploymentHandler := handlers.NewDeploymentHandler(provider, logger)
	executionHandler := handlers.NewExecutionHandler(repo, logger)
	tokenHandler := handlers.NewTokenHandler(repo, tokens, cfg, logger)
	healthHandler := handlers.NewHealthHandler(provider, logger)

	// Setup router
	router := SetupRouter(
		tokens,
		cacheClient,
		cfg.RateLimitPerMinute,
		flowHandler,
		runHandler,
		deploymentHandler,
		executionHandler,
		tokenHandler,
		healthHandler,
		logger,
	)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
