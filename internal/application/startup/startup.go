// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/convertrack/convertrack-go/internal/application/container"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/persistence/kv"
	"github.com/convertrack/convertrack-go/internal/presentation/http/server"
	"github.com/convertrack/convertrack-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Printf("convertrack-go v%s starting", config.TrackingVersion)

	// Step 1: Initialize channeled logging
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.Startup().Info("Channeled logging initialized")

	// Step 2: Open the durable profile store
	logger.Startup().Info("Opening profile store...")
	store, err := kv.OpenSQLStore(kv.SQLStoreConfig{
		SQLitePath:    config.StorePath,
		TursoDatabase: config.TursoDatabase,
		TursoToken:    config.TursoToken,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open profile store: %w", err)
	}
	info := store.ConnectionInfo()
	logger.Startup().Info("Profile store ready", "backend", info)

	// Step 3: Create dependency injection container
	logger.Startup().Info("Initializing dependency injection container...")
	appContainer := container.NewContainer(store, logger)
	logger.Startup().Info("Dependency injection container created with singleton services")

	// Step 4: Replay any queued deliveries left over from the last run
	pending := appContainer.DeliveryQueue.Pending()
	if pending > 0 {
		logger.Startup().Info("Recovered queued deliveries", "count", pending)
	}

	// Step 5: Start the delivery flush worker
	logger.Startup().Info("Starting delivery flush worker...", "interval", config.QueueFlushInterval)
	go appContainer.DeliveryQueue.Run(ctx, config.QueueFlushInterval)

	// Step 6: Start the debug event broadcaster
	go appContainer.Broadcaster.Run()

	// Step 7: Start HTTP server
	logger.Startup().Info("Starting HTTP server...")
	httpServer := server.New(config.Port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+config.Port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", config.Port,
		"devMode", config.DevMode)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	// Flush what we can before the store closes.
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
	appContainer.DeliveryQueue.Flush(flushCtx)
	cancelFlush()

	logger.Shutdown().Info("Closing profile store...")
	if err := store.Close(); err != nil {
		logger.Shutdown().Error("Error closing profile store", "error", err.Error())
	} else {
		logger.Shutdown().Info("Profile store closed successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if !config.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
