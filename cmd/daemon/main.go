// Path: cmd/daemon/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"top-loras/internal/app"
	"top-loras/internal/config"
	"top-loras/internal/delivery/rest"
	"top-loras/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default ./configs/config.yaml)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	// 2. Setup Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Wire cache, upstream client, catalog and service
	log.Info("Initializing components...")
	application, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	go application.LogEvents()

	// 4. Start the refresher in the background
	coreService := application.Service
	go coreService.Start(ctx)

	// 5. Initialize and Start the API Server
	apiServer := rest.NewServer(cfg.Server.Port, coreService)
	go func() {
		log.Infof("API server starting on port %s", cfg.Server.Port)
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	// 6. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutdown signal received. Shutting down gracefully...")

	// Cancel the main context to signal background processes to stop
	cancel()
	coreService.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Errorf("Error during API server shutdown: %v", err)
	}
	application.Close(shutdownCtx)

	log.Info("Server shut down successfully.")
}
