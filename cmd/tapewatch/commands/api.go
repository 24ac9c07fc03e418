package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaekwon-dev/tapewatch/internal/api"
	"github.com/jaekwon-dev/tapewatch/internal/api/handlers"
	"github.com/jaekwon-dev/tapewatch/internal/monitor"
	"github.com/jaekwon-dev/tapewatch/internal/provider"
	"github.com/jaekwon-dev/tapewatch/internal/scheduler"
	"github.com/jaekwon-dev/tapewatch/internal/snapshot"
	"github.com/jaekwon-dev/tapewatch/internal/universe"
	"github.com/jaekwon-dev/tapewatch/pkg/config"
	"github.com/jaekwon-dev/tapewatch/pkg/database"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read-only API server",
	Long: `Starts the read-only API without the live monitor loop.

Serves persisted snapshots and universes only. The live decision surface
(/api/v1/decisions/latest) answers 404 here since no loop is running in
this process; use the monitor command for the full surface.

Endpoints:
  GET  /health
  GET  /api/v1/decisions/latest
  GET  /api/v1/snapshots/{date}
  GET  /api/v1/universe/{date}
  GET  /api/v1/providers/stats
  GET  /api/v1/jobs

Example:
  go run ./cmd/tapewatch api
  go run ./cmd/tapewatch api --port 8094`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== tapewatch API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Repositories and an empty live surface
	snapshotRepo := snapshot.NewPostgresRepository(db)
	universeRepo := universe.NewPostgresRepository(db)
	state := monitor.NewState()
	chain := provider.NewChain(nil, 1, log)
	sched := scheduler.New(log, nil)

	// 5. Handler, router, server
	watchHandler := handlers.NewWatchHandler(state, snapshotRepo, universeRepo, chain, sched, db, log)
	router := api.NewRouter(watchHandler, log)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
