/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the waybill engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, then environment)
  2. Build the slog logger
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Start the background audit (when AUDIT_INTERVAL > 0)
  6. Configure HTTP router
  7. Start server with graceful shutdown

CONFIGURATION:
  See config/config.go for every key. The common ones:
    APP_ADDR        listen address (default: ":8080")
    DB_PATH         SQLite database path (default: waybills.db)
                    Use ":memory:" for in-memory database
    REVIEW_MODE     "driver" or "central"
    AUDIT_INTERVAL  e.g. "1h"; 0 disables the scheduled audit

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (APP_SHUTDOWN_TIMEOUT)
  3. Stop the audit scheduler
  4. Close database connection

EXAMPLES:
  # Run with file database
  DB_PATH=./data/waybills.db ./server

  # Run with in-memory database and JSON logs
  DB_PATH=":memory:" LOG_FORMAT=json ./server

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/waybill-engine/api"
	"github.com/warp/waybill-engine/config"
	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	mode, err := cfg.Mode()
	if err != nil {
		return err
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, api.Options{
		Season:   cfg.Season(),
		Mode:     mode,
		Fallback: generic.DefaultFallbackTable(),
		Logger:   logger,
	})

	if cfg.AuditInterval > 0 {
		handler.Scheduler = api.NewAuditScheduler(handler.Auditor, cfg.AuditInterval, logger)
		handler.Scheduler.Start()
		defer handler.Scheduler.Stop()
	}

	// Create server
	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.AppAddr, "db", cfg.DBPath, "review_mode", mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.AppShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
