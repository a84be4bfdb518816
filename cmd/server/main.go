/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the club match settlement server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if any) and parse command-line flags
  2. Configure the logger
  3. Open the selected store (memory, SQLite or PostgreSQL)
  4. Create the settlement service and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS (environment fallback in brackets):
  -port          HTTP server port [PORT] (default: 8080)
  -store         memory | sqlite | postgres [STORE] (default: sqlite)
  -db            SQLite database path [SQLITE_PATH] (default: club.db)
  -database-url  PostgreSQL DSN [DATABASE_URL]
  -log-level     debug | info | warn | error [LOG_LEVEL] (default: info)
  -cors-origins  comma-separated origins [CORS_ORIGINS]

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  ./server -db="./data/club.db"
  ./server -store=memory -log-level=debug
  DATABASE_URL=postgres://club@localhost/club ./server -store=postgres

SEE ALSO:
  - config.go: flag and environment parsing
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/warp/club-settlement/api"
	"github.com/warp/club-settlement/settlement"
	"github.com/warp/club-settlement/settlement/store"
	"github.com/warp/club-settlement/store/postgres"
	"github.com/warp/club-settlement/store/sqlite"
)

func main() {
	envFile := loadDotEnv()

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatal("Invalid configuration", "err", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           cfg.LogLevel,
	})
	log.SetDefault(logger)
	if envFile != "" {
		log.Debug("Loaded environment", "file", envFile)
	}

	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize store", "store", cfg.Store, "err", err)
	}
	defer closeStore()

	notifier := settlement.LogNotifier{Logger: logger.WithPrefix("notify")}
	service := settlement.NewService(st, notifier)
	handler := api.NewHandler(service)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", fmt.Sprintf("http://localhost:%d", cfg.Port), "store", cfg.Store)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "err", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "err", err)
		return
	}

	log.Info("Server stopped")
}

// openStore returns the configured store and a function that releases it.
func openStore(ctx context.Context, cfg Config) (settlement.Store, func(), error) {
	switch cfg.Store {
	case StoreMemory:
		return store.NewMemory(), func() {}, nil
	case StorePostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	}
}
