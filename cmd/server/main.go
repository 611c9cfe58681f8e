/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loyalty engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and config file
  2. Initialize SQLite store
  3. Wire ledger, reconciler, and identity service
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Config file path (default: loyalty.yaml; missing file uses defaults)
  -port    HTTP server port, overrides config when set
  -db      SQLite database path, overrides config when set
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Drain pending reconciliations and stop the reconciler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/loyalty.db"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Config file format
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/loyalty-engine/api"
	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/config"
	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "loyalty.yaml", "Config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Addr = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the core
	ledger := loyalty.NewLedger(store)
	reconciler := loyalty.NewReconciler(ledger, cfg.ReconcilerQueue)
	ledger.Scheduler = reconciler
	reconciler.Start()

	identity := auth.NewService(store, []byte(cfg.JWTSecret), cfg.TokenTTL)
	handler := api.NewHandler(store, ledger, identity)
	router := api.NewRouter(handler, identity)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	// Start server
	go func() {
		log.Printf("[Server] Listening on %s (db: %s)", cfg.Addr, cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[Server] Shutdown error: %v", err)
	}

	// Let in-flight reconciliations finish before closing the store.
	reconciler.Drain()
	reconciler.Stop()

	log.Println("[Server] Stopped")
}
