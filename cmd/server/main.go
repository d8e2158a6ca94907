/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the basket engine server. Handles configuration,
  dependency injection, the ingestion scheduler and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire pricing engine, alerts and ingestion orchestrator
  4. Start the ingestion scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: prices.db)
              Use ":memory:" for in-memory database
  -input      Directory scanned for incoming CSV files (default: ./incoming)
  -processed  Directory ingested files are archived to (default: ./processed)
  -interval   Ingestion scan interval (default: 1m); 0 disables the scheduler

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Stop the ingestion scheduler and wait for an in-flight run
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/prices.db"

  # Point at a different drop directory, scan every 10s
  ./server -input=/srv/feeds/incoming -interval=10s

ENVIRONMENT:
  No environment variables currently. All config via flags.
  Future: DATABASE_URL, PORT, LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - ingest/scheduler.go: Periodic ingestion
  - store/sqlite/sqlite.go: Database implementation
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pricefeed/basket-engine/api"
	"github.com/pricefeed/basket-engine/ingest"
	"github.com/pricefeed/basket-engine/metrics"
	"github.com/pricefeed/basket-engine/pricing"
	"github.com/pricefeed/basket-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "prices.db", "SQLite database path")
	inputDir := flag.String("input", "./incoming", "directory scanned for incoming CSV files")
	processedDir := flag.String("processed", "./processed", "directory ingested files are archived to")
	interval := flag.Duration("interval", time.Minute, "ingestion scan interval (0 disables the scheduler)")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.New()
	collector.Register(reg)

	// Domain wiring
	engine := pricing.NewEngine(store)
	orchestrator := ingest.NewOrchestrator(store, *inputDir, &ingest.DirArchiver{Dest: *processedDir})
	orchestrator.Metrics = collector

	handler := api.NewHandler(engine, store, orchestrator)
	handler.Metrics = collector
	handler.Checker.Metrics = collector

	// Periodic ingestion
	var scheduler *ingest.Scheduler
	if *interval > 0 {
		scheduler = ingest.NewScheduler(orchestrator, *interval)
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Create router
	router := api.NewRouter(handler, reg)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
