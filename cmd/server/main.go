// Package main is the entry point for the calendar occurrence server.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calview/backend/internal/api"
	"github.com/calview/backend/internal/audit"
	"github.com/calview/backend/internal/config"
	"github.com/calview/backend/internal/occurrence"
	"github.com/calview/backend/internal/storage"
	"github.com/calview/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration file")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	// Health check mode for container HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Listen); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	log.Printf("Starting calendar occurrence server (version: %s)...", version)

	db, err := storage.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations complete")

	// WebSocket hub for change notifications
	hub := websocket.NewHub()
	go hub.Run()

	// Repositories and the occurrence pipeline
	seriesRepo := storage.NewSeriesRepository(db)
	exceptionRepo := storage.NewExceptionRepository(db)
	overrideRepo := storage.NewOverrideRepository(db)
	queryStore := storage.NewQueryStore(seriesRepo, exceptionRepo, overrideRepo)
	loader := occurrence.NewLoader(queryStore, cfg.MaxOverrideShift())

	// Data-quality audit
	var auditScheduler *audit.Scheduler
	if cfg.AuditSchedule != "" {
		auditScheduler = audit.NewScheduler(overrideRepo, hub, cfg.AuditSchedule)
		if err := auditScheduler.Start(); err != nil {
			log.Printf("Warning: Failed to start audit scheduler: %v", err)
			auditScheduler = nil
		} else {
			auditScheduler.ScanConflicts(context.Background())
		}
	}

	router := api.NewRouter(api.Deps{
		DB:         db,
		Series:     seriesRepo,
		Exceptions: exceptionRepo,
		Overrides:  overrideRepo,
		Loader:     loader,
		Hub:        hub,
		MaxShift:   cfg.MaxOverrideShift(),
		StaticDir:  cfg.StaticDir,
	})

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	if auditScheduler != nil {
		auditScheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return http.ErrAbortHandler
	}
	return nil
}
