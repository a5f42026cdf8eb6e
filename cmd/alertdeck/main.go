package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/alertdeck/alertdeck/internal/alerts"
	"github.com/alertdeck/alertdeck/internal/alerts/adapters"
	"github.com/alertdeck/alertdeck/internal/config"
	"github.com/alertdeck/alertdeck/internal/database"
	"github.com/alertdeck/alertdeck/internal/handlers"
	"github.com/alertdeck/alertdeck/internal/jobs"
	"github.com/alertdeck/alertdeck/internal/middleware"
	"github.com/alertdeck/alertdeck/internal/notify"
	"github.com/alertdeck/alertdeck/internal/services"
	"github.com/alertdeck/alertdeck/internal/ws"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Alertdeck...")

	// Initialize database connection
	if err := database.Connect(cfg.DatabaseURL, dbLogLevel(cfg.DBLogLevel)); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	// Run database migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	db := database.GetDB()

	// Initialize services
	sourceService := services.NewSourceService(db)
	healthService := services.NewHealthService(db)
	ackService := services.NewAckService(db)
	silenceService := services.NewSilenceService(db)

	// Seed sources from YAML if configured
	if cfg.SourcesFile != "" {
		if err := sourceService.ImportFile(cfg.SourcesFile); err != nil {
			log.Fatalf("Failed to import sources file: %v", err)
		}
		log.Printf("Imported sources from %s", cfg.SourcesFile)
	}

	// Register all source adapters
	orchestrator := alerts.NewOrchestrator(
		healthService,
		adapters.NewAlertmanagerAdapter(),
		adapters.NewZabbixAdapter(),
		adapters.NewUptimeKumaAdapter(),
	)
	orchestrator.SetFetchTimeout(cfg.FetchTimeout)
	log.Printf("Source adapters registered: alertmanager, zabbix, uptime-kuma")

	feedService := services.NewFeedService(db, orchestrator, sourceService, ackService, silenceService)

	// Initialize WebSocket hub for live feed updates
	hub := ws.NewHub()

	// Initialize Slack notifications (nil when not configured)
	var notifier notify.Notifier
	if n := notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannel); n != nil {
		notifier = n
		log.Printf("Slack notifications ENABLED for channel %s", cfg.SlackChannel)
	} else {
		log.Printf("Slack notifications DISABLED (set SLACK_BOT_TOKEN and SLACK_CHANNEL)")
	}

	// Initialize principal middleware for ack attribution
	principalMiddleware := middleware.NewPrincipalMiddleware(&middleware.PrincipalConfig{
		Enabled: cfg.AuthEnabled,
		Secret:  cfg.JWTSecret,
		SkipPaths: []string{
			"/health",
		},
	})
	if cfg.AuthEnabled {
		log.Printf("Bearer token authentication enabled")
	} else {
		log.Printf("Bearer token authentication disabled, requests act as %q", middleware.AnonymousPrincipal)
	}

	// Set up HTTP server routes
	apiHandler := handlers.NewAPIHandler(feedService, ackService, silenceService, sourceService, healthService, hub)
	healthHandler := handlers.NewHealthHandler(db)

	mux := http.NewServeMux()
	apiHandler.SetupRoutes(mux)
	healthHandler.SetupRoutes(mux)

	// Middleware chain: request ID, CORS, then principal extraction
	corsMiddleware := middleware.NewCORSMiddleware(cfg.AllowedOrigins...)
	handler := middleware.RequestIDMiddleware(corsMiddleware.Wrap(principalMiddleware.Wrap(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Start background workers
	ctx, ctxCancel := context.WithCancel(context.Background())
	defer ctxCancel()

	go hub.Run(ctx)

	poller := jobs.NewPoller(feedService, ackService, hub, notifier)
	go poller.Start(ctx)

	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)
	log.Printf("Live feed stream: ws://localhost:%d/api/stream", cfg.HTTPPort)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")
	ctxCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
	log.Println("Shutdown complete")
}

// dbLogLevel maps the configured name to a gorm log level
func dbLogLevel(name string) logger.LogLevel {
	switch name {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
