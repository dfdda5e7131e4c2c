package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumenhr/be-hr-workflows/internal/client"
	"github.com/lumenhr/be-hr-workflows/internal/config"
	"github.com/lumenhr/be-hr-workflows/internal/database"
	"github.com/lumenhr/be-hr-workflows/internal/escalation"
	"github.com/lumenhr/be-hr-workflows/internal/handler"
	"github.com/lumenhr/be-hr-workflows/internal/logger"
	"github.com/lumenhr/be-hr-workflows/internal/repository"
	"github.com/lumenhr/be-hr-workflows/internal/scheduler"
	"github.com/lumenhr/be-hr-workflows/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Workflow Escalation Service (HR-3)")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		DSN:         cfg.Database.DSN(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Connect NATS (optional; notification rows are written regardless)
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name(cfg.Service.Name))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Drain()
		log.Info().Str("nats_url", cfg.NATS.URL).Msg("NATS connection established")
	} else {
		log.Warn().Msg("NATS_URL not set; notification events disabled")
	}

	// Initialize repositories
	instanceRepo := repository.NewWorkflowInstanceRepository(db)
	stepRepo := repository.NewWorkflowStepRepository(db)
	recordRepo := repository.NewStepRecordRepository(db)
	auditRepo := repository.NewWorkflowAuditRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	runLock := repository.NewRunLockRepository(db)

	// Initialize services
	publisher := client.NewNotificationPublisher(nc, log.Logger)
	notifications := service.NewNotificationService(notificationRepo, publisher, log)

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := escalation.NewMetrics(registry)

	// Escalation processor + scheduler
	processor := escalation.NewProcessor(
		instanceRepo,
		stepRepo,
		recordRepo,
		auditRepo,
		notifications,
		runLock,
		metrics,
		cfg.Escalator.Workers,
		log,
	)

	sched := scheduler.New(processor, cfg.Escalator.Interval, cfg.Escalator.PassTimeout, log)
	go sched.Start(ctx)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(processor, sched, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Escalation routes
	mux.HandleFunc("/api/v1/escalations/run", httpHandler.RunEscalations)
	mux.HandleFunc("/api/v1/escalations/summary", httpHandler.GetSummary)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
