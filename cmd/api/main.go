package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dental-voice-scheduler/internal/api/router"
	"github.com/wolfman30/dental-voice-scheduler/internal/app/bootstrap"
	"github.com/wolfman30/dental-voice-scheduler/internal/booking"
	appconfig "github.com/wolfman30/dental-voice-scheduler/internal/config"
	"github.com/wolfman30/dental-voice-scheduler/internal/http/handlers"
	"github.com/wolfman30/dental-voice-scheduler/internal/observability/metrics"
	"github.com/wolfman30/dental-voice-scheduler/pkg/logging"
)

const minWriteTimeout = 15 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental-voice-scheduler API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.ClinicTimezone,
	)

	ctx := context.Background()
	metricsHandler, toolMetrics := setupToolMetrics()

	svc, cleanup, err := setupBookingService(ctx, cfg, toolMetrics, logger)
	if err != nil {
		logger.Error("failed to initialize booking service", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		VoiceTools:         handlers.NewVoiceToolsHandler(handlers.VoiceToolsHandlerConfig{Service: svc, Logger: logger}),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ToolWebhookSecret:  cfg.ToolWebhookSecret,
		ToolRateLimitRPS:   cfg.ToolRateLimitRPS,
		ToolRateLimitBurst: cfg.ToolRateLimitBurst,
	})
	if cfg.ToolWebhookSecret == "" {
		logger.Warn("TOOL_WEBHOOK_SECRET not set; tool endpoints are unauthenticated")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: serverWriteTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		cleanup()
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupToolMetrics registers tool metrics plus Go runtime collectors on a
// dedicated registry and returns the /metrics handler.
func setupToolMetrics() (http.Handler, *metrics.ToolMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	toolMetrics := metrics.NewToolMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), toolMetrics
}

// setupBookingService wires the calendar, slot locks and ledger. The cleanup
// func releases Redis and Postgres connections.
func setupBookingService(ctx context.Context, cfg *appconfig.Config, toolMetrics *metrics.ToolMetrics, logger *logging.Logger) (*booking.Service, func(), error) {
	gateway, err := bootstrap.BuildCalendarGateway(ctx, cfg, logger)
	if err != nil {
		return nil, func() {}, err
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil && cfg.RedisAddr != "" {
		logger.Warn("slot locks fall back to in-process locking")
	}

	ledger, closeLedger, err := bootstrap.BuildLedger(ctx, cfg, logger)
	if err != nil {
		// The calendar is the system of record; run without the audit trail.
		logger.Warn("booking ledger disabled", "error", err)
	}

	cleanup := func() {
		closeLedger()
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}

	svc, err := booking.NewService(booking.Config{
		Gateway:    gateway,
		Hours:      bootstrap.BuildHours(cfg, logger),
		TimeZone:   cfg.ClinicLocation().String(),
		CalendarID: cfg.CalendarID,
		Appointment: booking.Appointment{
			SummaryPrefix: cfg.AppointmentSummaryPrefix,
			Location:      cfg.AppointmentLocation,
			Description:   cfg.AppointmentDescription,
		},
		Locker:   bootstrap.BuildSlotLocker(redisClient, cfg, logger),
		LockWait: cfg.SlotLockWait,
		Ledger:   ledger,
		Metrics:  toolMetrics,
		Logger:   logger,
	})
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return svc, cleanup, nil
}

// serverWriteTimeout leaves room for a booking that waits on the day lock and
// then makes two calendar round trips.
func serverWriteTimeout(cfg *appconfig.Config) time.Duration {
	timeout := cfg.SlotLockWait + 2*cfg.CalendarTimeout + 5*time.Second
	if timeout < minWriteTimeout {
		return minWriteTimeout
	}
	return timeout
}
