package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-voice-scheduler/internal/booking"
	"github.com/wolfman30/dental-voice-scheduler/internal/calendar"
	appconfig "github.com/wolfman30/dental-voice-scheduler/internal/config"
	"github.com/wolfman30/dental-voice-scheduler/internal/schedule"
	"github.com/wolfman30/dental-voice-scheduler/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildHours turns the configured business day into schedule.Hours. Values
// that do not parse fall back to the 09:00-18:00, one hour defaults.
func BuildHours(cfg *appconfig.Config, logger *logging.Logger) schedule.Hours {
	if logger == nil {
		logger = logging.Default()
	}
	hours := schedule.DefaultHours(cfg.ClinicLocation())

	if open, err := schedule.ParseClock(cfg.BusinessHoursStart); err == nil {
		hours.Open = open
	} else {
		logger.Warn("invalid business hours start, using default", "value", cfg.BusinessHoursStart, "default", hours.Open.String())
	}
	if closing, err := schedule.ParseClock(cfg.BusinessHoursEnd); err == nil {
		hours.Close = closing
	} else {
		logger.Warn("invalid business hours end, using default", "value", cfg.BusinessHoursEnd, "default", hours.Close.String())
	}
	if cfg.AppointmentDuration > 0 {
		hours.Duration = cfg.AppointmentDuration
	}

	if err := hours.Validate(); err != nil {
		logger.Warn("business hours rejected, using defaults", "error", err)
		return schedule.DefaultHours(hours.Location)
	}
	return hours
}

// BuildCalendarGateway returns the Google Calendar gateway when a credentials
// file is configured and an in-memory calendar otherwise.
func BuildCalendarGateway(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (calendar.Gateway, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.GoogleCredentialsFile) == "" {
		logger.Warn("GOOGLE_CREDENTIALS_FILE not set; using in-memory calendar")
		return calendar.NewMemoryGateway(), nil
	}

	svc, err := calendar.NewGoogleService(ctx, cfg.GoogleCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("google calendar enabled", "calendar_id", cfg.CalendarID)
	return calendar.NewGoogleGateway(svc, calendar.GoogleConfig{
		CalendarID: cfg.CalendarID,
		Location:   cfg.ClinicLocation(),
		Timeout:    cfg.CalendarTimeout,
		Logger:     logger,
	}), nil
}

// BuildSlotLocker prefers Redis so that several API replicas share locks.
func BuildSlotLocker(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) booking.SlotLocker {
	if redisClient == nil {
		return booking.NewLocalSlotLocker()
	}
	return booking.NewRedisSlotLocker(redisClient, cfg.SlotLockTTL, logger)
}

// BuildLedger connects the booking ledger when DATABASE_URL is set. The
// returned close func is never nil.
func BuildLedger(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (booking.Ledger, func(), error) {
	noop := func() {}
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, noop, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, noop, fmt.Errorf("bootstrap: connect ledger db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, noop, fmt.Errorf("bootstrap: ping ledger db: %w", err)
	}
	logger.Info("booking ledger enabled")
	return booking.NewPGLedger(pool), pool.Close, nil
}
