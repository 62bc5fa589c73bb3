package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Scheduling
	ClinicTimezone      string
	BusinessHoursStart  string
	BusinessHoursEnd    string
	AppointmentDuration time.Duration

	// Google Calendar
	CalendarID            string
	GoogleCredentialsFile string
	CalendarTimeout       time.Duration

	// Booked event fields
	AppointmentSummaryPrefix string
	AppointmentLocation      string
	AppointmentDescription   string

	// Slot locks
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SlotLockTTL   time.Duration
	SlotLockWait  time.Duration

	// Booking ledger
	DatabaseURL string

	// Tool webhook surface
	ToolWebhookSecret  string
	CORSAllowedOrigins []string
	ToolRateLimitRPS   float64
	ToolRateLimitBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ClinicTimezone:      getEnv("CLINIC_TIMEZONE", "Asia/Kolkata"),
		BusinessHoursStart:  getEnv("BUSINESS_HOURS_START", "09:00"),
		BusinessHoursEnd:    getEnv("BUSINESS_HOURS_END", "18:00"),
		AppointmentDuration: getEnvAsDuration("APPOINTMENT_DURATION", time.Hour),

		CalendarID:            getEnv("CALENDAR_ID", "primary"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		CalendarTimeout:       getEnvAsDuration("CALENDAR_TIMEOUT", 10*time.Second),

		AppointmentSummaryPrefix: getEnv("APPOINTMENT_SUMMARY_PREFIX", "Dentist Appt: "),
		AppointmentLocation:      getEnv("APPOINTMENT_LOCATION", "Dental Clinic"),
		AppointmentDescription:   getEnv("APPOINTMENT_DESCRIPTION", "Booked by the clinic voice assistant."),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SlotLockTTL:   getEnvAsDuration("SLOT_LOCK_TTL", 30*time.Second),
		SlotLockWait:  getEnvAsDuration("SLOT_LOCK_WAIT", 3*time.Second),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		ToolWebhookSecret:  getEnv("TOOL_WEBHOOK_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ToolRateLimitRPS:   getEnvAsFloat("TOOL_RATE_LIMIT_RPS", 5),
		ToolRateLimitBurst: getEnvAsInt("TOOL_RATE_LIMIT_BURST", 20),
	}
}

// ClinicLocation returns the configured timezone. Falls back to UTC if the
// timezone is invalid or empty.
func (c *Config) ClinicLocation() *time.Location {
	if c.ClinicTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
