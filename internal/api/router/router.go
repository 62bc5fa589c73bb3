package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/dental-voice-scheduler/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/dental-voice-scheduler/internal/http/middleware"
	"github.com/wolfman30/dental-voice-scheduler/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	VoiceTools         *handlers.VoiceToolsHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// ToolWebhookSecret guards the tool endpoints; empty disables auth.
	ToolWebhookSecret  string
	ToolRateLimitRPS   float64
	ToolRateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/", cfg.VoiceTools.HandleRoot)
		public.Get("/health", cfg.VoiceTools.HealthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Voice assistant tool webhooks, served at the root and under /tools.
	// Both prefixes share one limiter.
	auth := httpmiddleware.ToolAuth(cfg.ToolWebhookSecret)
	limit := httpmiddleware.RateLimit(cfg.ToolRateLimitRPS, cfg.ToolRateLimitBurst)
	tools := func(tr chi.Router) {
		tr.Use(auth, limit)
		tr.Post("/check-availability", cfg.VoiceTools.HandleCheckAvailability)
		tr.Post("/book-appointment", cfg.VoiceTools.HandleBookAppointment)
	}
	r.Group(tools)
	r.Route("/tools", tools)

	return r
}
