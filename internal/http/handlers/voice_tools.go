package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/wolfman30/dental-voice-scheduler/internal/booking"
	"github.com/wolfman30/dental-voice-scheduler/internal/http/middleware"
	"github.com/wolfman30/dental-voice-scheduler/internal/toolcall"
	"github.com/wolfman30/dental-voice-scheduler/pkg/logging"
)

const maxToolBody = 1 << 20

// toolService is the booking surface the voice tools call into.
type toolService interface {
	CheckAvailability(ctx context.Context, env toolcall.Envelope) booking.Outcome
	BookAppointment(ctx context.Context, env toolcall.Envelope) booking.Outcome
}

// VoiceToolsHandler serves the voice assistant's tool webhooks. Every domain
// outcome, failures included, is answered with HTTP 200 so the assistant can
// speak the result text.
type VoiceToolsHandler struct {
	service toolService
	logger  *logging.Logger
}

// VoiceToolsHandlerConfig configures the VoiceToolsHandler.
type VoiceToolsHandlerConfig struct {
	Service toolService
	Logger  *logging.Logger
}

// NewVoiceToolsHandler creates a new VoiceToolsHandler.
func NewVoiceToolsHandler(cfg VoiceToolsHandlerConfig) *VoiceToolsHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &VoiceToolsHandler{
		service: cfg.Service,
		logger:  cfg.Logger,
	}
}

// HandleCheckAvailability is the HTTP handler for POST /check-availability.
func (h *VoiceToolsHandler) HandleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, booking.ToolCheckAvailability, h.service.CheckAvailability)
}

// HandleBookAppointment is the HTTP handler for POST /book-appointment.
func (h *VoiceToolsHandler) HandleBookAppointment(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, booking.ToolBookAppointment, h.service.BookAppointment)
}

// HandleRoot reports that the backend is reachable.
func (h *VoiceToolsHandler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Dental AI Backend is Online"})
}

// HealthCheck is the liveness probe.
func (h *VoiceToolsHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *VoiceToolsHandler) handle(w http.ResponseWriter, r *http.Request, tool string, run func(context.Context, toolcall.Envelope) booking.Outcome) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxToolBody))
	if err != nil {
		h.logger.Error("voice-tools: failed to read body", "tool", tool, "error", err)
		writeJSON(w, http.StatusOK, toolcall.Compose(booking.TechnicalIssueMessage, ""))
		return
	}

	env, err := toolcall.Parse(body)
	if err != nil {
		h.logger.Warn("voice-tools: unparseable body", "tool", tool, "error", err)
		writeJSON(w, http.StatusOK, toolcall.Compose(booking.TechnicalIssueMessage, ""))
		return
	}

	attrs := []any{
		"tool", tool,
		"shape", env.Shape.String(),
		"tool_call_id", env.CallID,
	}
	if claims, ok := middleware.ToolClaimsFromContext(r.Context()); ok {
		attrs = append(attrs, "caller", claims.Subject)
	}
	h.logger.Debug("voice-tools: received call", attrs...)

	out := run(r.Context(), env)
	writeJSON(w, http.StatusOK, toolcall.Compose(out.Message, env.CallID))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
