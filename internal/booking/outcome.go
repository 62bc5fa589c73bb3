// Package booking runs the availability and booking pipeline behind the
// voice agent's tools: resolve the requested date, build the window, consult
// the calendar, and describe the result in one sentence the agent can speak.
package booking

import (
	"github.com/wolfman30/dental-voice-scheduler/internal/schedule"
)

// Reason classifies how a tool call ended.
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonMissingDate       Reason = "missing_date"
	ReasonUnrecognizedDate  Reason = "unrecognized_date"
	ReasonMissingTime       Reason = "missing_time"
	ReasonInvalidTimeFormat Reason = "invalid_time_format"
	ReasonMissingName       Reason = "missing_name"
	ReasonSlotConflict      Reason = "slot_conflict"
	ReasonGatewayFailure    Reason = "gateway_failure"
	ReasonMalformedEnvelope Reason = "malformed_envelope"
)

// Outcome is the result of a tool call. Every outcome carries caller-facing
// text, including failures.
type Outcome struct {
	Reason  Reason
	Message string
	// Booking is set only for confirmed bookings.
	Booking *Booking
}

// OK reports whether the tool call succeeded.
func (o Outcome) OK() bool {
	return o.Reason == ReasonOK
}

// Booking describes a confirmed appointment.
type Booking struct {
	EventID string
	Name    string
	Window  schedule.Window
}

func fail(reason Reason, message string) Outcome {
	return Outcome{Reason: reason, Message: message}
}

func succeed(message string) Outcome {
	return Outcome{Reason: ReasonOK, Message: message}
}
