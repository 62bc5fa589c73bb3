package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-voice-scheduler/internal/calendar"
	"github.com/wolfman30/dental-voice-scheduler/internal/dates"
	"github.com/wolfman30/dental-voice-scheduler/internal/observability/metrics"
	"github.com/wolfman30/dental-voice-scheduler/internal/schedule"
	"github.com/wolfman30/dental-voice-scheduler/internal/toolcall"
	"github.com/wolfman30/dental-voice-scheduler/pkg/logging"
)

var bookingTracer = otel.Tracer("dental.internal.booking")

const (
	defaultLockWait   = 3 * time.Second
	lockRetryInterval = 50 * time.Millisecond
)

const (
	ToolCheckAvailability = "check_availability"
	ToolBookAppointment   = "book_appointment"
)

// Appointment holds the fixed fields written on every booked event.
type Appointment struct {
	SummaryPrefix string
	Location      string
	Description   string
}

// Config wires a Service.
type Config struct {
	Gateway calendar.Gateway
	Hours   schedule.Hours
	// TimeZone is the IANA id written on booked events.
	TimeZone string
	// CalendarID namespaces slot locks.
	CalendarID  string
	Appointment Appointment
	// Locker defaults to an in-process locker. Locks are held per calendar
	// day so overlapping starts on the same day are serialized.
	Locker SlotLocker
	// LockWait bounds how long a booking waits for the day lock.
	LockWait time.Duration
	// Ledger is optional.
	Ledger  Ledger
	Metrics *metrics.ToolMetrics
	Logger  *logging.Logger
	// Now defaults to time.Now in Hours.Location.
	Now func() time.Time
}

// Service answers the check-availability and book-appointment tools.
type Service struct {
	gateway     calendar.Gateway
	hours       schedule.Hours
	timeZone    string
	calendarID  string
	appointment Appointment
	locker      SlotLocker
	lockWait    time.Duration
	ledger      Ledger
	metrics     *metrics.ToolMetrics
	logger      *logging.Logger
	now         func() time.Time
}

// NewService validates cfg and fills defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("booking: calendar gateway required")
	}
	if err := cfg.Hours.Validate(); err != nil {
		return nil, err
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = cfg.Hours.Location.String()
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.Appointment.SummaryPrefix == "" {
		cfg.Appointment.SummaryPrefix = "Dentist Appt: "
	}
	if cfg.Locker == nil {
		cfg.Locker = NewLocalSlotLocker()
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = defaultLockWait
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		loc := cfg.Hours.Location
		cfg.Now = func() time.Time { return time.Now().In(loc) }
	}
	return &Service{
		gateway:     cfg.Gateway,
		hours:       cfg.Hours,
		timeZone:    cfg.TimeZone,
		calendarID:  cfg.CalendarID,
		appointment: cfg.Appointment,
		locker:      cfg.Locker,
		lockWait:    cfg.LockWait,
		ledger:      cfg.Ledger,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}, nil
}

// CheckAvailability reports which business-hour times are taken on the
// requested day.
func (s *Service) CheckAvailability(ctx context.Context, env toolcall.Envelope) Outcome {
	ctx, span := bookingTracer.Start(ctx, "booking.check_availability")
	defer span.End()

	out := s.checkAvailability(ctx, env)
	span.SetAttributes(attribute.String("booking.reason", string(out.Reason)))
	s.finish(ToolCheckAvailability, env, out)
	return out
}

func (s *Service) checkAvailability(ctx context.Context, env toolcall.Envelope) Outcome {
	if env.Malformed {
		return fail(ReasonMalformedEnvelope, msgAskDate)
	}
	if env.Args.Date == "" {
		return fail(ReasonMissingDate, msgAskDate)
	}
	day, ok := dates.Resolve(env.Args.Date, s.now())
	if !ok {
		return fail(ReasonUnrecognizedDate, msgUnrecognizedDate(env.Args.Date))
	}

	events, err := s.listEvents(ctx, s.hours.AvailabilityWindow(day))
	if err != nil {
		s.logger.Error("availability lookup failed", "date", day.String(), "error", err)
		return fail(ReasonGatewayFailure, TechnicalIssueMessage)
	}
	if len(events) == 0 {
		return succeed(msgFullyFree(day, s.hours))
	}

	busy := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		busy = append(busy, ev.Start.In(s.hours.Location).Format("15:04"))
	}
	if len(busy) == 0 {
		return succeed(msgDayBlocked(day))
	}
	return succeed(msgBusyAt(day, busy))
}

// BookAppointment creates a calendar event for the requested slot unless an
// existing event overlaps it.
func (s *Service) BookAppointment(ctx context.Context, env toolcall.Envelope) Outcome {
	ctx, span := bookingTracer.Start(ctx, "booking.book_appointment")
	defer span.End()

	out := s.bookAppointment(ctx, env)
	span.SetAttributes(attribute.String("booking.reason", string(out.Reason)))
	if out.Booking != nil {
		span.SetAttributes(attribute.String("booking.event_id", out.Booking.EventID))
	}
	s.finish(ToolBookAppointment, env, out)
	return out
}

func (s *Service) bookAppointment(ctx context.Context, env toolcall.Envelope) Outcome {
	args := env.Args
	switch {
	case env.Malformed:
		return fail(ReasonMalformedEnvelope, msgAskBookingDate)
	case args.Date == "":
		return fail(ReasonMissingDate, msgAskBookingDate)
	case args.Time == "":
		return fail(ReasonMissingTime, msgAskTime)
	case args.Name == "":
		return fail(ReasonMissingName, msgAskName)
	}

	day, ok := dates.Resolve(args.Date, s.now())
	if !ok {
		return fail(ReasonUnrecognizedDate, msgUnrecognizedDate(args.Date))
	}
	window, err := s.hours.AppointmentWindow(day, args.Time)
	if err != nil {
		return fail(ReasonInvalidTimeFormat, msgInvalidTime(args.Time))
	}
	at := window.Start.Format("15:04")

	lockKeys := s.slotKeys(window)
	release, err := s.acquireAll(ctx, lockKeys)
	switch {
	case errors.Is(err, ErrSlotLocked):
		s.metrics.ObserveSlotLock("contended")
		return fail(ReasonSlotConflict, msgSlotTaken(day, at))
	case err != nil:
		s.metrics.ObserveSlotLock("error")
		s.logger.Error("slot lock failed", "slots", lockKeys, "error", err)
		return fail(ReasonGatewayFailure, TechnicalIssueMessage)
	}
	s.metrics.ObserveSlotLock("acquired")
	defer release(context.WithoutCancel(ctx))

	existing, err := s.listEvents(ctx, window)
	if err != nil {
		s.logger.Error("conflict check failed", "start", window.Start.Format(time.RFC3339), "error", err)
		return fail(ReasonGatewayFailure, TechnicalIssueMessage)
	}
	if len(existing) > 0 {
		return fail(ReasonSlotConflict, msgSlotTaken(day, at))
	}

	created, err := s.insertEvent(ctx, calendar.NewEvent{
		Summary:     s.appointment.SummaryPrefix + args.Name,
		Location:    s.appointment.Location,
		Description: s.appointment.Description,
		Window:      window,
		TimeZone:    s.timeZone,
	})
	if err != nil {
		s.logger.Error("event insert failed", "start", window.Start.Format(time.RFC3339), "error", err)
		return fail(ReasonGatewayFailure, TechnicalIssueMessage)
	}

	s.recordLedger(ctx, created, args.Name, window, env.CallID)

	out := succeed(msgConfirmed(args.Name, day, at))
	out.Booking = &Booking{EventID: created.ID, Name: args.Name, Window: window}
	return out
}

// slotKeys names one lock per date the window touches, in date order. Two
// bookings whose windows overlap always share at least one key.
func (s *Service) slotKeys(w schedule.Window) []string {
	last := dates.FromTime(w.End.Add(-time.Nanosecond))
	var keys []string
	for d := dates.FromTime(w.Start); !last.Before(d); d = d.AddDays(1) {
		keys = append(keys, fmt.Sprintf("%s:%s", s.calendarID, d))
	}
	return keys
}

// acquireAll takes keys in order and gives back whatever it holds on failure.
func (s *Service) acquireAll(ctx context.Context, keys []string) (func(context.Context), error) {
	releases := make([]func(context.Context), 0, len(keys))
	releaseAll := func(ctx context.Context) {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i](ctx)
		}
	}
	for _, key := range keys {
		release, err := s.acquire(ctx, key)
		if err != nil {
			releaseAll(context.WithoutCancel(ctx))
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// acquire retries a contended lock until lockWait elapses.
func (s *Service) acquire(ctx context.Context, key string) (func(context.Context), error) {
	deadline := time.Now().Add(s.lockWait)
	for {
		release, err := s.locker.Acquire(ctx, key)
		if !errors.Is(err, ErrSlotLocked) || !time.Now().Before(deadline) {
			return release, err
		}
		timer := time.NewTimer(lockRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ErrSlotLocked
		case <-timer.C:
		}
	}
}

func (s *Service) listEvents(ctx context.Context, w schedule.Window) ([]calendar.Event, error) {
	start := time.Now()
	events, err := s.gateway.ListEvents(ctx, w)
	s.metrics.ObserveGatewayLatency("list_events", err != nil, time.Since(start).Seconds())
	return events, err
}

func (s *Service) insertEvent(ctx context.Context, ev calendar.NewEvent) (calendar.Event, error) {
	start := time.Now()
	created, err := s.gateway.InsertEvent(ctx, ev)
	s.metrics.ObserveGatewayLatency("insert_event", err != nil, time.Since(start).Seconds())
	return created, err
}

func (s *Service) recordLedger(ctx context.Context, ev calendar.Event, name string, w schedule.Window, callID string) {
	if s.ledger == nil {
		return
	}
	if _, err := s.ledger.Record(ctx, LedgerEntry{
		CalendarEventID: ev.ID,
		PatientName:     name,
		StartsAt:        w.Start,
		EndsAt:          w.End,
		ToolCallID:      callID,
	}); err != nil {
		s.logger.Warn("booking ledger write failed", "event_id", ev.ID, "error", err)
	}
}

func (s *Service) finish(tool string, env toolcall.Envelope, out Outcome) {
	s.metrics.ObserveToolCall(tool, string(out.Reason))
	attrs := []any{
		"tool", tool,
		"tool_name", env.ToolName,
		"reason", string(out.Reason),
		"shape", env.Shape.String(),
		"tool_call_id", env.CallID,
		"raw_date", strings.TrimSpace(env.Args.Date),
	}
	switch out.Reason {
	case ReasonOK:
		s.logger.Info("tool call completed", attrs...)
	case ReasonGatewayFailure:
		s.logger.Error("tool call failed", attrs...)
	default:
		s.logger.Warn("tool call rejected", attrs...)
	}
}
