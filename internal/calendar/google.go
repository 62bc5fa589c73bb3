package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/dental-voice-scheduler/internal/schedule"
	"github.com/wolfman30/dental-voice-scheduler/pkg/logging"
)

var googleTracer = otel.Tracer("dental.internal.calendar.google")

const dateOnlyLayout = "2006-01-02"

// NewGoogleService builds an authenticated Calendar API client from a
// service-account credentials file. Extra options are appended, which lets
// tests point the client at a local server.
func NewGoogleService(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*gcal.Service, error) {
	if strings.TrimSpace(credentialsFile) != "" {
		opts = append([]option.ClientOption{
			option.WithCredentialsFile(credentialsFile),
			option.WithScopes(gcal.CalendarEventsScope),
		}, opts...)
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google service: %w", err)
	}
	return svc, nil
}

// GoogleGateway talks to a single Google calendar.
type GoogleGateway struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	timeout    time.Duration
	logger     *logging.Logger
}

// GoogleConfig configures a GoogleGateway.
type GoogleConfig struct {
	CalendarID string
	// Location interprets date-only (all-day) events.
	Location *time.Location
	// Timeout bounds each API round trip; zero means no extra deadline.
	Timeout time.Duration
	Logger  *logging.Logger
}

// NewGoogleGateway wraps an authenticated Calendar service.
func NewGoogleGateway(svc *gcal.Service, cfg GoogleConfig) *GoogleGateway {
	if svc == nil {
		panic("calendar: google service required")
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &GoogleGateway{
		svc:        svc,
		calendarID: cfg.CalendarID,
		loc:        cfg.Location,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
	}
}

var _ Gateway = (*GoogleGateway)(nil)

// ListEvents pages through single (expanded) events overlapping w.
func (g *GoogleGateway) ListEvents(ctx context.Context, w schedule.Window) ([]Event, error) {
	ctx, span := googleTracer.Start(ctx, "calendar.list_events", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("calendar.id", g.calendarID),
		attribute.String("calendar.time_min", w.Start.Format(time.RFC3339)),
		attribute.String("calendar.time_max", w.End.Format(time.RFC3339)),
	)

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var out []Event
	pageToken := ""
	for {
		call := g.svc.Events.List(g.calendarID).
			TimeMin(w.Start.Format(time.RFC3339)).
			TimeMax(w.End.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("calendar: list events: %w", err)
		}
		for _, item := range resp.Items {
			ev, err := g.fromAPI(item)
			if err != nil {
				span.RecordError(err)
				return nil, err
			}
			out = append(out, ev)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	span.SetAttributes(attribute.Int("calendar.event_count", len(out)))
	return out, nil
}

// InsertEvent creates a timed event with explicit time zones on both ends.
func (g *GoogleGateway) InsertEvent(ctx context.Context, ev NewEvent) (Event, error) {
	ctx, span := googleTracer.Start(ctx, "calendar.insert_event", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("calendar.id", g.calendarID),
		attribute.String("calendar.start", ev.Window.Start.Format(time.RFC3339)),
	)

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	created, err := g.svc.Events.Insert(g.calendarID, &gcal.Event{
		Summary:     ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Window.Start.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.Window.End.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
	}).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return Event{}, fmt.Errorf("calendar: insert event: %w", err)
	}

	out, err := g.fromAPI(created)
	if err != nil {
		span.RecordError(err)
		return Event{}, err
	}
	g.logger.Info("calendar event created", "event_id", out.ID, "start", out.Start.Format(time.RFC3339))
	return out, nil
}

func (g *GoogleGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *GoogleGateway) fromAPI(item *gcal.Event) (Event, error) {
	if item == nil || item.Start == nil || item.End == nil {
		return Event{}, errors.New("calendar: event missing start or end")
	}
	ev := Event{ID: item.Id, Summary: item.Summary}

	if item.Start.DateTime == "" {
		start, err := time.ParseInLocation(dateOnlyLayout, item.Start.Date, g.loc)
		if err != nil {
			return Event{}, fmt.Errorf("calendar: event %s has malformed start date %q", item.Id, item.Start.Date)
		}
		end, err := time.ParseInLocation(dateOnlyLayout, item.End.Date, g.loc)
		if err != nil {
			end = start.AddDate(0, 0, 1)
		}
		ev.Start, ev.End, ev.AllDay = start, end, true
		return ev, nil
	}

	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return Event{}, fmt.Errorf("calendar: event %s has malformed start %q", item.Id, item.Start.DateTime)
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return Event{}, fmt.Errorf("calendar: event %s has malformed end %q", item.Id, item.End.DateTime)
	}
	ev.Start, ev.End = start, end
	return ev, nil
}
