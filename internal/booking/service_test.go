package booking

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-voice-scheduler/internal/calendar"
	"github.com/wolfman30/dental-voice-scheduler/internal/observability/metrics"
	"github.com/wolfman30/dental-voice-scheduler/internal/schedule"
	"github.com/wolfman30/dental-voice-scheduler/internal/toolcall"
	"github.com/wolfman30/dental-voice-scheduler/pkg/logging"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// fixedNow is Wednesday 2025-10-15 10:30 IST.
var fixedNow = time.Date(2025, time.October, 15, 10, 30, 0, 0, ist)

type stubGateway struct {
	mu        sync.Mutex
	events    []calendar.Event
	listErr   error
	insertErr error
	listed    []schedule.Window
	inserted  []calendar.NewEvent
}

func (g *stubGateway) ListEvents(_ context.Context, w schedule.Window) ([]calendar.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listed = append(g.listed, w)
	if g.listErr != nil {
		return nil, g.listErr
	}
	var out []calendar.Event
	for _, ev := range g.events {
		if w.Overlaps(ev.Start, ev.End) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (g *stubGateway) InsertEvent(_ context.Context, ev calendar.NewEvent) (calendar.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inserted = append(g.inserted, ev)
	if g.insertErr != nil {
		return calendar.Event{}, g.insertErr
	}
	return calendar.Event{ID: "evt_1", Summary: ev.Summary, Start: ev.Window.Start, End: ev.Window.End}, nil
}

type stubLocker struct {
	err      error
	acquired []string
	released int
}

func (l *stubLocker) Acquire(_ context.Context, key string) (func(context.Context), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired = append(l.acquired, key)
	return func(context.Context) { l.released++ }, nil
}

type stubLedger struct {
	entries []LedgerEntry
	err     error
}

func (l *stubLedger) Record(_ context.Context, entry LedgerEntry) (uuid.UUID, error) {
	l.entries = append(l.entries, entry)
	return uuid.New(), l.err
}

func newTestService(t *testing.T, gw calendar.Gateway, mutate ...func(*Config)) *Service {
	t.Helper()
	cfg := Config{
		Gateway:    gw,
		Hours:      schedule.DefaultHours(ist),
		TimeZone:   "Asia/Kolkata",
		CalendarID: "clinic",
		Appointment: Appointment{
			SummaryPrefix: "Dentist Appt: ",
			Location:      "Dental Clinic",
			Description:   "Booked by the voice assistant",
		},
		LockWait: 20 * time.Millisecond,
		Logger:   logging.Default(),
		Now:      func() time.Time { return fixedNow },
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	svc, err := NewService(cfg)
	require.NoError(t, err)
	return svc
}

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.October, day, hour, minute, 0, 0, ist)
}

func timed(id string, start time.Time) calendar.Event {
	return calendar.Event{ID: id, Start: start, End: start.Add(time.Hour)}
}

func flat(args toolcall.Args) toolcall.Envelope {
	return toolcall.Envelope{Shape: toolcall.ShapeFlat, Args: args}
}

func TestNewService_RequiresGateway(t *testing.T) {
	_, err := NewService(Config{Hours: schedule.DefaultHours(ist)})
	assert.Error(t, err)
}

func TestCheckAvailability_FullyFree(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(t, gw)

	out := svc.CheckAvailability(context.Background(), flat(toolcall.Args{Date: "friday"}))

	assert.True(t, out.OK())
	assert.Equal(t, "Good news! We are fully free on Friday, October 17, from 09:00 to 18:00.", out.Message)
	require.Len(t, gw.listed, 1)
	assert.Equal(t, at(17, 9, 0), gw.listed[0].Start)
	assert.Equal(t, at(17, 18, 0), gw.listed[0].End)
}

func TestCheckAvailability_ListsBusyTimes(t *testing.T) {
	gw := &stubGateway{events: []calendar.Event{
		{ID: "closed", Start: at(17, 0, 0), End: at(18, 0, 0), AllDay: true},
		timed("a", at(17, 10, 0)),
		timed("b", at(17, 14, 30).UTC()),
	}}
	svc := newTestService(t, gw)

	out := svc.CheckAvailability(context.Background(), flat(toolcall.Args{Date: "2025-10-17"}))

	assert.True(t, out.OK())
	assert.Equal(t, "On Friday, October 17 we are busy at: 10:00, 14:30. Any other time is open.", out.Message)
}

func TestCheckAvailability_OnlyAllDayEventsBlocksDay(t *testing.T) {
	gw := &stubGateway{events: []calendar.Event{
		{ID: "holiday", Start: at(17, 0, 0), End: at(18, 0, 0), AllDay: true},
	}}
	svc := newTestService(t, gw)

	out := svc.CheckAvailability(context.Background(), flat(toolcall.Args{Date: "friday"}))

	assert.True(t, out.OK())
	assert.Contains(t, out.Message, "not taking appointments on Friday, October 17")
}

func TestCheckAvailability_Failures(t *testing.T) {
	tests := []struct {
		name   string
		env    toolcall.Envelope
		gw     *stubGateway
		reason Reason
		text   string
	}{
		{"missing date", flat(toolcall.Args{}), &stubGateway{}, ReasonMissingDate, "Which day"},
		{"unrecognized date", flat(toolcall.Args{Date: "blursday"}), &stubGateway{}, ReasonUnrecognizedDate, `"blursday"`},
		{"malformed envelope", toolcall.Envelope{Shape: toolcall.ShapeToolCall, CallID: "x", Malformed: true}, &stubGateway{}, ReasonMalformedEnvelope, "Which day"},
		{"gateway failure", flat(toolcall.Args{Date: "monday"}), &stubGateway{listErr: errors.New("boom")}, ReasonGatewayFailure, "technical issue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newTestService(t, tt.gw).CheckAvailability(context.Background(), tt.env)
			assert.Equal(t, tt.reason, out.Reason)
			assert.Contains(t, out.Message, tt.text)
			assert.NotEmpty(t, out.Message)
		})
	}
}

func TestBookAppointment_ConflictOnOverlapAllowsBackToBack(t *testing.T) {
	gw := &stubGateway{events: []calendar.Event{timed("existing", at(16, 10, 0))}}
	svc := newTestService(t, gw)

	out := svc.BookAppointment(context.Background(), flat(toolcall.Args{Date: "tomorrow", Time: "10:00", Name: "Ravi"}))
	assert.Equal(t, ReasonSlotConflict, out.Reason)
	assert.Equal(t, "I'm sorry, 10:00 on Thursday, October 16 is already taken. Would you like a different time?", out.Message)
	assert.Empty(t, gw.inserted)

	out = svc.BookAppointment(context.Background(), flat(toolcall.Args{Date: "tomorrow", Time: "11:00", Name: "Ravi"}))
	assert.True(t, out.OK(), out.Message)
	require.Len(t, gw.inserted, 1)
	assert.Equal(t, at(16, 11, 0), gw.inserted[0].Window.Start)
}

func TestBookAppointment_EndToEndToolCall(t *testing.T) {
	body := `{"message":{"toolCalls":[{"id":"call_1","function":{"arguments":"{\"day\":\"tomorrow\",\"time\":\"14:00\",\"name\":\"Asha\"}"}}]}}`
	env, err := toolcall.Parse([]byte(body))
	require.NoError(t, err)

	gw := &stubGateway{}
	ledger := &stubLedger{}
	svc := newTestService(t, gw, func(c *Config) { c.Ledger = ledger })

	out := svc.BookAppointment(context.Background(), env)

	require.True(t, out.OK(), out.Message)
	assert.Equal(t, "Appointment confirmed for Asha on Thursday, October 16 at 14:00.", out.Message)

	require.Len(t, gw.inserted, 1)
	ev := gw.inserted[0]
	assert.Equal(t, "Dentist Appt: Asha", ev.Summary)
	assert.Equal(t, "Dental Clinic", ev.Location)
	assert.Equal(t, "Asia/Kolkata", ev.TimeZone)
	assert.Equal(t, at(16, 14, 0), ev.Window.Start)
	assert.Equal(t, at(16, 15, 0), ev.Window.End)

	require.Len(t, gw.listed, 1)
	assert.Equal(t, ev.Window, gw.listed[0], "conflict check uses the appointment window")

	require.NotNil(t, out.Booking)
	assert.Equal(t, "evt_1", out.Booking.EventID)
	require.Len(t, ledger.entries, 1)
	assert.Equal(t, "call_1", ledger.entries[0].ToolCallID)
	assert.Equal(t, "Asha", ledger.entries[0].PatientName)
}

func TestBookAppointment_ValidationOrder(t *testing.T) {
	tests := []struct {
		name   string
		args   toolcall.Args
		reason Reason
	}{
		{"nothing", toolcall.Args{}, ReasonMissingDate},
		{"no time", toolcall.Args{Date: "monday", Name: "Asha"}, ReasonMissingTime},
		{"no name", toolcall.Args{Date: "monday", Time: "10:00"}, ReasonMissingName},
		{"bad date", toolcall.Args{Date: "someday", Time: "10:00", Name: "Asha"}, ReasonUnrecognizedDate},
		{"bad time", toolcall.Args{Date: "monday", Time: "2pm", Name: "Asha"}, ReasonInvalidTimeFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &stubGateway{}
			out := newTestService(t, gw).BookAppointment(context.Background(), flat(tt.args))
			assert.Equal(t, tt.reason, out.Reason)
			assert.NotEmpty(t, out.Message)
			assert.Empty(t, gw.listed)
			assert.Empty(t, gw.inserted)
		})
	}
}

func TestBookAppointment_GatewayFailures(t *testing.T) {
	args := toolcall.Args{Date: "monday", Time: "10:00", Name: "Asha"}

	gw := &stubGateway{listErr: errors.New("list down")}
	out := newTestService(t, gw).BookAppointment(context.Background(), flat(args))
	assert.Equal(t, ReasonGatewayFailure, out.Reason)
	assert.Empty(t, gw.inserted)

	gw = &stubGateway{insertErr: errors.New("insert down")}
	out = newTestService(t, gw).BookAppointment(context.Background(), flat(args))
	assert.Equal(t, ReasonGatewayFailure, out.Reason)
	assert.Nil(t, out.Booking)
}

func TestBookAppointment_LockBehaviour(t *testing.T) {
	args := toolcall.Args{Date: "monday", Time: "10:00", Name: "Asha"}

	locker := &stubLocker{}
	gw := &stubGateway{}
	out := newTestService(t, gw, func(c *Config) { c.Locker = locker }).BookAppointment(context.Background(), flat(args))
	require.True(t, out.OK())
	assert.Equal(t, []string{"clinic:2025-10-20"}, locker.acquired)
	assert.Equal(t, 1, locker.released)

	gw = &stubGateway{}
	out = newTestService(t, gw, func(c *Config) { c.Locker = &stubLocker{err: ErrSlotLocked} }).BookAppointment(context.Background(), flat(args))
	assert.Equal(t, ReasonSlotConflict, out.Reason)
	assert.Empty(t, gw.listed)

	gw = &stubGateway{}
	out = newTestService(t, gw, func(c *Config) { c.Locker = &stubLocker{err: errors.New("redis down")} }).BookAppointment(context.Background(), flat(args))
	assert.Equal(t, ReasonGatewayFailure, out.Reason)
	assert.Empty(t, gw.inserted)
}

func TestBookAppointment_LedgerFailureKeepsConfirmation(t *testing.T) {
	ledger := &stubLedger{err: errors.New("db down")}
	svc := newTestService(t, &stubGateway{}, func(c *Config) { c.Ledger = ledger })

	out := svc.BookAppointment(context.Background(), flat(toolcall.Args{Date: "monday", Time: "10:00", Name: "Asha"}))

	assert.True(t, out.OK())
	assert.Len(t, ledger.entries, 1)
}

func TestBookAppointment_ConcurrentRequestsBookOnce(t *testing.T) {
	gw := calendar.NewMemoryGateway()
	svc := newTestService(t, gw)
	args := toolcall.Args{Date: "friday", Time: "15:00", Name: "Asha"}

	const callers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []Outcome
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := svc.BookAppointment(context.Background(), flat(args))
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
		}()
	}
	wg.Wait()

	confirmed := 0
	for _, out := range outcomes {
		if out.OK() {
			confirmed++
			continue
		}
		assert.Equal(t, ReasonSlotConflict, out.Reason)
	}
	assert.Equal(t, 1, confirmed)
	assert.Len(t, gw.Events(), 1)
}

func TestBookAppointment_SameDayBookingsShareLock(t *testing.T) {
	locker := &stubLocker{}
	svc := newTestService(t, &stubGateway{}, func(c *Config) { c.Locker = locker })

	for _, args := range []toolcall.Args{
		{Date: "monday", Time: "10:00", Name: "Asha"},
		{Date: "monday", Time: "10:30", Name: "Ravi"},
		{Date: "tuesday", Time: "10:00", Name: "Meena"},
	} {
		require.True(t, svc.BookAppointment(context.Background(), flat(args)).OK())
	}
	assert.Equal(t, []string{"clinic:2025-10-20", "clinic:2025-10-20", "clinic:2025-10-21"}, locker.acquired)
}

func TestBookAppointment_LateBookingLocksBothDays(t *testing.T) {
	locker := &stubLocker{}
	svc := newTestService(t, &stubGateway{}, func(c *Config) { c.Locker = locker })

	out := svc.BookAppointment(context.Background(), flat(toolcall.Args{Date: "monday", Time: "23:30", Name: "Asha"}))

	require.True(t, out.OK())
	assert.Equal(t, []string{"clinic:2025-10-20", "clinic:2025-10-21"}, locker.acquired)
	assert.Equal(t, 2, locker.released)
}

func TestBookAppointment_PartialLockIsReleased(t *testing.T) {
	locker := NewLocalSlotLocker()
	held, err := locker.Acquire(context.Background(), "clinic:2025-10-21")
	require.NoError(t, err)
	defer held(context.Background())

	gw := &stubGateway{}
	svc := newTestService(t, gw, func(c *Config) { c.Locker = locker })
	out := svc.BookAppointment(context.Background(), flat(toolcall.Args{Date: "monday", Time: "23:30", Name: "Asha"}))

	assert.Equal(t, ReasonSlotConflict, out.Reason)
	assert.Empty(t, gw.inserted)
	again, err := locker.Acquire(context.Background(), "clinic:2025-10-20")
	require.NoError(t, err)
	again(context.Background())
}

func TestBookAppointment_ConcurrentOverlappingStartsBookOnce(t *testing.T) {
	gw := calendar.NewMemoryGateway()
	svc := newTestService(t, gw, func(c *Config) { c.LockWait = time.Second })

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []Outcome
	)
	for _, clock := range []string{"10:00", "10:30", "10:00", "10:30"} {
		wg.Add(1)
		go func(clock string) {
			defer wg.Done()
			out := svc.BookAppointment(context.Background(), flat(toolcall.Args{Date: "friday", Time: clock, Name: "Asha"}))
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
		}(clock)
	}
	wg.Wait()

	confirmed := 0
	for _, out := range outcomes {
		if out.OK() {
			confirmed++
			continue
		}
		assert.Equal(t, ReasonSlotConflict, out.Reason)
	}
	assert.Equal(t, 1, confirmed)
	assert.Len(t, gw.Events(), 1)
}

func TestBookAppointment_WaitsForDayLock(t *testing.T) {
	locker := NewLocalSlotLocker()
	release, err := locker.Acquire(context.Background(), "clinic:2025-10-20")
	require.NoError(t, err)
	go func() {
		time.Sleep(30 * time.Millisecond)
		release(context.Background())
	}()

	svc := newTestService(t, &stubGateway{}, func(c *Config) {
		c.Locker = locker
		c.LockWait = time.Second
	})
	out := svc.BookAppointment(context.Background(), flat(toolcall.Args{Date: "monday", Time: "11:00", Name: "Asha"}))
	assert.True(t, out.OK())
}

func TestService_LogsToolName(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestService(t, &stubGateway{}, func(c *Config) { c.Logger = logging.NewWithWriter(&buf, "info") })

	env := toolcall.Envelope{
		Shape:    toolcall.ShapeToolCall,
		CallID:   "call_7",
		ToolName: "checkAvailability",
		Args:     toolcall.Args{Date: "monday"},
	}
	svc.CheckAvailability(context.Background(), env)

	assert.Contains(t, buf.String(), `"tool_name":"checkAvailability"`)
	assert.Contains(t, buf.String(), `"tool_call_id":"call_7"`)
}

func TestService_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewToolMetrics(reg)
	svc := newTestService(t, &stubGateway{}, func(c *Config) { c.Metrics = m })

	svc.CheckAvailability(context.Background(), flat(toolcall.Args{Date: "monday"}))
	svc.BookAppointment(context.Background(), flat(toolcall.Args{Date: "monday"}))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	assert.True(t, names["dental_scheduler_tool_calls_total"])
	assert.True(t, names["dental_scheduler_gateway_latency_seconds"])
}
