package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// LedgerEntry is the local record of a confirmed booking.
type LedgerEntry struct {
	CalendarEventID string
	PatientName     string
	StartsAt        time.Time
	EndsAt          time.Time
	ToolCallID      string
}

// Ledger records confirmed bookings. The calendar stays the system of
// record; the ledger is an audit trail.
type Ledger interface {
	Record(ctx context.Context, entry LedgerEntry) (uuid.UUID, error)
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PGLedger writes ledger entries to the voice_bookings table.
type PGLedger struct {
	db execer
}

// NewPGLedger builds a ledger on a pgx pool (or anything with its Exec).
func NewPGLedger(db execer) *PGLedger {
	if db == nil {
		panic("booking: ledger db cannot be nil")
	}
	return &PGLedger{db: db}
}

var _ Ledger = (*PGLedger)(nil)

func (l *PGLedger) Record(ctx context.Context, entry LedgerEntry) (uuid.UUID, error) {
	if entry.CalendarEventID == "" {
		return uuid.Nil, errors.New("booking: ledger entry needs a calendar event id")
	}
	id := uuid.New()
	tag, err := l.db.Exec(ctx, `
		INSERT INTO voice_bookings (
			id, calendar_event_id, patient_name, starts_at, ends_at, tool_call_id, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, id, entry.CalendarEventID, entry.PatientName, entry.StartsAt.UTC(), entry.EndsAt.UTC(), nullString(entry.ToolCallID), time.Now().UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("booking: record ledger entry: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return uuid.Nil, fmt.Errorf("booking: ledger insert affected %d rows", tag.RowsAffected())
	}
	return id, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
