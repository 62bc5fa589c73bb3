// Package dates turns the date expressions voice agents pass along ("next
// Monday", "18th of December", "2025-12-17") into calendar dates.
package dates

import (
	"fmt"
	"time"
)

// Date is a calendar day with no time-of-day or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// FromTime returns the calendar day of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// newDate builds a Date and reports whether the fields name a real day.
func newDate(year int, month time.Month, day int) (Date, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	d := FromTime(t)
	return d, d.Year == year && d.Month == month && d.Day == day
}

// At returns the instant at hour:minute on d in loc.
func (d Date) At(hour, minute int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return FromTime(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// Weekday returns the day of the week d falls on.
func (d Date) Weekday() time.Weekday {
	return d.At(0, 0, time.UTC).Weekday()
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Spoken formats d the way it is read back to a caller, e.g. "Monday, December 18".
func (d Date) Spoken() string {
	return d.At(0, 0, time.UTC).Format("Monday, January 2")
}
