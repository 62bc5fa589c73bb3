package booking

import (
	"fmt"
	"strings"

	"github.com/wolfman30/dental-voice-scheduler/internal/dates"
	"github.com/wolfman30/dental-voice-scheduler/internal/schedule"
)

// TechnicalIssueMessage is spoken whenever the calendar or the request
// itself cannot be processed.
const TechnicalIssueMessage = "I'm sorry, I'm having a technical issue reaching the calendar right now. Please try again in a moment."

const (
	msgAskDate        = "Which day would you like me to check?"
	msgAskBookingDate = "Which day would you like to book your appointment for?"
	msgAskTime        = "What time would you like? Please give it like 14:00."
	msgAskName        = "May I have the name for the appointment?"
)

func msgUnrecognizedDate(raw string) string {
	return fmt.Sprintf("I'm sorry, I couldn't work out which date %q means. Could you give me the day again, like next Monday or the 18th of December?", raw)
}

func msgInvalidTime(raw string) string {
	return fmt.Sprintf("I'm sorry, %q isn't a time I can book. Please give it in 24-hour form, like 14:00.", raw)
}

func msgFullyFree(d dates.Date, hours schedule.Hours) string {
	return fmt.Sprintf("Good news! We are fully free on %s, from %s to %s.", d.Spoken(), hours.Open, hours.Close)
}

func msgBusyAt(d dates.Date, times []string) string {
	return fmt.Sprintf("On %s we are busy at: %s. Any other time is open.", d.Spoken(), strings.Join(times, ", "))
}

func msgDayBlocked(d dates.Date) string {
	return fmt.Sprintf("I'm sorry, the clinic is not taking appointments on %s. Would another day work?", d.Spoken())
}

func msgSlotTaken(d dates.Date, at string) string {
	return fmt.Sprintf("I'm sorry, %s on %s is already taken. Would you like a different time?", at, d.Spoken())
}

func msgConfirmed(name string, d dates.Date, at string) string {
	return fmt.Sprintf("Appointment confirmed for %s on %s at %s.", name, d.Spoken(), at)
}
