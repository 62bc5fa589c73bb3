package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

// maxRelativeDays bounds "in N days/weeks" to roughly a year out.
const maxRelativeDays = 366

// Resolve converts raw into a calendar date relative to now. ISO literals
// (YYYY-MM-DD) are taken as given; anything else goes through the
// natural-language parser, which prefers upcoming dates. Either way a year
// earlier than now's year is pulled forward to the current year, and one more
// year if that still lands before today.
//
// The result is a pure function of raw and now. The second return value is
// false when raw is not a recognizable date.
func Resolve(raw string, now time.Time) (Date, bool) {
	today := FromTime(now)

	if d, ok := parseISO(raw); ok {
		return correctYear(d, today), true
	}
	if d, ok := parseNatural(raw, today); ok {
		return correctYear(d, today), true
	}
	return Date{}, false
}

// correctYear guards against parsers anchored to a stale year.
func correctYear(d, today Date) Date {
	if d.Year >= today.Year {
		return d
	}
	corrected := withYear(d, today.Year)
	if corrected.Before(today) {
		corrected = withYear(d, today.Year+1)
	}
	return corrected
}

// withYear moves d to year; Feb 29 becomes Feb 28 in common years.
func withYear(d Date, year int) Date {
	if moved, ok := newDate(year, d.Month, d.Day); ok {
		return moved
	}
	return Date{Year: year, Month: time.February, Day: 28}
}

func parseISO(raw string) (Date, bool) {
	s := strings.TrimSpace(raw)
	// Accept a full timestamp by looking only at its date part.
	if len(s) > len(isoLayout) && s[len(isoLayout)] == 'T' {
		s = s[:len(isoLayout)]
	}
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return Date{}, false
	}
	return FromTime(t), true
}

var (
	relativeCountPattern = regexp.MustCompile(`^in (\d{1,3}|a|an|one|two|three|four|five|six|seven|eight|nine|ten) (day|days|week|weeks)$`)
	dayNumberPattern     = regexp.MustCompile(`^(\d{1,2})(st|nd|rd|th)?$`)
	yearPattern          = regexp.MustCompile(`^\d{4}$`)
	punctuation          = strings.NewReplacer(",", " ", ".", " ", "-", " ", "/", " / ")
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"eleventh": 11, "twelfth": 12, "thirteenth": 13, "fourteenth": 14, "fifteenth": 15,
	"sixteenth": 16, "seventeenth": 17, "eighteenth": 18, "nineteenth": 19,
	"twentieth": 20, "thirtieth": 30,
}

var tensWords = map[string]int{"twenty": 20, "thirty": 30}

var countWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// fillers carry no date information in spoken requests.
var fillers = map[string]bool{"on": true, "the": true, "of": true, "for": true}

func normalize(raw string) []string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = punctuation.Replace(s)
	var tokens []string
	for _, tok := range strings.Fields(s) {
		if fillers[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func parseNatural(raw string, today Date) (Date, bool) {
	tokens := normalize(raw)
	if len(tokens) == 0 {
		return Date{}, false
	}
	phrase := strings.Join(tokens, " ")

	switch phrase {
	case "today", "tonight", "now":
		return today, true
	case "tomorrow":
		return today.AddDays(1), true
	case "day after tomorrow":
		return today.AddDays(2), true
	case "next week":
		return today.AddDays(7), true
	}

	if m := relativeCountPattern.FindStringSubmatch(phrase); m != nil {
		n, ok := countWords[m[1]]
		if !ok {
			var err error
			if n, err = strconv.Atoi(m[1]); err != nil {
				return Date{}, false
			}
		}
		if strings.HasPrefix(m[2], "week") {
			n *= 7
		}
		if n > maxRelativeDays {
			return Date{}, false
		}
		return today.AddDays(n), true
	}

	if wd, ok := parseWeekday(tokens); ok {
		return nextWeekday(today, wd), true
	}
	return parseMonthDay(tokens, today)
}

// parseWeekday accepts "<weekday>" optionally preceded by next/this/coming.
func parseWeekday(tokens []string) (time.Weekday, bool) {
	if len(tokens) == 2 {
		switch tokens[0] {
		case "next", "this", "coming":
			tokens = tokens[1:]
		}
	}
	if len(tokens) != 1 {
		return 0, false
	}
	wd, ok := weekdays[tokens[0]]
	return wd, ok
}

// nextWeekday returns the first day strictly after today that falls on wd.
func nextWeekday(today Date, wd time.Weekday) Date {
	days := (int(wd) - int(today.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDays(days)
}

// parseMonthDay handles combinations of month name, day of month and year,
// e.g. "18th december", "dec 18 2025", "the 18th", "december". A leading
// weekday ("monday december 18th") is tolerated and ignored.
func parseMonthDay(tokens []string, today Date) (Date, bool) {
	var (
		month              time.Month
		day, year          int
		haveMonth, haveDay bool
		haveYear           bool
	)
	if _, ok := weekdays[tokens[0]]; ok && len(tokens) > 1 {
		tokens = tokens[1:]
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if m, ok := months[tok]; ok && !haveMonth {
			month, haveMonth = m, true
			continue
		}
		if n, ok := dayNumber(tok); ok && !haveDay {
			day, haveDay = n, true
			continue
		}
		if tens, ok := tensWords[tok]; ok && !haveDay {
			n := tens
			if i+1 < len(tokens) {
				if unit, ok := ordinalWords[tokens[i+1]]; ok && unit < 10 {
					n += unit
					i++
				}
			}
			day, haveDay = n, true
			continue
		}
		if yearPattern.MatchString(tok) && !haveYear {
			year, _ = strconv.Atoi(tok)
			haveYear = true
			continue
		}
		return Date{}, false
	}

	switch {
	case haveYear && (!haveMonth || !haveDay):
		return Date{}, false
	case haveYear:
		return newDate(year, month, day)
	case haveMonth && haveDay:
		return upcomingMonthDay(month, day, today)
	case haveDay:
		return upcomingDayOfMonth(day, today)
	case haveMonth:
		if month == today.Month {
			return today, true
		}
		return upcomingMonthDay(month, 1, today)
	}
	return Date{}, false
}

func dayNumber(tok string) (int, bool) {
	if n, ok := ordinalWords[tok]; ok {
		return n, true
	}
	m := dayNumberPattern.FindStringSubmatch(tok)
	if m == nil {
		return 0, false
	}
	n, _ := strconv.Atoi(m[1])
	if n < 1 || n > 31 {
		return 0, false
	}
	return n, true
}

// upcomingMonthDay returns the first month/day on or after today. Feb 29
// searches forward to the next leap year.
func upcomingMonthDay(month time.Month, day int, today Date) (Date, bool) {
	for year := today.Year; year <= today.Year+8; year++ {
		d, ok := newDate(year, month, day)
		if ok && !d.Before(today) {
			return d, true
		}
	}
	return Date{}, false
}

// upcomingDayOfMonth returns the first date on or after today whose day of
// month is day, skipping months that are too short.
func upcomingDayOfMonth(day int, today Date) (Date, bool) {
	year, month := today.Year, today.Month
	for i := 0; i < 13; i++ {
		d, ok := newDate(year, month, day)
		if ok && !d.Before(today) {
			return d, true
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return Date{}, false
}
