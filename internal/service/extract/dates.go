package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	explicitDateConfidence = 1.0
	relativeDateConfidence = 0.8
	assumedDateConfidence  = 0.4
)

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	monthDateRe = regexp.MustCompile(`\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	relativeRe  = regexp.MustCompile(`\b(today|tonight|this\s+morning|yesterday|last\s+night)\b`)
	weekdayRe   = regexp.MustCompile(`\b(last\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// calendarDate builds a date and rejects values time.Date would normalise (e.g. Feb 31).
func calendarDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// extractDate resolves the first date-like phrase in w. A date always resolves:
// without a phrase the sale is assumed to be from today.
func extractDate(w *workspace, now time.Time) (time.Time, float64) {
	today := startOfDay(now)
	loc := now.Location()

	if m := w.find(isoDateRe); m != nil {
		y, _ := strconv.Atoi(m.group(1))
		mo, _ := strconv.Atoi(m.group(2))
		d, _ := strconv.Atoi(m.group(3))
		if date, ok := calendarDate(y, time.Month(mo), d, loc); ok {
			m.consume()
			return date, explicitDateConfidence
		}
	}

	for _, m := range w.findAll(slashDateRe) {
		mo, _ := strconv.Atoi(m.group(1))
		d, _ := strconv.Atoi(m.group(2))
		y := now.Year()
		if ys := m.group(3); ys != "" {
			y, _ = strconv.Atoi(ys)
			if len(ys) == 2 {
				y += 2000
			}
		}
		if date, ok := calendarDate(y, time.Month(mo), d, loc); ok {
			m.consume()
			return date, explicitDateConfidence
		}
	}

	if m := w.find(monthDateRe); m != nil {
		d, _ := strconv.Atoi(m.group(2))
		if date, ok := calendarDate(now.Year(), months[m.group(1)[:3]], d, loc); ok {
			// A month/day later than today refers to last year.
			if date.After(today) {
				date = date.AddDate(-1, 0, 0)
			}
			m.consume()
			return date, explicitDateConfidence
		}
	}

	if m := w.find(relativeRe); m != nil {
		m.consume()
		word := strings.Join(strings.Fields(m.group(1)), " ")
		if word == "yesterday" || word == "last night" {
			return today.AddDate(0, 0, -1), relativeDateConfidence
		}
		return today, relativeDateConfidence
	}

	if m := w.find(weekdayRe); m != nil {
		m.consume()
		target := weekdays[m.group(2)]
		back := (int(today.Weekday()) - int(target) + 7) % 7
		if back == 0 && m.group(1) != "" {
			back = 7
		}
		return today.AddDate(0, 0, -back), relativeDateConfidence
	}

	return today, assumedDateConfidence
}
