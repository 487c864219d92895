package timeline

import (
	"strings"
	"time"
)

// dateLayouts are tried in order. Numeric dates are read day-first.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"2 January 2006",
	"02 January 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Monday, 2 January 2006",
	"Monday, January 2, 2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDate parses the calendar date of an extracted event.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	s = stripOrdinal(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// stripOrdinal turns "5th January 2024" into "5 January 2024".
func stripOrdinal(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		lower := strings.ToLower(strings.TrimSuffix(f, ","))
		for _, suffix := range []string{"st", "nd", "rd", "th"} {
			num, ok := strings.CutSuffix(lower, suffix)
			if ok && num != "" && isDigits(num) {
				fields[i] = num + f[len(lower):]
				break
			}
		}
	}
	return strings.Join(fields, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
