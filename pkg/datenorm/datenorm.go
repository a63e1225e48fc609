// Package datenorm turns the date strings found in spreadsheets and form
// posts into calendar dates.
package datenorm

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDate      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dayMonthYear = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
)

// fallbackLayouts are tried in order once the strict forms have failed.
// Month-first slash dates come last so "12/31/2024" still resolves.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-1-2",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	"Mon Jan 2 2006",
	"Mon Jan 02 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	"02-Jan-06",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"01/02/2006",
	"1/2/2006",
}

// Parse normalizes v to a UTC midnight date. Empty strings, non-string values
// and anything that does not describe a real calendar day yield nil.
func Parse(v any) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if isoDate.MatchString(s) {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return &t
		}
		return nil
	}

	if m := dayMonthYear.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if t, ok := Date(year, month, day); ok {
			return &t
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// Date builds a UTC date and reports whether year, month and day survive the
// round trip unchanged, so 31/02 is rejected instead of rolling into March.
func Date(year, month, day int) (time.Time, bool) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// Format renders a normalized date as DD/MM/YYYY, the form used in exports.
// A nil date renders as an empty string.
func Format(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02/01/2006")
}
