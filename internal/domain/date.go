package domain

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the calendar date format used by the reference dataset, the
// station table, and the day summary API.
const DateLayout = "2006-01-02"

// NextDay returns the calendar day after d, crossing month and year
// boundaries correctly (2024-02-29 advances to 2024-03-01).
func NextDay(d time.Time) time.Time {
	return d.AddDate(0, 0, 1)
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// InstantAt combines a calendar date with an HHMM wall-clock time into the
// absolute instant the snapshot API expects. Three-digit values are
// zero-padded ("930" means 09:30).
func InstantAt(date time.Time, hhmm string) (time.Time, error) {
	if len(hhmm) == 3 {
		hhmm = "0" + hhmm
	}
	if len(hhmm) != 4 {
		return time.Time{}, fmt.Errorf("invalid snapshot time %q", hhmm)
	}

	hour, errH := strconv.Atoi(hhmm[:2])
	mins, errM := strconv.Atoi(hhmm[2:])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || mins < 0 || mins > 59 {
		return time.Time{}, fmt.Errorf("invalid snapshot time %q", hhmm)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, mins, 0, 0, time.UTC), nil
}
