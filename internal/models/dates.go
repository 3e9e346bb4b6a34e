// internal/models/dates.go
package models

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// TimeLayout is the wire format for scheduled wall-clock times.
const TimeLayout = "15:04"

// DefaultScheduledTime is used when a request omits the time of day.
const DefaultScheduledTime = "09:00"

// DateOnly truncates a timestamp to its UTC calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the inclusive day span between two calendar dates.
// DaysBetween(d, d) == 1.
func DaysBetween(start, end time.Time) int {
	s, e := DateOnly(start), DateOnly(end)
	return int(e.Sub(s).Hours()/24) + 1
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// ValidClockTime reports whether s is a valid HH:MM wall time.
func ValidClockTime(s string) bool {
	_, err := time.Parse(TimeLayout, s)
	return err == nil
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
