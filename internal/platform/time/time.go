// Package time contains calendar-day helpers for the day-by-day search window
package time

import "time"

// Day truncates t to midnight UTC of its UTC calendar day; zero stays zero
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Days returns the number of calendar days from start to end inclusive, 0 when end precedes start
func Days(start, end time.Time) int {
	s, e := Day(start), Day(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}
