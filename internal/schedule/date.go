package schedule

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Day truncates t to its calendar date at midnight UTC. The location of t
// decides which calendar day it falls on.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders the calendar date of t.
func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}

func dayKey(t time.Time) string {
	return FormatDate(t)
}

// eachDay calls fn for every calendar day in [from, to].
func eachDay(from, to time.Time, fn func(day time.Time)) {
	for d := Day(from); !d.After(Day(to)); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}
