// Package dates holds the date and time arithmetic used when turning a row
// into calendar mutations. All values are civil dates or wall-clock times
// in the row's location; no zone conversion happens here.
package dates

import (
	"errors"
	"time"

	"sheetcal/internal/model"
)

// ErrEndBeforeStart is a policy rejection, not a fault.
var ErrEndBeforeStart = errors.New("end before start")

// Combine merges a date with a time of day in the date's location,
// dropping seconds and below.
func Combine(date time.Time, tod model.TimeOfDay) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour, tod.Minute, 0, 0, date.Location())
}

// ExclusiveEnd returns the day after date. Multi-day all-day APIs take this
// as their end while rows carry the inclusive last day.
func ExclusiveEnd(date time.Time) time.Time {
	return Midnight(date).AddDate(0, 0, 1)
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsSingleDay reports whether start and end fall on the same calendar date.
func IsSingleDay(start, end time.Time) bool {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	return sy == ey && sm == em && sd == ed
}

// ValidateRange rejects an end that precedes start.
func ValidateRange(start, end time.Time) error {
	if end.Before(start) {
		return ErrEndBeforeStart
	}
	return nil
}
