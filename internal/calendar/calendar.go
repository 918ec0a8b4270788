// Package calendar defines the calendar service the reconciler drives and
// resolves calendar names against it.
package calendar

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCalendarNotFound = errors.New("calendar not found")
	ErrEventNotFound    = errors.New("event not found")
)

// Options are the optional fields set when an event is created.
type Options struct {
	Description string
	Location    string
}

// Service is the external calendar provider.
type Service interface {
	DefaultCalendar(ctx context.Context) (Calendar, error)
	// CalendarsByName returns every calendar whose name equals name exactly,
	// in the provider's listing order.
	CalendarsByName(ctx context.Context, name string) ([]Calendar, error)
}

// Calendar is a single calendar owned by the provider.
type Calendar interface {
	ID() string
	Name() string
	// EventByID returns ErrEventNotFound when the id is unknown or the event
	// was cancelled.
	EventByID(ctx context.Context, id string) (Event, error)
	// NewEvent stages a timed event. Nothing is sent until Save.
	NewEvent(title string, start, end time.Time, opts Options) Event
	// NewAllDayEvent stages an all-day event. A zero exclusiveEnd makes it
	// a single-day event.
	NewAllDayEvent(title string, start, exclusiveEnd time.Time, opts Options) Event
}

// Event is a handle on a provider event. Setters only stage changes; Save
// commits all of them in one provider call so a row is never half applied.
type Event interface {
	// ID is empty for a staged event until Save succeeds.
	ID() string

	SetTitle(title string)
	SetDescription(description string)
	SetLocation(location string)
	SetTime(start, end time.Time)
	SetAllDayDate(date time.Time)
	SetAllDayDates(start, exclusiveEnd time.Time)

	RemoveAllReminders()
	AddPopupReminder(minutesBefore int)

	Save(ctx context.Context) error
	Delete(ctx context.Context) error
}
