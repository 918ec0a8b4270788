// Package gcal implements calendar.Service over the Google Calendar v3 API.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	calapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"sheetcal/internal/calendar"
	appLog "sheetcal/internal/log"
)

const (
	primaryID   = "primary"
	dateLayout  = "2006-01-02"
	popupMethod = "popup"
	cancelled   = "cancelled"
)

// Scopes are the OAuth scopes the service needs.
var Scopes = []string{calapi.CalendarScope}

type Service struct {
	api *calapi.Service
}

func New(api *calapi.Service) *Service {
	return &Service{api: api}
}

// NewFromClient builds the API client over an authorized http.Client.
func NewFromClient(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*Service, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	api, err := calapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return New(api), nil
}

func (s *Service) DefaultCalendar(ctx context.Context) (calendar.Calendar, error) {
	c, err := s.api.Calendars.Get(primaryID).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &Calendar{api: s.api, id: c.Id, name: c.Summary}, nil
}

// CalendarsByName walks every page of the user's calendar list.
func (s *Service) CalendarsByName(ctx context.Context, name string) ([]calendar.Calendar, error) {
	var out []calendar.Calendar
	err := s.api.CalendarList.List().Context(ctx).Pages(ctx, func(page *calapi.CalendarList) error {
		for _, item := range page.Items {
			if item.Deleted || item.Summary != name {
				continue
			}
			out = append(out, &Calendar{api: s.api, id: item.Id, name: item.Summary})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type Calendar struct {
	api  *calapi.Service
	id   string
	name string
}

func (c *Calendar) ID() string   { return c.id }
func (c *Calendar) Name() string { return c.name }

func (c *Calendar) EventByID(ctx context.Context, id string) (calendar.Event, error) {
	ev, err := c.api.Events.Get(c.id, id).Context(ctx).Do()
	if err != nil {
		return nil, mapNotFound(err)
	}
	if ev.Status == cancelled {
		return nil, calendar.ErrEventNotFound
	}
	return &Event{api: c.api, calendarID: c.id, ev: ev, exists: true}, nil
}

func (c *Calendar) NewEvent(title string, start, end time.Time, opts calendar.Options) calendar.Event {
	e := c.draft(title, opts)
	e.SetTime(start, end)
	return e
}

func (c *Calendar) NewAllDayEvent(title string, start, exclusiveEnd time.Time, opts calendar.Options) calendar.Event {
	e := c.draft(title, opts)
	if exclusiveEnd.IsZero() {
		e.SetAllDayDate(start)
	} else {
		e.SetAllDayDates(start, exclusiveEnd)
	}
	return e
}

func (c *Calendar) draft(title string, opts calendar.Options) *Event {
	return &Event{
		api:        c.api,
		calendarID: c.id,
		ev: &calapi.Event{
			Summary:     title,
			Description: opts.Description,
			Location:    opts.Location,
		},
	}
}

// Event edits a local copy of the API resource. Save sends it with a single
// insert or update call.
type Event struct {
	api        *calapi.Service
	calendarID string
	ev         *calapi.Event
	exists     bool
}

func (e *Event) ID() string {
	if !e.exists {
		return ""
	}
	return e.ev.Id
}

func (e *Event) SetTitle(title string)             { e.ev.Summary = title }
func (e *Event) SetDescription(description string) { e.ev.Description = description }
func (e *Event) SetLocation(location string)       { e.ev.Location = location }

func (e *Event) SetTime(start, end time.Time) {
	e.ev.Start = dateTime(start)
	e.ev.End = dateTime(end)
}

func (e *Event) SetAllDayDate(date time.Time) {
	e.SetAllDayDates(date, date.AddDate(0, 0, 1))
}

func (e *Event) SetAllDayDates(start, exclusiveEnd time.Time) {
	e.ev.Start = &calapi.EventDateTime{Date: start.Format(dateLayout)}
	e.ev.End = &calapi.EventDateTime{Date: exclusiveEnd.Format(dateLayout)}
}

func (e *Event) RemoveAllReminders() {
	e.ev.Reminders = &calapi.EventReminders{
		UseDefault:      false,
		Overrides:       []*calapi.EventReminder{},
		ForceSendFields: []string{"UseDefault", "Overrides"},
	}
}

func (e *Event) AddPopupReminder(minutesBefore int) {
	if e.ev.Reminders == nil {
		e.RemoveAllReminders()
	}
	e.ev.Reminders.Overrides = append(e.ev.Reminders.Overrides, &calapi.EventReminder{
		Method:          popupMethod,
		Minutes:         int64(minutesBefore),
		ForceSendFields: []string{"Minutes"},
	})
}

func (e *Event) Save(ctx context.Context) error {
	var (
		saved *calapi.Event
		err   error
	)
	if e.exists {
		saved, err = e.api.Events.Update(e.calendarID, e.ev.Id, e.ev).Context(ctx).Do()
	} else {
		saved, err = e.api.Events.Insert(e.calendarID, e.ev).Context(ctx).Do()
	}
	if err != nil {
		return mapNotFound(err)
	}
	e.ev = saved
	e.exists = true
	appLog.Debug("google event saved", "calendar_id", e.calendarID, "event_id", saved.Id)
	return nil
}

func (e *Event) Delete(ctx context.Context) error {
	if err := e.api.Events.Delete(e.calendarID, e.ev.Id).Context(ctx).Do(); err != nil {
		return mapNotFound(err)
	}
	return nil
}

func dateTime(t time.Time) *calapi.EventDateTime {
	out := &calapi.EventDateTime{DateTime: t.Format(time.RFC3339)}
	if name := t.Location().String(); name != "" && name != "Local" {
		out.TimeZone = name
	}
	return out
}

// mapNotFound turns 404 and 410 responses into calendar.ErrEventNotFound.
func mapNotFound(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return fmt.Errorf("%w: %s", calendar.ErrEventNotFound, gerr.Message)
	}
	return err
}
