// Package ics implements calendar.Service over a directory of .ics files,
// one file per calendar, for running without a hosted calendar.
package ics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"sheetcal/internal/calendar"
	"sheetcal/internal/config"
	appLog "sheetcal/internal/log"
)

const productID = "-//sheetcal//ICS calendar store//EN"

// Service stores each calendar as <dir>/<name>.ics.
type Service struct {
	dir         string
	defaultName string

	// mu serializes read-modify-write cycles on the files.
	mu sync.Mutex
	// now is overridable in tests.
	now func() time.Time
}

func New(dir, defaultName string) *Service {
	return &Service{dir: dir, defaultName: defaultName, now: time.Now}
}

// DefaultCalendar always succeeds; the file is created on first save.
func (s *Service) DefaultCalendar(_ context.Context) (calendar.Calendar, error) {
	return s.calendar(s.defaultName), nil
}

// CalendarsByName returns the calendar whose file exists under that name.
func (s *Service) CalendarsByName(_ context.Context, name string) ([]calendar.Calendar, error) {
	if !validName(name) {
		return nil, nil
	}
	c := s.calendar(name)
	if _, err := os.Stat(c.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return []calendar.Calendar{c}, nil
}

// Create makes an empty calendar file if it does not exist yet.
func (s *Service) Create(name string) error {
	if !validName(name) {
		return fmt.Errorf("invalid calendar name %q", name)
	}
	c := s.calendar(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(c.path); err == nil {
		return nil
	}
	return c.write(newICal(name))
}

// Events lists the events stored in the named calendar; an empty name
// means the default calendar.
func (s *Service) Events(name string) ([]ParsedEvent, error) {
	if name == "" {
		name = s.defaultName
	}
	if !validName(name) {
		return nil, fmt.Errorf("invalid calendar name %q", name)
	}
	return s.calendar(name).Events()
}

func (s *Service) calendar(name string) *Calendar {
	return &Calendar{svc: s, name: name, path: filepath.Join(s.dir, name+".ics")}
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func newICal(name string) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName(name)
	return cal
}

// Calendar is one .ics file.
type Calendar struct {
	svc  *Service
	name string
	path string
}

func (c *Calendar) ID() string   { return c.path }
func (c *Calendar) Name() string { return c.name }

// Events parses every stored event.
func (c *Calendar) Events() ([]ParsedEvent, error) {
	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()
	body, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseICS(c.name, body)
}

func (c *Calendar) EventByID(_ context.Context, id string) (calendar.Event, error) {
	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()

	cal, err := c.load()
	if err != nil {
		return nil, err
	}
	ve := findEvent(cal, id)
	if ve == nil {
		return nil, calendar.ErrEventNotFound
	}
	parsed, err := parseVEvent(ve)
	if err != nil {
		return nil, err
	}
	if parsed.Cancelled() {
		return nil, calendar.ErrEventNotFound
	}
	return &Event{cal: c, id: id, exists: true}, nil
}

func (c *Calendar) NewEvent(title string, start, end time.Time, opts calendar.Options) calendar.Event {
	e := &Event{cal: c, id: uuid.NewString()}
	e.SetTitle(title)
	e.SetTime(start, end)
	e.setOptions(opts)
	return e
}

func (c *Calendar) NewAllDayEvent(title string, start, exclusiveEnd time.Time, opts calendar.Options) calendar.Event {
	e := &Event{cal: c, id: uuid.NewString()}
	e.SetTitle(title)
	if exclusiveEnd.IsZero() {
		e.SetAllDayDate(start)
	} else {
		e.SetAllDayDates(start, exclusiveEnd)
	}
	e.setOptions(opts)
	return e
}

// load reads the calendar file; a missing file is an empty calendar.
// Callers hold svc.mu.
func (c *Calendar) load() (*ical.Calendar, error) {
	f, err := os.Open(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return newICal(c.name), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cal, err := ical.ParseCalendar(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.path, err)
	}
	return cal, nil
}

func (c *Calendar) write(cal *ical.Calendar) error {
	return config.WriteFileAtomic(c.path, []byte(cal.Serialize()), ".sheetcal-ics-*.tmp")
}

func findEvent(cal *ical.Calendar, id string) *ical.VEvent {
	for _, ve := range cal.Events() {
		if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil && p.Value == id {
			return ve
		}
	}
	return nil
}

// Event stages edits as functions applied to the VEVENT on Save.
type Event struct {
	cal     *Calendar
	id      string
	exists  bool
	changes []func(*ical.VEvent)
}

// ID is assigned when the event is staged but only becomes visible once saved.
func (e *Event) ID() string {
	if !e.exists {
		return ""
	}
	return e.id
}

func (e *Event) stage(fn func(*ical.VEvent)) {
	e.changes = append(e.changes, fn)
}

func (e *Event) setOptions(opts calendar.Options) {
	if opts.Description != "" {
		e.SetDescription(opts.Description)
	}
	if opts.Location != "" {
		e.SetLocation(opts.Location)
	}
}

func (e *Event) SetTitle(title string) {
	e.stage(func(ve *ical.VEvent) { ve.SetSummary(title) })
}

func (e *Event) SetDescription(description string) {
	e.stage(func(ve *ical.VEvent) { ve.SetDescription(description) })
}

func (e *Event) SetLocation(location string) {
	e.stage(func(ve *ical.VEvent) { ve.SetLocation(location) })
}

func (e *Event) SetTime(start, end time.Time) {
	e.stage(func(ve *ical.VEvent) {
		removeProperty(ve, ical.ComponentPropertyDtStart)
		removeProperty(ve, ical.ComponentPropertyDtEnd)
		ve.SetStartAt(start)
		ve.SetEndAt(end)
	})
}

func (e *Event) SetAllDayDate(date time.Time) {
	e.SetAllDayDates(date, date.AddDate(0, 0, 1))
}

func (e *Event) SetAllDayDates(start, exclusiveEnd time.Time) {
	e.stage(func(ve *ical.VEvent) {
		removeProperty(ve, ical.ComponentPropertyDtStart)
		removeProperty(ve, ical.ComponentPropertyDtEnd)
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(exclusiveEnd)
	})
}

func (e *Event) RemoveAllReminders() {
	e.stage(func(ve *ical.VEvent) {
		kept := ve.Components[:0]
		for _, comp := range ve.Components {
			if _, isAlarm := comp.(*ical.VAlarm); !isAlarm {
				kept = append(kept, comp)
			}
		}
		ve.Components = kept
	})
}

func (e *Event) AddPopupReminder(minutesBefore int) {
	e.stage(func(ve *ical.VEvent) {
		a := ve.AddAlarm()
		a.SetAction(ical.ActionDisplay)
		a.SetTrigger(fmt.Sprintf("-PT%dM", minutesBefore))
		a.SetProperty(ical.ComponentPropertyDescription, "Reminder")
	})
}

// Save applies every staged change in one write of the calendar file.
func (e *Event) Save(_ context.Context) error {
	c := e.cal
	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()

	cal, err := c.load()
	if err != nil {
		return err
	}

	ve := findEvent(cal, e.id)
	if ve == nil {
		if e.exists {
			return calendar.ErrEventNotFound
		}
		ve = cal.AddEvent(e.id)
		ve.SetCreatedTime(c.svc.now())
	}
	for _, fn := range e.changes {
		fn(ve)
	}
	now := c.svc.now()
	ve.SetDtStampTime(now)
	ve.SetModifiedAt(now)

	if err := c.write(cal); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	e.changes = nil
	e.exists = true
	appLog.Debug("ics event saved", "calendar", c.name, "event_id", e.id)
	return nil
}

// Delete removes the VEVENT from the file.
func (e *Event) Delete(_ context.Context) error {
	c := e.cal
	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()

	cal, err := c.load()
	if err != nil {
		return err
	}
	found := false
	kept := cal.Components[:0]
	for _, comp := range cal.Components {
		if ve, ok := comp.(*ical.VEvent); ok {
			if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil && p.Value == e.id {
				found = true
				continue
			}
		}
		kept = append(kept, comp)
	}
	if !found {
		return calendar.ErrEventNotFound
	}
	cal.Components = kept
	return c.write(cal)
}

func removeProperty(ve *ical.VEvent, prop ical.ComponentProperty) {
	kept := ve.Properties[:0]
	for _, p := range ve.Properties {
		if p.IANAToken != string(prop) {
			kept = append(kept, p)
		}
	}
	ve.Properties = kept
}
