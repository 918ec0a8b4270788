// Package calendartest provides an in-memory calendar.Service that records
// every call made against it.
package calendartest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sheetcal/internal/calendar"
)

// Record is the committed state of one fake event.
type Record struct {
	ID          string
	Title       string
	Description string
	Location    string
	AllDay      bool
	Start       time.Time
	// End is exclusive for all-day events.
	End time.Time

	UseDefaultReminders bool
	PopupReminders      []int
}

// Service is a fake calendar.Service. Zero value is not usable; use New.
type Service struct {
	mu        sync.Mutex
	def       *Calendar
	calendars []*Calendar
	calls     []string
	failures  map[string]error
	nextID    int
}

// New returns a service whose default calendar is named "primary" plus one
// extra calendar per name.
func New(names ...string) *Service {
	s := &Service{failures: map[string]error{}}
	s.def = s.addCalendar("primary")
	for _, n := range names {
		s.calendars = append(s.calendars, s.addCalendar(n))
	}
	return s
}

func (s *Service) addCalendar(name string) *Calendar {
	s.nextID++
	return &Calendar{svc: s, id: fmt.Sprintf("cal-%d", s.nextID), name: name, events: map[string]*Record{}}
}

// AddCalendar appends another calendar, allowing duplicate names.
func (s *Service) AddCalendar(name string) *Calendar {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.addCalendar(name)
	s.calendars = append(s.calendars, c)
	return c
}

// Default returns the default calendar.
func (s *Service) Default() *Calendar { return s.def }

// FailOn makes the named operation ("DefaultCalendar", "CalendarsByName",
// "EventByID", "Save", "Delete") return err.
func (s *Service) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Calls returns every recorded call in order.
func (s *Service) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ResetCalls forgets recorded calls.
func (s *Service) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Service) record(format string, args ...any) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *Service) fail(op string) error {
	return s.failures[op]
}

func (s *Service) DefaultCalendar(_ context.Context) (calendar.Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("DefaultCalendar")
	if err := s.fail("DefaultCalendar"); err != nil {
		return nil, err
	}
	return s.def, nil
}

func (s *Service) CalendarsByName(_ context.Context, name string) ([]calendar.Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CalendarsByName %s", name)
	if err := s.fail("CalendarsByName"); err != nil {
		return nil, err
	}
	var out []calendar.Calendar
	for _, c := range s.calendars {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out, nil
}

// Calendar is a fake calendar.
type Calendar struct {
	svc    *Service
	id     string
	name   string
	events map[string]*Record
}

func (c *Calendar) ID() string   { return c.id }
func (c *Calendar) Name() string { return c.name }

// Put stores a committed event directly, bypassing call recording.
func (c *Calendar) Put(r Record) {
	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()
	cp := r
	c.events[r.ID] = &cp
}

// Get returns a copy of a committed event.
func (c *Calendar) Get(id string) (Record, bool) {
	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()
	r, ok := c.events[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Len is the number of committed events.
func (c *Calendar) Len() int {
	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()
	return len(c.events)
}

func (c *Calendar) EventByID(_ context.Context, id string) (calendar.Event, error) {
	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()
	c.svc.record("EventByID %s", id)
	if err := c.svc.fail("EventByID"); err != nil {
		return nil, err
	}
	r, ok := c.events[id]
	if !ok {
		return nil, calendar.ErrEventNotFound
	}
	return &Event{cal: c, rec: *r, id: id}, nil
}

func (c *Calendar) NewEvent(title string, start, end time.Time, opts calendar.Options) calendar.Event {
	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()
	c.svc.record("NewEvent %s %s %s", title, start.Format(time.RFC3339), end.Format(time.RFC3339))
	return &Event{cal: c, rec: Record{
		Title:               title,
		Description:         opts.Description,
		Location:            opts.Location,
		Start:               start,
		End:                 end,
		UseDefaultReminders: true,
	}}
}

func (c *Calendar) NewAllDayEvent(title string, start, exclusiveEnd time.Time, opts calendar.Options) calendar.Event {
	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()
	end := exclusiveEnd
	if exclusiveEnd.IsZero() {
		c.svc.record("NewAllDayEvent %s %s", title, start.Format(time.DateOnly))
		end = start.AddDate(0, 0, 1)
	} else {
		c.svc.record("NewAllDayEvent %s %s %s", title, start.Format(time.DateOnly), exclusiveEnd.Format(time.DateOnly))
	}
	return &Event{cal: c, rec: Record{
		Title:               title,
		Description:         opts.Description,
		Location:            opts.Location,
		AllDay:              true,
		Start:               start,
		End:                 end,
		UseDefaultReminders: true,
	}}
}

// Event is a staged fake event handle.
type Event struct {
	cal *Calendar
	rec Record
	id  string
}

func (e *Event) ID() string { return e.id }

func (e *Event) log(format string, args ...any) {
	e.cal.svc.mu.Lock()
	defer e.cal.svc.mu.Unlock()
	e.cal.svc.record(format, args...)
}

func (e *Event) SetTitle(title string) {
	e.log("SetTitle %s", title)
	e.rec.Title = title
}

func (e *Event) SetDescription(description string) {
	e.log("SetDescription")
	e.rec.Description = description
}

func (e *Event) SetLocation(location string) {
	e.log("SetLocation %s", location)
	e.rec.Location = location
}

func (e *Event) SetTime(start, end time.Time) {
	e.log("SetTime %s %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	e.rec.AllDay = false
	e.rec.Start, e.rec.End = start, end
}

func (e *Event) SetAllDayDate(date time.Time) {
	e.log("SetAllDayDate %s", date.Format(time.DateOnly))
	e.rec.AllDay = true
	e.rec.Start, e.rec.End = date, date.AddDate(0, 0, 1)
}

func (e *Event) SetAllDayDates(start, exclusiveEnd time.Time) {
	e.log("SetAllDayDates %s %s", start.Format(time.DateOnly), exclusiveEnd.Format(time.DateOnly))
	e.rec.AllDay = true
	e.rec.Start, e.rec.End = start, exclusiveEnd
}

func (e *Event) RemoveAllReminders() {
	e.log("RemoveAllReminders")
	e.rec.UseDefaultReminders = false
	e.rec.PopupReminders = nil
}

func (e *Event) AddPopupReminder(minutesBefore int) {
	e.log("AddPopupReminder %d", minutesBefore)
	e.rec.UseDefaultReminders = false
	e.rec.PopupReminders = append(e.rec.PopupReminders, minutesBefore)
}

func (e *Event) Save(_ context.Context) error {
	s := e.cal.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Save")
	if err := s.fail("Save"); err != nil {
		return err
	}
	if e.id == "" {
		s.nextID++
		e.id = fmt.Sprintf("evt-%d", s.nextID)
	}
	e.rec.ID = e.id
	cp := e.rec
	cp.PopupReminders = append([]int(nil), e.rec.PopupReminders...)
	e.cal.events[e.id] = &cp
	return nil
}

func (e *Event) Delete(_ context.Context) error {
	s := e.cal.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Delete %s", e.id)
	if err := s.fail("Delete"); err != nil {
		return err
	}
	delete(e.cal.events, e.id)
	return nil
}
