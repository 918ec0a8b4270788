package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "sheetcal/internal/log"
)

// ParsedEvent is the normalized view of a stored VEVENT.
type ParsedEvent struct {
	UID string

	Summary     string
	Description string
	Location    string
	Status      string

	Start  time.Time
	End    time.Time
	AllDay bool

	// Triggers holds the TRIGGER value of every VALARM, e.g. "-PT900M".
	Triggers []string
}

// Cancelled reports whether the event carries STATUS:CANCELLED.
func (p ParsedEvent) Cancelled() bool {
	return strings.EqualFold(p.Status, string(ical.ObjectStatusCancelled))
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - All-day events are detected from DTSTART's VALUE=DATE parameter or a
//     value without a time part.
//   - Events without a UID are logged and skipped.
func ParseICS(name string, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "calendar", name)
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "calendar", name)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "calendar", name, "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Status = p.Value
	}

	out.AllDay = isAllDay(ve.GetProperty(ical.ComponentPropertyDtStart))

	if out.AllDay {
		out.Start, _ = ve.GetAllDayStartAt()
		out.End, _ = ve.GetAllDayEndAt()
	} else {
		out.Start, _ = ve.GetStartAt()
		out.End, _ = ve.GetEndAt()
	}

	for _, a := range ve.Alarms() {
		if p := a.GetProperty(ical.ComponentPropertyTrigger); p != nil {
			out.Triggers = append(out.Triggers, p.Value)
		}
	}

	return out, nil
}

// isAllDay: VALUE=DATE or no 'T' in the value.
func isAllDay(p *ical.IANAProperty) bool {
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters[string(ical.ParameterValue)]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";")

// unescapeText reverses RFC 5545 TEXT escaping.
func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
