package config

import (
	"errors"
	"fmt"
)

// Layout maps each request field to a zero-based column index in a row.
// Place may be -1 for sheets that have no place column.
type Layout struct {
	Action      int `yaml:"action" json:"action"`
	Title       int `yaml:"title" json:"title"`
	StartDate   int `yaml:"start_date" json:"start_date"`
	StartTime   int `yaml:"start_time" json:"start_time"`
	EndDate     int `yaml:"end_date" json:"end_date"`
	EndTime     int `yaml:"end_time" json:"end_time"`
	AllDay      int `yaml:"all_day" json:"all_day"`
	Calendar    int `yaml:"calendar" json:"calendar"`
	Place       int `yaml:"place" json:"place"`
	Description int `yaml:"description" json:"description"`
	Result      int `yaml:"result" json:"result"`
	EventID     int `yaml:"event_id" json:"event_id"`
}

// DefaultLayout is the A..L column order of the request sheet.
func DefaultLayout() Layout {
	return Layout{
		Action:      0,
		Title:       1,
		StartDate:   2,
		StartTime:   3,
		EndDate:     4,
		EndTime:     5,
		AllDay:      6,
		Calendar:    7,
		Place:       8,
		Description: 9,
		Result:      10,
		EventID:     11,
	}
}

func (l Layout) columns() []struct {
	name     string
	idx      int
	optional bool
} {
	return []struct {
		name     string
		idx      int
		optional bool
	}{
		{"action", l.Action, false},
		{"title", l.Title, false},
		{"start_date", l.StartDate, false},
		{"start_time", l.StartTime, false},
		{"end_date", l.EndDate, false},
		{"end_time", l.EndTime, false},
		{"all_day", l.AllDay, false},
		{"calendar", l.Calendar, false},
		{"place", l.Place, true},
		{"description", l.Description, false},
		{"result", l.Result, false},
		{"event_id", l.EventID, false},
	}
}

// Validate checks that every required column has a non-negative index and
// that no two fields share a column.
func (l Layout) Validate() error {
	var errs []error
	seen := map[int]string{}
	for _, c := range l.columns() {
		if c.idx < 0 {
			if c.optional && c.idx == -1 {
				continue
			}
			errs = append(errs, fmt.Errorf("layout.%s: column index %d out of range", c.name, c.idx))
			continue
		}
		if other, dup := seen[c.idx]; dup {
			errs = append(errs, fmt.Errorf("layout.%s: column %d already used by %s", c.name, c.idx, other))
			continue
		}
		seen[c.idx] = c.name
	}
	return errors.Join(errs...)
}

// Width is the number of cells a full row spans.
func (l Layout) Width() int {
	w := 0
	for _, c := range l.columns() {
		if c.idx+1 > w {
			w = c.idx + 1
		}
	}
	return w
}

// HasPlace reports whether the layout includes a place column.
func (l Layout) HasPlace() bool {
	return l.Place >= 0
}
