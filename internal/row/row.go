// Package row turns loosely typed row cells into model.ChangeRequest values.
package row

import (
	"errors"
	"fmt"
	"time"

	"sheetcal/internal/config"
	"sheetcal/internal/model"
)

// ErrMalformedRow marks a row whose required fields cannot be read.
var ErrMalformedRow = errors.New("malformed row")

// Parser reads rows laid out according to a config.Layout.
type Parser struct {
	layout config.Layout
	labels config.Labels
	loc    *time.Location
}

// NewParser validates layout and returns a Parser that interprets dates in loc.
func NewParser(layout config.Layout, labels config.Labels, loc *time.Location) (*Parser, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Parser{layout: layout, labels: labels, loc: loc}, nil
}

// Layout returns the column layout the parser was built with.
func (p *Parser) Layout() config.Layout {
	return p.layout
}

// Action decides the action from a raw label.
func (p *Parser) Action(label string) (model.Action, error) {
	switch label {
	case "", p.labels.Skip:
		return model.ActionSkip, nil
	case p.labels.CreateOrUpdate:
		return model.ActionCreateOrUpdate, nil
	case p.labels.Delete:
		return model.ActionDelete, nil
	}
	return model.ActionSkip, fmt.Errorf("%w: unknown action %q", ErrMalformedRow, label)
}

// Parse reads one row. Skip rows return immediately with only Row and
// Action set, so a blank or reset row never fails.
func (p *Parser) Parse(rowNum int, raw []any) (model.ChangeRequest, error) {
	cell := func(idx int) any {
		if idx < 0 || idx >= len(raw) {
			return nil
		}
		return raw[idx]
	}

	req := model.ChangeRequest{Row: rowNum}

	action, err := p.Action(text(cell(p.layout.Action)))
	if err != nil {
		return req, err
	}
	req.Action = action
	if action == model.ActionSkip {
		return req, nil
	}

	req.Title = text(cell(p.layout.Title))
	req.AllDay = flag(cell(p.layout.AllDay))
	req.CalendarName = text(cell(p.layout.Calendar))
	req.Place = text(cell(p.layout.Place))
	req.Description = text(cell(p.layout.Description))
	req.LinkedEventID = text(cell(p.layout.EventID))

	if req.StartDate, err = date(cell(p.layout.StartDate), p.loc); err != nil {
		return req, fmt.Errorf("%w: start date: %v", ErrMalformedRow, err)
	}
	if req.EndDate, err = date(cell(p.layout.EndDate), p.loc); err != nil {
		return req, fmt.Errorf("%w: end date: %v", ErrMalformedRow, err)
	}
	if req.EndDate.IsZero() {
		req.EndDate = req.StartDate
	}
	if req.StartTime, err = clock(cell(p.layout.StartTime)); err != nil {
		return req, fmt.Errorf("%w: start time: %v", ErrMalformedRow, err)
	}
	if req.EndTime, err = clock(cell(p.layout.EndTime)); err != nil {
		return req, fmt.Errorf("%w: end time: %v", ErrMalformedRow, err)
	}

	if action == model.ActionCreateOrUpdate {
		if req.StartDate.IsZero() {
			return req, fmt.Errorf("%w: start date is required", ErrMalformedRow)
		}
		if req.Title == "" {
			return req, fmt.Errorf("%w: title is required", ErrMalformedRow)
		}
	}

	return req, nil
}
