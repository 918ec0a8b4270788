package calendar

import (
	"context"
	"fmt"
)

// Resolver maps a row's calendar name to a calendar.
type Resolver struct {
	svc Service
	// defaultName is the sentinel cell value that means "default calendar".
	defaultName string
}

func NewResolver(svc Service, defaultName string) *Resolver {
	return &Resolver{svc: svc, defaultName: defaultName}
}

// Resolve returns the default calendar for an empty name or the sentinel,
// otherwise the first calendar with exactly that name. A miss is
// ErrCalendarNotFound; provider errors are returned wrapped.
func (r *Resolver) Resolve(ctx context.Context, name string) (Calendar, error) {
	if name == "" || name == r.defaultName {
		cal, err := r.svc.DefaultCalendar(ctx)
		if err != nil {
			return nil, fmt.Errorf("default calendar: %w", err)
		}
		return cal, nil
	}

	cals, err := r.svc.CalendarsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list calendars %q: %w", name, err)
	}
	for _, c := range cals {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrCalendarNotFound, name)
}
