// Package reconcile decides and applies the calendar mutation for each
// request row, and drives a whole sheet of rows through it.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sheetcal/internal/calendar"
	"sheetcal/internal/config"
	"sheetcal/internal/dates"
	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
)

// AllDayReminderMinutes places the popup for a new all-day event at 09:00
// on the previous day: one day minus nine hours before its midnight start.
const AllDayReminderMinutes = 24*60 - 9*60

// Describer turns the row's description into the event description.
type Describer interface {
	Build(original string) string
}

// Reconciler applies one ChangeRequest to the calendar service.
type Reconciler struct {
	resolver *calendar.Resolver
	describe Describer
	msgs     config.Messages
}

func New(resolver *calendar.Resolver, describe Describer, msgs config.Messages) *Reconciler {
	return &Reconciler{resolver: resolver, describe: describe, msgs: msgs}
}

// Reconcile processes one request. The bool is false for skip rows, which
// produce no outcome at all. A non-nil error is a service fault: nothing
// was retried and the caller decides what to report.
func (r *Reconciler) Reconcile(ctx context.Context, req model.ChangeRequest) (model.Result, bool, error) {
	if req.Action == model.ActionSkip {
		return model.Result{}, false, nil
	}

	res := model.Result{Row: req.Row, Title: req.Title}

	cal, err := r.resolver.Resolve(ctx, req.CalendarName)
	if errors.Is(err, calendar.ErrCalendarNotFound) {
		appLog.Info("calendar not found", "row", req.Row, "calendar", req.CalendarName)
		return r.finish(res, model.KindNotFound, r.msgs.CalendarNotFound, false), true, nil
	}
	if err != nil {
		return res, true, err
	}

	if err := dates.ValidateRange(req.StartDate, req.EndDate); err != nil {
		return r.finish(res, model.KindInvalid, r.msgs.EndBeforeStart, false), true, nil
	}

	var start, end time.Time
	if req.Action == model.ActionCreateOrUpdate && !req.AllDay {
		if req.StartTime == nil || req.EndTime == nil {
			return r.finish(res, model.KindInvalid, r.msgs.TimeRequired, false), true, nil
		}
		start = dates.Combine(req.StartDate, *req.StartTime)
		end = dates.Combine(req.EndDate, *req.EndTime)
		if err := dates.ValidateRange(start, end); err != nil {
			return r.finish(res, model.KindInvalid, r.msgs.EndBeforeStart, false), true, nil
		}
	}

	ev, err := r.lookup(ctx, cal, req.LinkedEventID)
	if err != nil {
		return res, true, err
	}

	switch req.Action {
	case model.ActionDelete:
		return r.delete(ctx, res, ev)
	case model.ActionCreateOrUpdate:
		if ev != nil {
			return r.update(ctx, res, ev, req, start, end)
		}
		return r.create(ctx, res, cal, req, start, end)
	}
	return res, true, fmt.Errorf("unhandled action %s", req.Action)
}

// lookup resolves the linked event once. A missing id or an unknown event
// is reported as nil with no error.
func (r *Reconciler) lookup(ctx context.Context, cal calendar.Calendar, id string) (calendar.Event, error) {
	if id == "" {
		return nil, nil
	}
	ev, err := cal.EventByID(ctx, id)
	if errors.Is(err, calendar.ErrEventNotFound) {
		appLog.Debug("linked event not found", "calendar", cal.Name(), "event_id", id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return ev, nil
}

func (r *Reconciler) delete(ctx context.Context, res model.Result, ev calendar.Event) (model.Result, bool, error) {
	if ev == nil {
		return r.finish(res, model.KindNotFound, r.msgs.DeleteNotFound, true), true, nil
	}
	err := ev.Delete(ctx)
	if errors.Is(err, calendar.ErrEventNotFound) {
		appLog.Debug("event vanished before delete", "event_id", ev.ID())
		return r.finish(res, model.KindNotFound, r.msgs.DeleteNotFound, true), true, nil
	}
	if err != nil {
		return res, true, fmt.Errorf("delete event %s: %w", ev.ID(), err)
	}
	return r.finish(res, model.KindDeleted, r.msgs.Deleted, true), true, nil
}

func (r *Reconciler) update(ctx context.Context, res model.Result, ev calendar.Event, req model.ChangeRequest, start, end time.Time) (model.Result, bool, error) {
	ev.SetTitle(req.Title)
	ev.SetDescription(r.describe.Build(req.Description))
	switch {
	case !req.AllDay:
		ev.SetTime(start, end)
	case dates.IsSingleDay(req.StartDate, req.EndDate):
		ev.SetAllDayDate(req.StartDate)
	default:
		ev.SetAllDayDates(req.StartDate, dates.ExclusiveEnd(req.EndDate))
	}
	// An empty place keeps whatever location the event already has.
	if req.Place != "" {
		ev.SetLocation(req.Place)
	}

	if err := ev.Save(ctx); err != nil {
		return res, true, fmt.Errorf("update event %s: %w", ev.ID(), err)
	}
	return r.finish(res, model.KindUpdated, r.msgs.Updated, false), true, nil
}

func (r *Reconciler) create(ctx context.Context, res model.Result, cal calendar.Calendar, req model.ChangeRequest, start, end time.Time) (model.Result, bool, error) {
	opts := calendar.Options{
		Description: r.describe.Build(req.Description),
		Location:    req.Place,
	}

	var ev calendar.Event
	if req.AllDay {
		var exclusiveEnd time.Time
		if !dates.IsSingleDay(req.StartDate, req.EndDate) {
			exclusiveEnd = dates.ExclusiveEnd(req.EndDate)
		}
		ev = cal.NewAllDayEvent(req.Title, req.StartDate, exclusiveEnd, opts)
		ev.RemoveAllReminders()
		ev.AddPopupReminder(AllDayReminderMinutes)
	} else {
		ev = cal.NewEvent(req.Title, start, end, opts)
	}

	if err := ev.Save(ctx); err != nil {
		return res, true, fmt.Errorf("create event: %w", err)
	}

	res = r.finish(res, model.KindCreated, r.msgs.Created, false)
	res.Outcome.NewEventID = ev.ID()
	appLog.Info("event created", "row", req.Row, "calendar", cal.Name(), "event_id", ev.ID(), "all_day", req.AllDay)
	return res, true, nil
}

// finish fills the outcome. Every emitted outcome resets the action.
func (r *Reconciler) finish(res model.Result, kind model.Kind, text string, clearID bool) model.Result {
	res.Kind = kind
	res.Outcome = model.Outcome{
		ResultText:   text,
		ClearEventID: clearID,
		ResetAction:  true,
	}
	return res
}

// Failure is the outcome reported for a row whose processing faulted or
// whose cells could not be read.
func Failure(msgs config.Messages, row int, kind model.Kind, err error) model.Result {
	return model.Result{
		Row:  row,
		Kind: kind,
		Outcome: model.Outcome{
			ResultText:  msgs.FailurePrefix + err.Error(),
			ResetAction: true,
		},
	}
}
