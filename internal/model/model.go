package model

import (
	"fmt"
	"time"
)

// Action is the closed set of things a row can ask for. It is decided once
// when the row is parsed.
type Action int

const (
	// ActionSkip covers blank action cells and the "do nothing" sentinel.
	ActionSkip Action = iota
	ActionCreateOrUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionCreateOrUpdate:
		return "create_or_update"
	case ActionDelete:
		return "delete"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ChangeRequest is one parsed row. It lives for a single run.
type ChangeRequest struct {
	// Row is the store's identifier for the row (e.g. the 1-based sheet row).
	Row int

	Action Action
	Title  string

	// StartDate / EndDate are midnight in the configured location. EndDate
	// equals StartDate when the cell was blank. Both are zero on delete rows
	// that left them empty.
	StartDate time.Time
	EndDate   time.Time

	// StartTime / EndTime are only meaningful when AllDay is false.
	StartTime *TimeOfDay
	EndTime   *TimeOfDay

	AllDay bool

	// CalendarName is empty or the default sentinel for the default calendar.
	CalendarName string

	Place       string
	Description string

	// LinkedEventID is set once a previous run created the event.
	LinkedEventID string
}

// Outcome is what the reconciler decided for one row. The driver writes it
// back to the row store as a whole.
type Outcome struct {
	ResultText string `json:"result_text"`
	// NewEventID is non-empty when an event was created.
	NewEventID   string `json:"new_event_id,omitempty"`
	ClearEventID bool   `json:"clear_event_id"`
	ResetAction  bool   `json:"reset_action"`
}

// Kind classifies an outcome for reporting.
type Kind string

const (
	KindCreated  Kind = "created"
	KindUpdated  Kind = "updated"
	KindDeleted  Kind = "deleted"
	KindNotFound Kind = "not_found"
	KindInvalid  Kind = "invalid"
	KindFailed   Kind = "failed"
)

// Result pairs an outcome with its row and classification.
type Result struct {
	Row     int     `json:"row"`
	Title   string  `json:"title"`
	Kind    Kind    `json:"kind"`
	Outcome Outcome `json:"outcome"`
}

// RawRow is one row as read from a row store.
type RawRow struct {
	// Num is the store's row identifier, written back with the outcome.
	Num   int
	Cells []any
}
