package row

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sheetcal/internal/model"
)

// Spreadsheet serial numbers count days from this date.
var serialEpoch = struct{ y, m, d int }{1899, 12, 30}

// maxSerialDay is 9999-12-31, the last day a spreadsheet can hold.
const maxSerialDay = 2958465

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	"2006.01.02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04:05",
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"1899/12/30 15:04:05",
}

// text renders a cell as trimmed text.
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// date coerces a cell to midnight of its calendar day in loc. A blank cell
// returns the zero time and no error.
func date(v any, loc *time.Location) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		if x.IsZero() {
			return time.Time{}, nil
		}
		return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, loc), nil
	case float64:
		return serialDate(x, loc)
	case int:
		return serialDate(float64(x), loc)
	case int64:
		return serialDate(float64(x), loc)
	}

	// Only typed cells carry serial numbers. Digits in a text cell are
	// matched against the layouts like any other text.
	s := text(v)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func serialDate(days float64, loc *time.Location) (time.Time, error) {
	whole := int(math.Floor(days))
	if whole < 1 || whole > maxSerialDay {
		return time.Time{}, fmt.Errorf("serial date %v out of range", days)
	}
	return time.Date(serialEpoch.y, time.Month(serialEpoch.m), serialEpoch.d, 0, 0, 0, 0, loc).AddDate(0, 0, whole), nil
}

// clock coerces a cell to a time of day. A blank cell returns nil.
func clock(v any) (*model.TimeOfDay, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &model.TimeOfDay{Hour: x.Hour(), Minute: x.Minute()}, nil
	case float64:
		return serialClock(x), nil
	}

	s := text(v)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &model.TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", s)
}

// serialClock reads the fractional part of a serial number as a time of day.
func serialClock(f float64) *model.TimeOfDay {
	frac := f - math.Floor(f)
	minutes := int(math.Round(frac*24*60)) % (24 * 60)
	return &model.TimeOfDay{Hour: minutes / 60, Minute: minutes % 60}
}

// flag coerces a checkbox-like cell.
func flag(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	}
	switch strings.ToLower(text(v)) {
	case "true", "1", "yes", "y", "on", "x", "✓", "✔":
		return true
	}
	return false
}
