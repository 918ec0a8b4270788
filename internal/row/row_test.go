package row

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetcal/internal/config"
	"sheetcal/internal/model"
)

func newParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(config.DefaultLayout(), config.DefaultLabels(), time.UTC)
	require.NoError(t, err)
	return p
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseSkipRows(t *testing.T) {
	p := newParser(t)

	for _, label := range []any{nil, "", "skip", "  skip  "} {
		// Garbage dates must not matter on skip rows.
		req, err := p.Parse(6, []any{label, "t", "not a date"})
		require.NoError(t, err)
		assert.Equal(t, model.ActionSkip, req.Action)
		assert.Equal(t, 6, req.Row)
		assert.Empty(t, req.Title)
	}
}

func TestParseCreateAllDayStrings(t *testing.T) {
	p := newParser(t)

	raw := []any{"register", "Kickoff", "2024-05-01", "", "2024/05/03", "", "TRUE", "", "Room 1", "notes", "", ""}
	req, err := p.Parse(7, raw)
	require.NoError(t, err)

	assert.Equal(t, model.ActionCreateOrUpdate, req.Action)
	assert.Equal(t, "Kickoff", req.Title)
	assert.Equal(t, day(2024, 5, 1), req.StartDate)
	assert.Equal(t, day(2024, 5, 3), req.EndDate)
	assert.True(t, req.AllDay)
	assert.Nil(t, req.StartTime)
	assert.Equal(t, "Room 1", req.Place)
	assert.Equal(t, "notes", req.Description)
	assert.Empty(t, req.LinkedEventID)
}

func TestParseEndDateDefaultsToStart(t *testing.T) {
	p := newParser(t)

	req, err := p.Parse(8, []any{"register", "Standup", "2024-05-01", "09:00", nil, "09:15"})
	require.NoError(t, err)
	assert.Equal(t, req.StartDate, req.EndDate)
	assert.Equal(t, &model.TimeOfDay{Hour: 9}, req.StartTime)
	assert.Equal(t, &model.TimeOfDay{Hour: 9, Minute: 15}, req.EndTime)
	assert.False(t, req.AllDay)
}

func TestParseSerialNumbers(t *testing.T) {
	p := newParser(t)

	// 45413 is 2024-05-01; 0.375 is 09:00; 0.5 is 12:00.
	raw := []any{"register", "Serial", 45413.0, 0.375, 45414.0, 0.5, true, "Work", nil, nil, nil, "evt-1"}
	req, err := p.Parse(9, raw)
	require.NoError(t, err)

	assert.Equal(t, day(2024, 5, 1), req.StartDate)
	assert.Equal(t, day(2024, 5, 2), req.EndDate)
	assert.Equal(t, &model.TimeOfDay{Hour: 9}, req.StartTime)
	assert.Equal(t, &model.TimeOfDay{Hour: 12}, req.EndTime)
	assert.True(t, req.AllDay)
	assert.Equal(t, "Work", req.CalendarName)
	assert.Equal(t, "evt-1", req.LinkedEventID)
}

func TestParseTimeValues(t *testing.T) {
	p := newParser(t)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	start := time.Date(2024, 5, 1, 23, 30, 0, 0, tokyo)
	req, err := p.Parse(10, []any{"register", "T", start, start, "", "3:45 PM"})
	require.NoError(t, err)
	assert.Equal(t, day(2024, 5, 1), req.StartDate)
	assert.Equal(t, &model.TimeOfDay{Hour: 23, Minute: 30}, req.StartTime)
	assert.Equal(t, &model.TimeOfDay{Hour: 15, Minute: 45}, req.EndTime)
}

func TestParseMalformed(t *testing.T) {
	p := newParser(t)

	cases := map[string][]any{
		"bad start date":      {"register", "T", "tomorrow"},
		"missing start":       {"register", "T", ""},
		"missing title":       {"register", "", "2024-05-01"},
		"bad end date":        {"delete", "T", "2024-05-01", "", "31/31/2024"},
		"bad time":            {"register", "T", "2024-05-01", "noon"},
		"unknown action":      {"frobnicate", "T", "2024-05-01"},
		"short row no date":   {"register", "T"},
		"digits as date":      {"register", "T", "20240501"},
		"digits as time":      {"register", "T", "2024-05-01", "9", "", "10"},
		"serial out of range": {"register", "T", 3e6},
		"serial before epoch": {"register", "T", -2.0},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Parse(11, raw)
			assert.ErrorIs(t, err, ErrMalformedRow)
		})
	}
}

func TestParseDeleteWithoutDates(t *testing.T) {
	p := newParser(t)

	req, err := p.Parse(12, []any{"delete", "", "", "", "", "", "", "", "", "", "", "evt-9"})
	require.NoError(t, err)
	assert.Equal(t, model.ActionDelete, req.Action)
	assert.True(t, req.StartDate.IsZero())
	assert.Equal(t, "evt-9", req.LinkedEventID)
}

func TestParseCustomLayoutWithoutPlace(t *testing.T) {
	layout := config.DefaultLayout()
	layout.Place = -1
	labels := config.Labels{Skip: "処理しない", CreateOrUpdate: "登録・更新", Delete: "削除", DefaultCalendar: "デフォルト"}
	p, err := NewParser(layout, labels, time.UTC)
	require.NoError(t, err)

	req, err := p.Parse(13, []any{"登録・更新", "会議", "2024-05-01", "", "", "", "true", "デフォルト", "ignored"})
	require.NoError(t, err)
	assert.Equal(t, model.ActionCreateOrUpdate, req.Action)
	assert.Empty(t, req.Place)

	req, err = p.Parse(14, []any{"処理しない"})
	require.NoError(t, err)
	assert.Equal(t, model.ActionSkip, req.Action)
}

func TestNewParserRejectsBadLayout(t *testing.T) {
	layout := config.DefaultLayout()
	layout.EventID = layout.Result
	_, err := NewParser(layout, config.DefaultLabels(), time.UTC)
	assert.Error(t, err)
}
