// Package sheets is the Google Sheets row store: it reads request rows from
// one tab and writes outcomes back into the same cells.
package sheets

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"sheetcal/internal/config"
	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
)

const (
	valueInputRaw     = "RAW"
	renderUnformatted = "UNFORMATTED_VALUE"
	renderSerial      = "SERIAL_NUMBER"
)

// Scopes are the OAuth scopes the store needs.
var Scopes = []string{sheetsapi.SpreadsheetsScope}

type Store struct {
	api    *sheetsapi.Service
	cfg    config.SheetsConfig
	layout config.Layout
	labels config.Labels

	mu     sync.Mutex
	cached *sheetTab
}

func New(api *sheetsapi.Service, cfg config.SheetsConfig, layout config.Layout, labels config.Labels) *Store {
	if cfg.FirstRow < 1 {
		cfg.FirstRow = 1
	}
	return &Store{api: api, cfg: cfg, layout: layout, labels: labels}
}

// NewFromClient builds the API client over an authorized http.Client.
func NewFromClient(ctx context.Context, client *http.Client, cfg config.SheetsConfig, layout config.Layout, labels config.Labels, opts ...option.ClientOption) (*Store, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	api, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(api, cfg, layout, labels), nil
}

// Link is the spreadsheet URL printed in event footers.
func (s *Store) Link() string {
	return "https://docs.google.com/spreadsheets/d/" + s.cfg.SpreadsheetID + "/edit"
}

// Rows returns every row from FirstRow down to the last non-empty row.
// Values come back unformatted so dates and times arrive as serial numbers.
func (s *Store) Rows(ctx context.Context) ([]model.RawRow, error) {
	tab, err := s.tab(ctx)
	if err != nil {
		return nil, err
	}
	rng := fmt.Sprintf("%s!A%d:%s", quote(tab.title), s.cfg.FirstRow, column(s.layout.Width()-1))
	resp, err := s.api.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, rng).
		ValueRenderOption(renderUnformatted).
		DateTimeRenderOption(renderSerial).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	width := s.layout.Width()
	rows := make([]model.RawRow, 0, len(resp.Values))
	for i, vals := range resp.Values {
		cells := make([]any, width)
		copy(cells, vals)
		rows = append(rows, model.RawRow{Num: s.cfg.FirstRow + i, Cells: cells})
	}
	appLog.Debug("sheet rows read", "range", rng, "rows", len(rows))
	return rows, nil
}

// WriteOutcome writes the result, action and event id cells of one row in
// a single batch update.
func (s *Store) WriteOutcome(ctx context.Context, rowNum int, out model.Outcome) error {
	tab, err := s.tab(ctx)
	if err != nil {
		return err
	}
	cell := func(col int) string {
		return fmt.Sprintf("%s!%s%d", quote(tab.title), column(col), rowNum)
	}

	data := []*sheetsapi.ValueRange{
		{Range: cell(s.layout.Result), Values: [][]any{{out.ResultText}}},
	}
	if out.ResetAction {
		data = append(data, &sheetsapi.ValueRange{Range: cell(s.layout.Action), Values: [][]any{{s.labels.Skip}}})
	}
	switch {
	case out.NewEventID != "":
		data = append(data, &sheetsapi.ValueRange{Range: cell(s.layout.EventID), Values: [][]any{{out.NewEventID}}})
	case out.ClearEventID:
		data = append(data, &sheetsapi.ValueRange{Range: cell(s.layout.EventID), Values: [][]any{{""}}})
	}

	req := &sheetsapi.BatchUpdateValuesRequest{ValueInputOption: valueInputRaw, Data: data}
	if _, err := s.api.Spreadsheets.Values.BatchUpdate(s.cfg.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}

// Reset clears every data row, refills the action and calendar columns with
// their default labels and turns the all-day column into checkboxes.
func (s *Store) Reset(ctx context.Context) error {
	rows, err := s.Rows(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	tab, err := s.tab(ctx)
	if err != nil {
		return err
	}
	first := s.cfg.FirstRow
	last := first + len(rows) - 1
	id := s.cfg.SpreadsheetID
	title := quote(tab.title)

	rng := fmt.Sprintf("%s!A%d:%s%d", title, first, column(s.layout.Width()-1), last)
	if _, err := s.api.Spreadsheets.Values.Clear(id, rng, &sheetsapi.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	fill := func(col int, label string) *sheetsapi.ValueRange {
		vals := make([][]any, len(rows))
		for i := range vals {
			vals[i] = []any{label}
		}
		return &sheetsapi.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d:%s%d", title, column(col), first, column(col), last),
			Values: vals,
		}
	}
	defaults := &sheetsapi.BatchUpdateValuesRequest{
		ValueInputOption: valueInputRaw,
		Data: []*sheetsapi.ValueRange{
			fill(s.layout.Action, s.labels.Skip),
			fill(s.layout.Calendar, s.labels.DefaultCalendar),
		},
	}
	if _, err := s.api.Spreadsheets.Values.BatchUpdate(id, defaults).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write defaults: %w", err)
	}

	checkboxes := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			SetDataValidation: &sheetsapi.SetDataValidationRequest{
				Range: &sheetsapi.GridRange{
					SheetId:          tab.id,
					StartRowIndex:    int64(first - 1),
					EndRowIndex:      int64(last),
					StartColumnIndex: int64(s.layout.AllDay),
					EndColumnIndex:   int64(s.layout.AllDay + 1),
					ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
				},
				Rule: &sheetsapi.DataValidationRule{
					Condition: &sheetsapi.BooleanCondition{Type: "BOOLEAN"},
				},
			},
		}},
	}
	if _, err := s.api.Spreadsheets.BatchUpdate(id, checkboxes).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert checkboxes: %w", err)
	}
	appLog.Info("sheet reset", "first_row", first, "last_row", last)
	return nil
}

type sheetTab struct {
	title string
	id    int64
}

// tab looks up the configured tab, or the first one when no name is set.
// The result is cached for the life of the store.
func (s *Store) tab(ctx context.Context) (sheetTab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return *s.cached, nil
	}
	t, err := s.lookupTab(ctx)
	if err != nil {
		return sheetTab{}, err
	}
	s.cached = &t
	return t, nil
}

func (s *Store) lookupTab(ctx context.Context) (sheetTab, error) {
	ss, err := s.api.Spreadsheets.Get(s.cfg.SpreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return sheetTab{}, fmt.Errorf("spreadsheet %s: %w", s.cfg.SpreadsheetID, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		if s.cfg.SheetName == "" || sh.Properties.Title == s.cfg.SheetName {
			return sheetTab{title: sh.Properties.Title, id: sh.Properties.SheetId}, nil
		}
	}
	if s.cfg.SheetName == "" {
		return sheetTab{}, fmt.Errorf("spreadsheet %s has no sheets", s.cfg.SpreadsheetID)
	}
	return sheetTab{}, fmt.Errorf("sheet %q not found in %s", s.cfg.SheetName, s.cfg.SpreadsheetID)
}

// column converts a zero-based index to A1 letters: 0 -> A, 26 -> AA.
func column(idx int) string {
	var b []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
