// Package csvstore is a row store over a local CSV file laid out like the
// request sheet. Row numbers are 1-based record numbers in the file.
package csvstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"sheetcal/internal/config"
	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
)

type Store struct {
	path       string
	headerRows int
	layout     config.Layout
	labels     config.Labels

	// mu guards the read-modify-write cycle on the file.
	mu sync.Mutex
}

func New(cfg config.CSVConfig, layout config.Layout, labels config.Labels) *Store {
	return &Store{path: cfg.Path, headerRows: max(cfg.HeaderRows, 0), layout: layout, labels: labels}
}

// Link is a file URL for the CSV, used in event footers.
func (s *Store) Link() string {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		abs = s.path
	}
	return "file://" + filepath.ToSlash(abs)
}

func (s *Store) Rows(_ context.Context) ([]model.RawRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return nil, err
	}
	width := s.layout.Width()
	var rows []model.RawRow
	for i := s.headerRows; i < len(records); i++ {
		cells := make([]any, width)
		for j, v := range records[i] {
			if j < width {
				cells[j] = v
			}
		}
		rows = append(rows, model.RawRow{Num: i + 1, Cells: cells})
	}
	return rows, nil
}

func (s *Store) WriteOutcome(_ context.Context, rowNum int, out model.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	idx := rowNum - 1
	if idx < s.headerRows || idx >= len(records) {
		return fmt.Errorf("row %d out of range", rowNum)
	}
	rec := widen(records[idx], s.layout.Width())
	rec[s.layout.Result] = out.ResultText
	if out.ResetAction {
		rec[s.layout.Action] = s.labels.Skip
	}
	switch {
	case out.NewEventID != "":
		rec[s.layout.EventID] = out.NewEventID
	case out.ClearEventID:
		rec[s.layout.EventID] = ""
	}
	records[idx] = rec
	return s.write(records)
}

// Reset blanks every data row except the defaulted action, calendar and
// all-day cells. Header rows are kept.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	width := s.layout.Width()
	for i := s.headerRows; i < len(records); i++ {
		rec := make([]string, width)
		rec[s.layout.Action] = s.labels.Skip
		rec[s.layout.Calendar] = s.labels.DefaultCalendar
		rec[s.layout.AllDay] = "FALSE"
		records[i] = rec
	}
	if err := s.write(records); err != nil {
		return err
	}
	appLog.Info("csv reset", "path", s.path, "rows", max(len(records)-s.headerRows, 0))
	return nil
}

func (s *Store) read() ([][]string, error) {
	body, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return records, nil
}

func (s *Store) write(records [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return config.WriteFileAtomic(s.path, buf.Bytes(), ".sheetcal-csv-*.tmp")
}

func widen(rec []string, width int) []string {
	if len(rec) >= width {
		return rec
	}
	out := make([]string, width)
	copy(out, rec)
	return out
}
