package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sheetcal/internal/config"
	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
	"sheetcal/internal/row"
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("a run is already in progress")

// RowStore is the tabular source of requests and sink of outcomes.
type RowStore interface {
	// Rows reads every data row. An error here aborts the run before any
	// row is processed.
	Rows(ctx context.Context) ([]model.RawRow, error)
	// WriteOutcome writes the result text, resets the action cell and sets
	// or clears the event id cell as the outcome says.
	WriteOutcome(ctx context.Context, rowNum int, out model.Outcome) error
	// Link identifies the store for description footers.
	Link() string
	// Reset clears all data rows back to their initial state.
	Reset(ctx context.Context) error
}

// Journal records emitted outcomes. Failures are logged, never fatal.
type Journal interface {
	Record(ctx context.Context, runID string, res model.Result) error
}

// Report summarizes one run.
type Report struct {
	RunID       string             `json:"run_id"`
	Started     time.Time          `json:"started"`
	Finished    time.Time          `json:"finished"`
	Rows        int                `json:"rows"`
	Skipped     int                `json:"skipped"`
	Counts      map[model.Kind]int `json:"counts"`
	WriteErrors int                `json:"write_errors"`
	Results     []model.Result     `json:"results"`
}

// Batch runs every row of a store through the parser and reconciler, one
// row at a time. A fault in one row never stops the others.
type Batch struct {
	store   RowStore
	parser  *row.Parser
	rec     *Reconciler
	journal Journal
	msgs    config.Messages

	mu sync.Mutex
}

func NewBatch(store RowStore, parser *row.Parser, rec *Reconciler, journal Journal, msgs config.Messages) *Batch {
	return &Batch{store: store, parser: parser, rec: rec, journal: journal, msgs: msgs}
}

// Run processes the store once. It returns ErrBusy if another Run on the
// same Batch has not finished.
func (b *Batch) Run(ctx context.Context) (*Report, error) {
	if !b.mu.TryLock() {
		return nil, ErrBusy
	}
	defer b.mu.Unlock()

	rep := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Counts:  map[model.Kind]int{},
	}

	rows, err := b.store.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	rep.Rows = len(rows)
	appLog.Info("run started", "run_id", rep.RunID, "rows", len(rows), "store", b.store.Link())

	linked := map[string]int{}

	for _, raw := range rows {
		if err := ctx.Err(); err != nil {
			rep.Finished = time.Now()
			return rep, err
		}

		req, res, emitted, err := b.processRow(ctx, raw)
		if !emitted {
			rep.Skipped++
			continue
		}
		if req.LinkedEventID != "" {
			b.warnDuplicate(linked, req.LinkedEventID, raw.Num)
		}
		if err != nil {
			appLog.Error("row failed", err, "run_id", rep.RunID, "row", raw.Num)
			title := res.Title
			res = Failure(b.msgs, raw.Num, model.KindFailed, err)
			res.Title = title
		}

		// The calendar may already have changed, so the row is written back
		// even if ctx was cancelled meanwhile.
		writeCtx := context.WithoutCancel(ctx)
		if err := b.store.WriteOutcome(writeCtx, raw.Num, res.Outcome); err != nil {
			rep.WriteErrors++
			appLog.Error("write outcome failed", err,
				"run_id", rep.RunID,
				"row", raw.Num,
				"result", res.Outcome.ResultText,
				"new_event_id", res.Outcome.NewEventID,
			)
		}
		if b.journal != nil {
			if err := b.journal.Record(writeCtx, rep.RunID, res); err != nil {
				appLog.Error("journal record failed", err, "run_id", rep.RunID, "row", raw.Num)
			}
		}

		rep.Counts[res.Kind]++
		rep.Results = append(rep.Results, res)
	}

	rep.Finished = time.Now()
	appLog.Info("run finished",
		"run_id", rep.RunID,
		"rows", rep.Rows,
		"skipped", rep.Skipped,
		"created", rep.Counts[model.KindCreated],
		"updated", rep.Counts[model.KindUpdated],
		"deleted", rep.Counts[model.KindDeleted],
		"failed", rep.Counts[model.KindFailed]+rep.Counts[model.KindInvalid],
		"duration", rep.Finished.Sub(rep.Started).String(),
	)
	return rep, nil
}

// Reset restores the store's data rows to their initial state. It shares
// the run lock, so it never interleaves with Run.
func (b *Batch) Reset(ctx context.Context) error {
	if !b.mu.TryLock() {
		return ErrBusy
	}
	defer b.mu.Unlock()

	if err := b.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset rows: %w", err)
	}
	appLog.Info("rows reset", "store", b.store.Link())
	return nil
}

// processRow parses and reconciles one row. Panics from collaborators are
// turned into errors so the batch can continue.
func (b *Batch) processRow(ctx context.Context, raw model.RawRow) (req model.ChangeRequest, res model.Result, emitted bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			emitted = true
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	req, err = b.parser.Parse(raw.Num, raw.Cells)
	if err != nil {
		appLog.Info("row rejected", "row", raw.Num, "reason", err.Error())
		res = Failure(b.msgs, raw.Num, model.KindInvalid, err)
		res.Title = req.Title
		return req, res, true, nil
	}
	res, emitted, err = b.rec.Reconcile(ctx, req)
	return req, res, emitted, err
}

// warnDuplicate logs when two rows of one run point at the same event id.
// Last write wins; nothing is changed.
func (b *Batch) warnDuplicate(seen map[string]int, id string, rowNum int) {
	if prev, ok := seen[id]; ok {
		appLog.Warn("event id referenced by more than one row", "event_id", id, "row", rowNum, "previous_row", prev)
	}
	seen[id] = rowNum
}
