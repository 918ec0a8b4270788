package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "sheetcal/internal/log"
	"sheetcal/internal/reconcile"
)

// Schedule starts a cron scheduler that runs the batch on the configured
// refresh schedule, in the row timezone. Ticks that arrive while a run is
// still going are skipped. Stop the returned scheduler to end it.
func (a *App) Schedule(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLocation(a.Config.Location()),
		cron.WithChain(cron.Recover(cronLogger{})),
	)
	if _, err := c.AddFunc(a.Config.RefreshCron, func() { a.scheduledRun(ctx) }); err != nil {
		return nil, fmt.Errorf("refresh %q: %w", a.Config.RefreshCron, err)
	}
	c.Start()
	appLog.Info("scheduler started", "refresh", a.Config.RefreshCron, "timezone", a.Config.Timezone)
	return c, nil
}

func (a *App) scheduledRun(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	rep, err := a.Batch.Run(ctx)
	switch {
	case errors.Is(err, reconcile.ErrBusy):
		appLog.Info("scheduled run skipped; previous run still in progress")
	case err != nil:
		appLog.Error("scheduled run failed", err)
	default:
		appLog.Debug("scheduled run done", "run_id", rep.RunID, "results", len(rep.Results))
	}
}

// cronLogger adapts the package logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
