// Package app assembles the row store, calendar backend, reconciler and
// journal described by a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"sheetcal/internal/calendar"
	"sheetcal/internal/config"
	"sheetcal/internal/csvstore"
	"sheetcal/internal/describe"
	"sheetcal/internal/gcal"
	"sheetcal/internal/googleauth"
	"sheetcal/internal/ics"
	"sheetcal/internal/journal"
	appLog "sheetcal/internal/log"
	"sheetcal/internal/reconcile"
	"sheetcal/internal/row"
	"sheetcal/internal/sheets"
)

type App struct {
	Config *config.Config
	Batch  *reconcile.Batch
	// Journal is nil when journaling is disabled.
	Journal *journal.DB
}

// GoogleScopes are the scopes requested by the auth command.
func GoogleScopes() []string {
	return append(append([]string{}, gcal.Scopes...), sheets.Scopes...)
}

// New builds every component. The Google client is only created when the
// row store or calendar backend needs it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	var client *http.Client
	if cfg.RowStore == config.RowStoreSheets || cfg.CalendarBackend == config.BackendGoogle {
		oauthCfg, err := googleauth.LoadConfig(cfg.Google.CredentialsFile, GoogleScopes()...)
		if err != nil {
			return nil, err
		}
		client, err = googleauth.Client(ctx, oauthCfg, cfg.Google.TokenFile)
		if err != nil {
			return nil, err
		}
	}
	return NewWithClient(ctx, cfg, client)
}

// NewWithClient is New with a caller-supplied authorized client. client may
// be nil when neither Google component is configured.
func NewWithClient(ctx context.Context, cfg *config.Config, client *http.Client) (*App, error) {
	store, err := newRowStore(ctx, cfg, client)
	if err != nil {
		return nil, err
	}
	svc, err := newCalendarService(ctx, cfg, client)
	if err != nil {
		return nil, err
	}

	parser, err := row.NewParser(cfg.Layout, cfg.Labels, cfg.Location())
	if err != nil {
		return nil, err
	}
	desc, err := describe.New(cfg.Footer, store.Link())
	if err != nil {
		return nil, fmt.Errorf("footer: %w", err)
	}
	rec := reconcile.New(calendar.NewResolver(svc, cfg.Labels.DefaultCalendar), desc, cfg.Messages)

	a := &App{Config: cfg}
	var j reconcile.Journal
	if cfg.Journal.Path != "" {
		a.Journal, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		j = a.Journal
	}
	a.Batch = reconcile.NewBatch(store, parser, rec, j, cfg.Messages)

	appLog.Info("app ready",
		"row_store", cfg.RowStore,
		"calendar_backend", cfg.CalendarBackend,
		"timezone", cfg.Timezone,
		"journal", cfg.Journal.Path != "",
	)
	return a, nil
}

func (a *App) Close() error {
	if a.Journal != nil {
		return a.Journal.Close()
	}
	return nil
}

func newRowStore(ctx context.Context, cfg *config.Config, client *http.Client) (reconcile.RowStore, error) {
	switch cfg.RowStore {
	case config.RowStoreSheets:
		if client == nil {
			return nil, errors.New("sheets row store needs a google client")
		}
		return sheets.NewFromClient(ctx, client, cfg.Sheets, cfg.Layout, cfg.Labels)
	case config.RowStoreCSV:
		return csvstore.New(cfg.CSV, cfg.Layout, cfg.Labels), nil
	default:
		return nil, fmt.Errorf("unknown row_store %q", cfg.RowStore)
	}
}

func newCalendarService(ctx context.Context, cfg *config.Config, client *http.Client) (calendar.Service, error) {
	switch cfg.CalendarBackend {
	case config.BackendGoogle:
		if client == nil {
			return nil, errors.New("google calendar backend needs a google client")
		}
		return gcal.NewFromClient(ctx, client)
	case config.BackendICS:
		return ics.New(cfg.ICS.Dir, cfg.ICS.DefaultCalendar), nil
	default:
		return nil, fmt.Errorf("unknown calendar_backend %q", cfg.CalendarBackend)
	}
}
