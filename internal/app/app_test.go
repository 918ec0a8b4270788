package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetcal/internal/config"
	"sheetcal/internal/ics"
	"sheetcal/internal/model"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.RowStore = config.RowStoreCSV
	cfg.CalendarBackend = config.BackendICS
	cfg.CSV.Path = filepath.Join(dir, "requests.csv")
	cfg.ICS.Dir = filepath.Join(dir, "calendars")
	cfg.Journal.Path = filepath.Join(dir, "journal.db")
	cfg.Normalize()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestLocalRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	body := "action,title,start date,start time,end date,end time,all day,calendar,place,description,result,event id\n" +
		"register,Kickoff,2024-05-01,,,,TRUE,default,Hall,Bring slides,,\n" +
		"register,Offsite,2024-05-02,,,,TRUE,Nowhere,,,,\n"
	require.NoError(t, os.WriteFile(cfg.CSV.Path, []byte(body), 0o600))

	a, err := NewWithClient(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	rep, err := a.Batch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Counts[model.KindCreated])
	assert.Equal(t, 1, rep.Counts[model.KindNotFound])

	raw, err := os.ReadFile(filepath.Join(cfg.ICS.Dir, "primary.ics"))
	require.NoError(t, err)
	events, err := ics.ParseICS("primary", raw)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Kickoff", events[0].Summary)
	assert.True(t, events[0].AllDay)
	assert.Equal(t, "Hall", events[0].Location)
	assert.True(t, strings.HasPrefix(events[0].Description, "Bring slides\n\n\n---\n"))
	assert.Contains(t, events[0].Description, "file://")
	assert.Equal(t, []string{"-PT900M"}, events[0].Triggers)

	entries, err := a.Journal.Run(ctx, rep.RunID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.KindCreated, entries[0].Result.Kind)
	assert.Equal(t, "calendar not found", entries[1].Result.Outcome.ResultText)
}

func TestGoogleComponentsNeedClient(t *testing.T) {
	cfg := localConfig(t)
	cfg.CalendarBackend = config.BackendGoogle

	_, err := NewWithClient(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "needs a google client")
}

func TestJournalDisabled(t *testing.T) {
	cfg := localConfig(t)
	cfg.Journal.Path = ""

	a, err := NewWithClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, a.Journal)
	assert.NoError(t, a.Close())
}

func TestGoogleScopes(t *testing.T) {
	assert.Len(t, GoogleScopes(), 2)
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	cfg := localConfig(t)
	a, err := NewWithClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	a.Config.RefreshCron = "not a schedule"
	_, err = a.Schedule(context.Background())
	assert.ErrorContains(t, err, "not a schedule")
}

func TestScheduleRegistersJob(t *testing.T) {
	cfg := localConfig(t)
	a, err := NewWithClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	c, err := a.Schedule(context.Background())
	require.NoError(t, err)
	defer c.Stop()
	assert.Len(t, c.Entries(), 1)
}

func TestScheduledRun(t *testing.T) {
	cfg := localConfig(t)
	body := "h\nregister,Tick,2024-05-01,,,,TRUE,,,,,\n"
	require.NoError(t, os.WriteFile(cfg.CSV.Path, []byte(body), 0o600))
	a, err := NewWithClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	a.scheduledRun(cancelled)
	raw, err := os.ReadFile(cfg.CSV.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "created")

	a.scheduledRun(context.Background())
	raw, err = os.ReadFile(cfg.CSV.Path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "created")
}
