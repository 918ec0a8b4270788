package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	t.Setenv("SHEETCAL_SPREADSHEET_ID", "sheet-123")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sheet-123", cfg.Sheets.SpreadsheetID)
	assert.Equal(t, DefaultLayout(), cfg.Layout)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadKeepsDefaultsForOmittedSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
row_store: csv
calendar_backend: ics
csv:
  path: rows.csv
labels:
  skip: 処理しない
  create_or_update: 登録・更新
  delete: 削除
  default_calendar: デフォルト
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rows.csv", cfg.CSV.Path)
	assert.Equal(t, 1, cfg.CSV.HeaderRows)
	assert.Equal(t, "処理しない", cfg.Labels.Skip)
	assert.Equal(t, DefaultLayout(), cfg.Layout)
	assert.Equal(t, "calendar not found", cfg.Messages.CalendarNotFound)
	assert.Equal(t, "Asia/Tokyo", cfg.Footer.Timezone)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sheets.SpreadsheetID = "x"
	cfg.Timezone = "Mars/Olympus"
	cfg.Layout.Title = cfg.Layout.Action
	cfg.Labels.Delete = cfg.Labels.Skip
	cfg.RefreshCron = "every tuesday"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mars/Olympus")
	assert.Contains(t, err.Error(), "every tuesday")
	assert.Contains(t, err.Error(), "layout.title")
	assert.Contains(t, err.Error(), "share the value")
}

func TestValidateRequiresSpreadsheetID(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorContains(t, cfg.Validate(), "spreadsheet_id")

	cfg.Sheets.SpreadsheetID = "abc"
	assert.NoError(t, cfg.Validate())
}

func TestLayout(t *testing.T) {
	l := DefaultLayout()
	assert.NoError(t, l.Validate())
	assert.Equal(t, 12, l.Width())
	assert.True(t, l.HasPlace())

	l.Place = -1
	assert.NoError(t, l.Validate())
	assert.False(t, l.HasPlace())

	l.Result = -2
	assert.Error(t, l.Validate())
}

func TestApplyEnvBasicAuth(t *testing.T) {
	t.Setenv("SHEETCAL_BASIC_AUTH_USER", "admin")
	t.Setenv("SHEETCAL_BASIC_AUTH_PASSWORD", "secret")
	t.Setenv("SHEETCAL_FIRST_ROW", "3")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)
	assert.Equal(t, 3, cfg.Sheets.FirstRow)
}
