package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Row store and calendar backend identifiers.
const (
	RowStoreSheets = "sheets"
	RowStoreCSV    = "csv"

	BackendGoogle = "google"
	BackendICS    = "ics"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP trigger.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// GoogleConfig points at the OAuth client secret and the cached user token.
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	TokenFile       string `yaml:"token_file" json:"token_file"`
}

// SheetsConfig locates the request rows inside a spreadsheet.
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id" json:"spreadsheet_id"`
	// SheetName is the tab holding the rows. Empty means the first sheet.
	SheetName string `yaml:"sheet_name" json:"sheet_name"`
	// FirstRow is the 1-based row number of the first data row.
	FirstRow int `yaml:"first_row" json:"first_row"`
}

// CSVConfig configures the local CSV row store.
type CSVConfig struct {
	Path string `yaml:"path" json:"path"`
	// HeaderRows is the number of leading rows that are not data.
	HeaderRows int `yaml:"header_rows" json:"header_rows"`
}

// ICSConfig configures the local ICS calendar backend.
type ICSConfig struct {
	Dir             string `yaml:"dir" json:"dir"`
	DefaultCalendar string `yaml:"default_calendar" json:"default_calendar"`
}

// JournalConfig configures the SQLite outcome journal. Empty Path disables it.
type JournalConfig struct {
	Path string `yaml:"path" json:"path"`
}

// Labels are the literal cell values the row store uses for actions and
// the default calendar.
type Labels struct {
	Skip            string `yaml:"skip" json:"skip"`
	CreateOrUpdate  string `yaml:"create_or_update" json:"create_or_update"`
	Delete          string `yaml:"delete" json:"delete"`
	DefaultCalendar string `yaml:"default_calendar" json:"default_calendar"`
}

// Messages are the result texts written back per row.
type Messages struct {
	Created          string `yaml:"created" json:"created"`
	Updated          string `yaml:"updated" json:"updated"`
	Deleted          string `yaml:"deleted" json:"deleted"`
	DeleteNotFound   string `yaml:"delete_not_found" json:"delete_not_found"`
	CalendarNotFound string `yaml:"calendar_not_found" json:"calendar_not_found"`
	EndBeforeStart   string `yaml:"end_before_start" json:"end_before_start"`
	TimeRequired     string `yaml:"time_required" json:"time_required"`
	// FailurePrefix precedes the fault text for malformed rows and service faults.
	FailurePrefix string `yaml:"failure_prefix" json:"failure_prefix"`
}

// Footer configures the provenance footer appended to event descriptions.
type Footer struct {
	Notice         string `yaml:"notice" json:"notice"`
	TimestampLabel string `yaml:"timestamp_label" json:"timestamp_label"`
	LinkLabel      string `yaml:"link_label" json:"link_label"`
	// Timezone is the named zone the registration timestamp is printed in.
	Timezone string `yaml:"timezone" json:"timezone"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone row dates and times are interpreted in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Listen is the HTTP listen address for the serve command.
	Listen string `yaml:"listen" json:"listen"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// RefreshCron is the cron schedule used by the watch command.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	RowStore        string `yaml:"row_store" json:"row_store"`
	CalendarBackend string `yaml:"calendar_backend" json:"calendar_backend"`

	Google  GoogleConfig  `yaml:"google" json:"google"`
	Sheets  SheetsConfig  `yaml:"sheets" json:"sheets"`
	CSV     CSVConfig     `yaml:"csv" json:"csv"`
	ICS     ICSConfig     `yaml:"ics" json:"ics"`
	Journal JournalConfig `yaml:"journal" json:"journal"`

	Layout   Layout   `yaml:"layout" json:"layout"`
	Labels   Labels   `yaml:"labels" json:"labels"`
	Messages Messages `yaml:"messages" json:"messages"`
	Footer   Footer   `yaml:"footer" json:"footer"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:        "Asia/Tokyo",
		LogLevel:        "info",
		Listen:          "127.0.0.1:8080",
		RefreshCron:     "*/15 * * * *",
		RowStore:        RowStoreSheets,
		CalendarBackend: BackendGoogle,
		Google: GoogleConfig{
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
		},
		Sheets: SheetsConfig{
			FirstRow: 6,
		},
		CSV: CSVConfig{
			Path:       "requests.csv",
			HeaderRows: 1,
		},
		ICS: ICSConfig{
			Dir:             "./calendars",
			DefaultCalendar: "primary",
		},
		Layout:   DefaultLayout(),
		Labels:   DefaultLabels(),
		Messages: DefaultMessages(),
		Footer:   DefaultFooter(),
	}
}

func DefaultLabels() Labels {
	return Labels{
		Skip:            "skip",
		CreateOrUpdate:  "register",
		Delete:          "delete",
		DefaultCalendar: "default",
	}
}

func DefaultMessages() Messages {
	return Messages{
		Created:          "created",
		Updated:          "updated",
		Deleted:          "deleted",
		DeleteNotFound:   "event to delete not found",
		CalendarNotFound: "calendar not found",
		EndBeforeStart:   "error: end before start",
		TimeRequired:     "error: start and end time are required",
		FailurePrefix:    "error: ",
	}
}

func DefaultFooter() Footer {
	return Footer{
		Notice:         "This event was created from the bulk event registration spreadsheet.",
		TimestampLabel: "Registered at: ",
		LinkLabel:      "Spreadsheet link: ",
		Timezone:       "Asia/Tokyo",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.RowStore == "" {
		c.RowStore = def.RowStore
	}
	if c.CalendarBackend == "" {
		c.CalendarBackend = def.CalendarBackend
	}
	if c.Google.CredentialsFile == "" {
		c.Google.CredentialsFile = def.Google.CredentialsFile
	}
	if c.Google.TokenFile == "" {
		c.Google.TokenFile = def.Google.TokenFile
	}
	if c.Sheets.FirstRow <= 0 {
		c.Sheets.FirstRow = def.Sheets.FirstRow
	}
	if c.CSV.HeaderRows < 0 {
		c.CSV.HeaderRows = 0
	}
	if c.ICS.Dir == "" {
		c.ICS.Dir = def.ICS.Dir
	}
	if c.ICS.DefaultCalendar == "" {
		c.ICS.DefaultCalendar = def.ICS.DefaultCalendar
	}
	if c.Labels.Skip == "" {
		c.Labels.Skip = def.Labels.Skip
	}
	if c.Labels.CreateOrUpdate == "" {
		c.Labels.CreateOrUpdate = def.Labels.CreateOrUpdate
	}
	if c.Labels.Delete == "" {
		c.Labels.Delete = def.Labels.Delete
	}
	if c.Labels.DefaultCalendar == "" {
		c.Labels.DefaultCalendar = def.Labels.DefaultCalendar
	}
	c.Messages.fill(def.Messages)
	if c.Footer.Timezone == "" {
		c.Footer.Timezone = def.Footer.Timezone
	}
}

func (m *Messages) fill(def Messages) {
	set := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	set(&m.Created, def.Created)
	set(&m.Updated, def.Updated)
	set(&m.Deleted, def.Deleted)
	set(&m.DeleteNotFound, def.DeleteNotFound)
	set(&m.CalendarNotFound, def.CalendarNotFound)
	set(&m.EndBeforeStart, def.EndBeforeStart)
	set(&m.TimeRequired, def.TimeRequired)
	set(&m.FailurePrefix, def.FailurePrefix)
}

// Validate reports configuration that cannot work at all. It assumes
// Normalize has already run.
func (c *Config) Validate() error {
	var errs []error

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if _, err := time.LoadLocation(c.Footer.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("footer.timezone %q: %w", c.Footer.Timezone, err))
	}
	if err := c.Layout.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}

	switch c.RowStore {
	case RowStoreSheets:
		if c.Sheets.SpreadsheetID == "" {
			errs = append(errs, errors.New("sheets.spreadsheet_id is required for the sheets row store"))
		}
	case RowStoreCSV:
		if c.CSV.Path == "" {
			errs = append(errs, errors.New("csv.path is required for the csv row store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown row_store %q", c.RowStore))
	}

	switch c.CalendarBackend {
	case BackendGoogle, BackendICS:
	default:
		errs = append(errs, fmt.Errorf("unknown calendar_backend %q", c.CalendarBackend))
	}

	labels := map[string]string{}
	for name, v := range map[string]string{
		"skip":             c.Labels.Skip,
		"create_or_update": c.Labels.CreateOrUpdate,
		"delete":           c.Labels.Delete,
	} {
		if other, dup := labels[v]; dup {
			errs = append(errs, fmt.Errorf("labels.%s and labels.%s share the value %q", name, other, v))
			continue
		}
		labels[v] = name
	}

	return errors.Join(errs...)
}

// Location returns the parsed row timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// LoadEnv reads .env style files into the process environment. Missing
// files are ignored; variables already set are not overwritten.
func LoadEnv(files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// ApplyEnv overrides file values with SHEETCAL_* environment variables.
func (c *Config) ApplyEnv() {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("SHEETCAL_TIMEZONE", &c.Timezone)
	str("SHEETCAL_LOG_LEVEL", &c.LogLevel)
	str("SHEETCAL_LISTEN", &c.Listen)
	str("SHEETCAL_ROW_STORE", &c.RowStore)
	str("SHEETCAL_CALENDAR_BACKEND", &c.CalendarBackend)
	str("SHEETCAL_SPREADSHEET_ID", &c.Sheets.SpreadsheetID)
	str("SHEETCAL_SHEET_NAME", &c.Sheets.SheetName)
	str("SHEETCAL_GOOGLE_CREDENTIALS", &c.Google.CredentialsFile)
	str("SHEETCAL_GOOGLE_TOKEN", &c.Google.TokenFile)
	str("SHEETCAL_CSV_PATH", &c.CSV.Path)
	str("SHEETCAL_ICS_DIR", &c.ICS.Dir)
	str("SHEETCAL_JOURNAL", &c.Journal.Path)

	if v := os.Getenv("SHEETCAL_FIRST_ROW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sheets.FirstRow = n
		}
	}

	user, pass := os.Getenv("SHEETCAL_BASIC_AUTH_USER"), os.Getenv("SHEETCAL_BASIC_AUTH_PASSWORD")
	if user != "" && pass != "" {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - If the file exists, YAML is decoded over the defaults so that omitted
//     sections keep their default values.
//   - Environment overrides are applied, then the result is normalized and
//     validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, ".sheetcal-config-*.tmp")
}

// WriteFileAtomic writes data next to path under a temp name and renames it
// into place with 0600 permissions.
func WriteFileAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
