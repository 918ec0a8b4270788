package main

import (
	"os"

	"github.com/spf13/cobra"

	"sheetcal/internal/app"
	"sheetcal/internal/config"
	appLog "sheetcal/internal/log"
)

const version = "0.1.0"

var (
	configPath string
	envFile    string
	verbose    bool

	// conf is loaded by the root PersistentPreRunE.
	conf *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sheetcal",
	Short: "Apply spreadsheet rows to a calendar",
	Long: `sheetcal reads calendar change requests from a spreadsheet (or CSV file),
creates, updates or deletes the matching events and writes the result back
into each row.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		conf = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sheetcal.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Optional .env file with SHEETCAL_* overrides")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadConfig reads env files and the YAML config and sets the log level.
// A config that parsed but failed validation is returned with the error.
func loadConfig() (*config.Config, error) {
	config.LoadEnv(envFile)
	cfg, err := config.Load(configPath)
	if cfg != nil {
		setLogLevel(cfg.LogLevel)
	}
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", configPath)
		return cfg, err
	}
	appLog.Debug("effective config",
		"config_path", configPath,
		"row_store", cfg.RowStore,
		"calendar_backend", cfg.CalendarBackend,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"listen", cfg.Listen,
	)
	return cfg, nil
}

func setLogLevel(level string) {
	appLog.SetOutput(os.Stderr)
	if verbose {
		appLog.SetLevel(appLog.LevelDebug)
		return
	}
	appLog.SetLevel(appLog.ParseLevel(level))
}

// openApp builds the application from the loaded config.
func openApp(cmd *cobra.Command) (*app.App, error) {
	return app.New(cmd.Context(), conf)
}
