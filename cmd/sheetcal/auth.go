package main

import (
	"github.com/spf13/cobra"

	"sheetcal/internal/app"
	"sheetcal/internal/googleauth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage external service authorization",
}

var googleAuthCmd = &cobra.Command{
	Use:   "google",
	Short: "Authorize Google Sheets and Calendar access",
	Long: `Starts the OAuth flow for the Sheets and Calendar scopes and saves the
token to google.token_file. Delete an old token first to change scopes.`,
	// The config may be incomplete before the first authorization, so only
	// the google section has to be usable.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if cfg == nil {
			return err
		}
		conf = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		oauthCfg, err := googleauth.LoadConfig(conf.Google.CredentialsFile, app.GoogleScopes()...)
		if err != nil {
			return err
		}
		_, err = googleauth.Authorize(cmd.Context(), oauthCfg, conf.Google.TokenFile, cmd.InOrStdin(), cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(googleAuthCmd)
}
