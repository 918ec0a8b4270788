package main

import (
	"github.com/spf13/cobra"

	appLog "sheetcal/internal/log"
	"sheetcal/internal/web"
)

var (
	watchNow   bool
	serveWatch bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process rows on the configured refresh schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if watchNow {
			if _, err := a.Batch.Run(ctx); err != nil {
				appLog.Error("initial run failed", err)
			}
		}

		c, err := a.Schedule(ctx)
		if err != nil {
			return err
		}
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("watch stopped")
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP trigger and outcome history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if serveWatch {
			c, err := a.Schedule(ctx)
			if err != nil {
				return err
			}
			defer func() { <-c.Stop().Done() }()
		}

		var history web.History
		if a.Journal != nil {
			history = a.Journal
		}
		return web.StartServer(ctx, conf, web.NewServer(conf, a.Batch, history))
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "Run once immediately before waiting for the schedule")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Also run on the refresh schedule")
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
}
