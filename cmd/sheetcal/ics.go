package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sheetcal/internal/config"
	"sheetcal/internal/ics"
)

var icsCmd = &cobra.Command{
	Use:   "ics",
	Short: "Manage calendars of the local ICS backend",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if conf.CalendarBackend != config.BackendICS {
			return errors.New("calendar_backend is not ics")
		}
		return nil
	},
}

var icsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty calendar rows can name in their calendar column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := ics.New(conf.ICS.Dir, conf.ICS.DefaultCalendar)
		if err := svc.Create(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Calendar %q ready in %s\n", args[0], conf.ICS.Dir)
		return nil
	},
}

var icsEventsCmd = &cobra.Command{
	Use:   "events [name]",
	Short: "List the events of a calendar (default calendar if no name)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		svc := ics.New(conf.ICS.Dir, conf.ICS.DefaultCalendar)
		events, err := svc.Events(name)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		loc := conf.Location()
		for _, ev := range events {
			when := ev.Start.In(loc).Format("2006-01-02 15:04")
			if ev.AllDay {
				when = ev.Start.Format(time.DateOnly)
			}
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", when, ev.UID, ev.Summary, ev.Location)
		}
		return nil
	},
}

func init() {
	icsCmd.AddCommand(icsCreateCmd)
	icsCmd.AddCommand(icsEventsCmd)
	rootCmd.AddCommand(icsCmd)
}
