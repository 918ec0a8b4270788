package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"sheetcal/internal/model"
	"sheetcal/internal/reconcile"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every armed row once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.Batch.Run(cmd.Context())
		if rep != nil {
			printReport(cmd, rep)
		}
		return err
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all request rows back to their defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Batch.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Rows reset.")
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run report as JSON")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resetCmd)
}

func printReport(cmd *cobra.Command, rep *reconcile.Report) {
	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rep)
		return
	}
	for _, res := range rep.Results {
		fmt.Fprintf(out, "row %d\t%-9s\t%s\t%s\n", res.Row, res.Kind, res.Title, res.Outcome.ResultText)
	}
	fmt.Fprintf(out, "%d rows, %d skipped, %d created, %d updated, %d deleted, %d not found, %d invalid, %d failed\n",
		rep.Rows, rep.Skipped,
		rep.Counts[model.KindCreated],
		rep.Counts[model.KindUpdated],
		rep.Counts[model.KindDeleted],
		rep.Counts[model.KindNotFound],
		rep.Counts[model.KindInvalid],
		rep.Counts[model.KindFailed],
	)
	if rep.WriteErrors > 0 {
		fmt.Fprintf(out, "%d outcomes could not be written back\n", rep.WriteErrors)
	}
}
