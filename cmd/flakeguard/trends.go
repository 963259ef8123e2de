package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var trendsOutput string

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show per-test failure trends",
	Long: `Trends fits a least-squares slope to each test's recent failure
history and reports whether the test is improving, worsening, or
stable over the configured window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, _, cleanup, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		trends, err := eng.Trends(ctx, time.Now().UTC())
		if err != nil {
			return err
		}

		switch trendsOutput {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			return enc.Encode(trends)
		case "table":
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Test", "Runs", "Fail Rate", "Slope/Day", "Trend"})

			for i := range trends {
				tr := &trends[i]

				t.AppendRow(table.Row{
					tr.TestID,
					tr.TotalRuns,
					fmt.Sprintf("%.2f", tr.FailRate),
					fmt.Sprintf("%+.4f", tr.Slope),
					tr.Trend,
				})
			}

			t.SetStyle(table.StyleLight)
			t.Render()

			return nil
		default:
			return fmt.Errorf("unknown output format %q (want table or json)", trendsOutput)
		}
	},
}

func init() {
	trendsCmd.Flags().StringVarP(&trendsOutput, "output", "o", "table",
		"output format (table, json)")

	rootCmd.AddCommand(trendsCmd)
}
