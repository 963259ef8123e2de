package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statsOutput string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ingestion and detection summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, _, cleanup, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		summary, err := eng.Stats(ctx)
		if err != nil {
			return err
		}

		switch statsOutput {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			return enc.Encode(summary)
		case "table":
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendRow(table.Row{"Tests tracked", summary.TotalTests})
			t.AppendRow(table.Row{"Runs ingested", summary.TotalRuns})
			t.AppendRow(table.Row{"Results stored", summary.TotalResults})
			t.AppendRow(table.Row{"Flaky tests", summary.FlakyCount})
			t.AppendRow(table.Row{
				"Estimated flaky cost",
				fmt.Sprintf("$%.2f", summary.TotalEstimatedCostUSD),
			})
			t.SetStyle(table.StyleLight)
			t.Render()

			return nil
		default:
			return fmt.Errorf("unknown output format %q (want table or json)", statsOutput)
		}
	},
}

func init() {
	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", "table",
		"output format (table, json)")

	rootCmd.AddCommand(statsCmd)
}
