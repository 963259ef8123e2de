package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethpandaops/flakeguard/pkg/analyzer"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	detectOutput    string
	detectFlakyOnly bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect flaky tests from ingested results",
	Long: `Detect recomputes per-test statistics from all ingested results,
flags flaky tests, classifies their likely root cause, and attributes
the estimated CI cost. Output is sorted by estimated cost descending.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, _, cleanup, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := eng.Detect(ctx)
		if err != nil {
			return err
		}

		if detectFlakyOnly {
			flaky := stats[:0]

			for i := range stats {
				if stats[i].IsFlaky {
					flaky = append(flaky, stats[i])
				}
			}

			stats = flaky
		}

		switch detectOutput {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			return enc.Encode(stats)
		case "table":
			renderStatsTable(stats)

			return nil
		default:
			return fmt.Errorf("unknown output format %q (want table or json)", detectOutput)
		}
	},
}

func renderStatsTable(stats []analyzer.TestStatistics) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{
		"Test", "Runs", "Pass", "Fail", "Flips", "Flip Rate",
		"Verdict", "Classification", "Est. Cost",
	})

	for i := range stats {
		s := &stats[i]

		verdict := s.Reason
		classification := s.Classification

		if classification == "" {
			classification = "-"
		}

		t.AppendRow(table.Row{
			s.TestID,
			s.TotalRuns,
			s.PassCount,
			s.FailCount,
			s.FlipCount,
			fmt.Sprintf("%.2f", s.FlipRate),
			verdict,
			classification,
			fmt.Sprintf("$%.2f", s.EstimatedCostUSD),
		})
	}

	t.SetStyle(table.StyleLight)
	t.Render()
}

func init() {
	detectCmd.Flags().StringVarP(&detectOutput, "output", "o", "table",
		"output format (table, json)")
	detectCmd.Flags().BoolVar(&detectFlakyOnly, "flaky-only", false,
		"only show tests flagged as flaky")

	rootCmd.AddCommand(detectCmd)
}
