package main

import (
	"fmt"
	"time"

	"github.com/ethpandaops/flakeguard/pkg/quarantine"
	"github.com/spf13/cobra"
)

var (
	quarantineMinFlipRate float64
	quarantineMinCostUSD  float64
	quarantineSkipList    string
)

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Select tests to quarantine",
	Long: `Quarantine lists the flaky tests worth suppressing, ordered by
estimated cost descending. Optionally writes a YAML skip-list file that
CI tooling can consume.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, cfg, cleanup, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		policy := quarantine.Policy{
			MinFlipRate: cfg.Quarantine.MinFlipRate,
			MinCostUSD:  cfg.Quarantine.MinCostUSD,
		}

		if cmd.Flags().Changed("min-flip-rate") {
			policy.MinFlipRate = quarantineMinFlipRate
		}

		if cmd.Flags().Changed("min-cost-usd") {
			policy.MinCostUSD = quarantineMinCostUSD
		}

		if policy.MinFlipRate < 0 || policy.MinFlipRate > 1 {
			return fmt.Errorf("min-flip-rate must be in [0, 1], got %v", policy.MinFlipRate)
		}

		stats, err := eng.Detect(ctx)
		if err != nil {
			return err
		}

		selected := quarantine.Select(stats, policy)

		if len(selected) == 0 {
			fmt.Println("no tests selected for quarantine")
		}

		for _, id := range selected {
			fmt.Println(id)
		}

		if quarantineSkipList != "" {
			list := quarantine.BuildSkipList(stats, selected, time.Now().UTC())

			if err := quarantine.WriteSkipList(quarantineSkipList, list); err != nil {
				return fmt.Errorf("writing skip list: %w", err)
			}

			log.WithField("path", quarantineSkipList).Info("Skip list written")
		}

		return nil
	},
}

func init() {
	quarantineCmd.Flags().Float64Var(&quarantineMinFlipRate, "min-flip-rate", 0,
		"minimum flip rate for quarantine (overrides config)")
	quarantineCmd.Flags().Float64Var(&quarantineMinCostUSD, "min-cost-usd", 0,
		"minimum estimated cost in USD for quarantine (overrides config)")
	quarantineCmd.Flags().StringVar(&quarantineSkipList, "skip-list", "",
		"write a YAML skip list to this path")

	rootCmd.AddCommand(quarantineCmd)
}
