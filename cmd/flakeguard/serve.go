package main

import (
	"os/signal"
	"syscall"

	"github.com/ethpandaops/flakeguard/pkg/api"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the read-only HTTP API server",
	Long: `Serve exposes the detection engine over HTTP. Every request
recomputes from stored results, so newly ingested runs are visible
immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(
			cmd.Context(), syscall.SIGINT, syscall.SIGTERM,
		)
		defer stop()

		eng, cfg, cleanup, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := api.NewServer(log, cfg, eng)

		if err := srv.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		log.Info("Shutting down")

		return srv.Stop()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
