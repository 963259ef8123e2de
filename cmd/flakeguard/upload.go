package main

import (
	"fmt"
	"os"

	"github.com/ethpandaops/flakeguard/pkg/upload"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <dir>",
	Short: "Upload a report directory to S3-compatible storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if cfg.Upload.S3 == nil || !cfg.Upload.S3.Enabled {
			return fmt.Errorf("s3 upload is not enabled in the configuration")
		}

		dir := args[0]

		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("stat %s: %w", dir, err)
		}

		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}

		uploader, err := upload.NewS3Uploader(log, cfg.Upload.S3)
		if err != nil {
			return fmt.Errorf("creating uploader: %w", err)
		}

		if err := uploader.Preflight(ctx); err != nil {
			return fmt.Errorf("preflight check failed: %w", err)
		}

		return uploader.Upload(ctx, dir)
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
