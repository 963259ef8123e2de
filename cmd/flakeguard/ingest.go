package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ingestRunID string

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Ingest JUnit XML test reports",
	Long: `Ingest records test results from a JUnit XML report file, or from
every XML report under a directory (one run per file). Ingestion is
all-or-nothing per run: a malformed record or duplicate run ID leaves
the store untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, _, cleanup, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		path := args[0]

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		if info.IsDir() {
			if ingestRunID != "" {
				return fmt.Errorf("--run-id cannot be used with a directory")
			}

			batch, err := eng.IngestDir(ctx, path)
			if err != nil {
				return err
			}

			fmt.Printf("ingested %d file(s), skipped %d duplicate(s), %d failed, %d result(s) recorded\n",
				batch.FilesIngested, batch.FilesSkipped, batch.FilesFailed, batch.TestsRecorded)

			return nil
		}

		res, err := eng.IngestFile(ctx, path, ingestRunID)
		if err != nil {
			return err
		}

		fmt.Printf("ingested run %s: %d result(s)\n", res.RunID, res.Results)

		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestRunID, "run-id", "",
		"run identifier (defaults to the report's, or a generated one)")

	rootCmd.AddCommand(ingestCmd)
}
