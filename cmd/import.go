package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/suncrest-solar/leadscout/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <leads.csv>",
	Short: "Merge a lead CSV file into the canonical store",
	Long:  "Reads a flat lead table and folds each row into the store through identity resolution, so a secondary export merges instead of duplicating. Records are re-scored after the merge.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close()

		records, err := store.ReadCSV(f)
		if err != nil {
			return err
		}

		summary, err := env.Pipeline.Import(ctx, records)
		if err != nil {
			return err
		}

		cmd.Printf("imported %d rows: %d created, %d merged into existing leads, %d failed\n",
			summary.Records, summary.Created, summary.Merged, summary.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
