package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suncrest-solar/leadscout/internal/store"
)

var (
	exportOut        string
	exportXLSX       string
	exportTopN       int
	exportMinScore   int
	exportBucket     string
	exportIneligible bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the lead table to CSV, optionally with a top-leads workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		records, err := st.List(ctx, store.LeadFilter{
			MinScore:          exportMinScore,
			Bucket:            exportBucket,
			IncludeIneligible: exportIneligible,
		})
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", exportOut)
		}
		defer f.Close()

		if err := store.WriteCSV(f, records); err != nil {
			return err
		}
		zap.L().Info("lead table exported",
			zap.String("path", exportOut),
			zap.Int("records", len(records)))

		if exportXLSX != "" {
			top := records
			if exportTopN > 0 && len(top) > exportTopN {
				top = top[:exportTopN]
			}
			if err := store.WriteTopLeadsXLSX(exportXLSX, top); err != nil {
				return err
			}
			zap.L().Info("top leads workbook written",
				zap.String("path", exportXLSX),
				zap.Int("records", len(top)))
		}

		cmd.Printf("exported %d leads to %s\n", len(records), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "leads.csv", "CSV output path")
	exportCmd.Flags().StringVar(&exportXLSX, "top-xlsx", "", "also write a top-leads xlsx workbook to this path")
	exportCmd.Flags().IntVar(&exportTopN, "top", 50, "number of leads in the xlsx workbook")
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 0, "minimum score to export")
	exportCmd.Flags().StringVar(&exportBucket, "bucket", "", "only export this ICP bucket")
	exportCmd.Flags().BoolVar(&exportIneligible, "include-ineligible", false, "include ineligible records")
	rootCmd.AddCommand(exportCmd)
}
