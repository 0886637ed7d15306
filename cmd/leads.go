package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/suncrest-solar/leadscout/internal/store"
)

var (
	leadsMinScore   int
	leadsBucket     string
	leadsLimit      int
	leadsIneligible bool
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List stored leads, best first",
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
			MinScore:          leadsMinScore,
			Bucket:            leadsBucket,
			IncludeIneligible: leadsIneligible,
			Limit:             leadsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tBUCKET\tBUSINESS\tADDRESS")
		for i := range records {
			rec := &records[i]
			name := ""
			if rec.Business != nil {
				name = rec.Business.Name
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", rec.Score, rec.ICPBucket, name, rec.AddressNormalized)
		}
		return w.Flush()
	},
}

func init() {
	leadsCmd.Flags().IntVar(&leadsMinScore, "min-score", 0, "minimum score")
	leadsCmd.Flags().StringVar(&leadsBucket, "bucket", "", "only this ICP bucket")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 25, "maximum rows")
	leadsCmd.Flags().BoolVar(&leadsIneligible, "include-ineligible", false, "include ineligible records")
	rootCmd.AddCommand(leadsCmd)
}
