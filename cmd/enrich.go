package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/suncrest-solar/leadscout/internal/store"
)

var enrichRefresh bool

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich stored leads with business and solar data, then score them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()
		env.Pipeline.SetRefresh(enrichRefresh)

		summary, err := env.Pipeline.Enrich(ctx)
		if err != nil {
			return eris.Wrap(err, "enrich leads")
		}

		cmd.Printf("enriched %d leads: %d geocoded, %d businesses, %d solar, %d ineligible, %d failed\n",
			summary.Processed, summary.Geocoded, summary.BusinessFound,
			summary.SolarFound, summary.Ineligible, summary.Failed)
		return nil
	},
}

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute classification, eligibility, and scores without external calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Pipeline.Rescore(ctx)
		if err != nil {
			return eris.Wrap(err, "rescore leads")
		}

		total, err := env.Store.Count(ctx, store.LeadFilter{IncludeIneligible: true})
		if err != nil {
			return eris.Wrap(err, "count leads")
		}

		cmd.Printf("rescored %d of %d leads\n", n, total)
		return nil
	},
}

func init() {
	enrichCmd.Flags().BoolVar(&enrichRefresh, "refresh", false,
		"re-run business lookups for leads that already have a profile")
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(rescoreCmd)
}
