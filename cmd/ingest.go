package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suncrest-solar/leadscout/internal/footprint"
	"github.com/suncrest-solar/leadscout/internal/model"
	"github.com/suncrest-solar/leadscout/pkg/overpass"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load building footprints into the lead store",
}

var (
	osmBBox   string
	osmFilter string
	osmCity   string
	osmState  string
)

var ingestOSMCmd = &cobra.Command{
	Use:   "osm",
	Short: "Fetch building footprints from Overpass for a bounding box",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		box, err := parseBBox(osmBBox)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		client := overpass.NewClient(overpass.WithBaseURL(cfg.Overpass.BaseURL))
		filter := osmFilter
		if filter == "" {
			filter = cfg.Overpass.BuildingFilter
		}

		elements, err := client.Buildings(ctx, box.South, box.West, box.North, box.East, filter)
		if err != nil {
			return eris.Wrap(err, "fetch footprints")
		}
		zap.L().Info("footprints fetched", zap.Int("elements", len(elements)))

		defaults := footprint.AddressDefaults{City: osmCity, State: osmState}
		observations := make([]model.FootprintObservation, 0, len(elements))
		for _, el := range elements {
			observations = append(observations, footprint.FromElement(el, defaults))
		}

		summary, err := env.Pipeline.Ingest(ctx, observations)
		if err != nil {
			return eris.Wrap(err, "ingest footprints")
		}

		cmd.Printf("ingested %d observations: %d created, %d matched, %d failed\n",
			summary.Observations, summary.Created, summary.Matched, summary.Failed)
		return nil
	},
}

var (
	shpAddressField string
	shpNameField    string
	shpTypeField    string
	shpStoriesField string
)

var ingestShapefileCmd = &cobra.Command{
	Use:   "shapefile <path>",
	Short: "Load building footprints from a county shapefile export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		observations, err := footprint.ReadShapefile(args[0], footprint.FieldMap{
			Address:      shpAddressField,
			Name:         shpNameField,
			BuildingType: shpTypeField,
			Stories:      shpStoriesField,
		})
		if err != nil {
			return err
		}
		zap.L().Info("shapefile loaded",
			zap.String("path", args[0]),
			zap.Int("observations", len(observations)))

		summary, err := env.Pipeline.Ingest(ctx, observations)
		if err != nil {
			return eris.Wrap(err, "ingest footprints")
		}

		cmd.Printf("ingested %d observations: %d created, %d matched, %d failed\n",
			summary.Observations, summary.Created, summary.Matched, summary.Failed)
		return nil
	},
}

func init() {
	ingestOSMCmd.Flags().StringVar(&osmBBox, "bbox", "", "bounding box as south,west,north,east (required)")
	ingestOSMCmd.Flags().StringVar(&osmFilter, "filter", "", "building tag regex (default from config)")
	ingestOSMCmd.Flags().StringVar(&osmCity, "city", "", "fallback city for partial addresses")
	ingestOSMCmd.Flags().StringVar(&osmState, "state", "", "fallback state for partial addresses")
	_ = ingestOSMCmd.MarkFlagRequired("bbox")

	ingestShapefileCmd.Flags().StringVar(&shpAddressField, "address-field", "ADDRESS", "attribute column holding the address")
	ingestShapefileCmd.Flags().StringVar(&shpNameField, "name-field", "", "attribute column holding the building name")
	ingestShapefileCmd.Flags().StringVar(&shpTypeField, "type-field", "", "attribute column holding the building type")
	ingestShapefileCmd.Flags().StringVar(&shpStoriesField, "stories-field", "", "attribute column holding the story count")

	ingestCmd.AddCommand(ingestOSMCmd)
	ingestCmd.AddCommand(ingestShapefileCmd)
	rootCmd.AddCommand(ingestCmd)
}
