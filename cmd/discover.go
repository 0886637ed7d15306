package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suncrest-solar/leadscout/internal/discovery"
	"github.com/suncrest-solar/leadscout/internal/geoutil"
	"github.com/suncrest-solar/leadscout/internal/model"
	"github.com/suncrest-solar/leadscout/pkg/places"
)

var (
	discoverBBox     string
	discoverCenter   string
	discoverRadiusKM float64
	discoverTerms    []string
	discoverCellKM   float64
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Sweep an area for businesses by search term",
	Long:  "Tiles the area into cells and runs each search term against the business API per cell. The area is a bounding box or a center point with a radius. Cells queried within the staleness window are skipped, so repeated sweeps only pay for new ground.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		box, err := discoverArea()
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "discover")
		if err != nil {
			return err
		}
		defer env.Close()

		staleness := time.Duration(cfg.Discovery.StalenessDays) * 24 * time.Hour
		memory, err := discovery.NewSQLiteMemory(cfg.Discovery.DatabaseURL, staleness)
		if err != nil {
			return err
		}
		defer memory.Close()

		cellKM := discoverCellKM
		if cellKM <= 0 {
			cellKM = cfg.Discovery.CellKM
		}
		cells := discovery.Grid(box, cellKM)
		zap.L().Info("discovery sweep starting",
			zap.Int("cells", len(cells)),
			zap.Strings("terms", discoverTerms))

		var queried, skipped int
		var observations []model.FootprintObservation

		for _, cell := range cells {
			for _, term := range discoverTerms {
				fp := cell.Fingerprint(term)
				ok, err := memory.ShouldQuery(ctx, cell.ID, fp)
				if err != nil {
					return err
				}
				if !ok {
					skipped++
					continue
				}

				bias := &places.Circle{
					Lat: cell.Center.Lat, Lng: cell.Center.Lng,
					RadiusM: cellKM * 1000 / 2,
				}
				hits, err := env.Places.TextSearch(ctx, term, bias)
				if err != nil {
					// One bad cell must not sink the sweep; leave it
					// unrecorded so the next run retries.
					zap.L().Warn("discovery query failed",
						zap.String("cell", cell.ID),
						zap.String("term", term),
						zap.Error(err))
					continue
				}
				queried++

				if err := memory.Record(ctx, cell.ID, fp, len(hits)); err != nil {
					return err
				}
				for i := range hits {
					observations = append(observations, placeObservation(&hits[i]))
				}
			}
		}

		summary, err := env.Pipeline.Ingest(ctx, observations)
		if err != nil {
			return eris.Wrap(err, "ingest discovered leads")
		}

		cmd.Printf("swept %d cells: %d queries issued, %d skipped as fresh, %d leads created, %d matched\n",
			len(cells), queried, skipped, summary.Created, summary.Matched)
		return nil
	},
}

// discoverArea resolves the sweep area from --bbox, or from --center plus
// --radius-km when no box is given.
func discoverArea() (geoutil.BoundingBox, error) {
	switch {
	case discoverBBox != "" && discoverCenter != "":
		return geoutil.BoundingBox{}, eris.New("--bbox and --center are mutually exclusive")
	case discoverCenter != "":
		center, err := parseLatLng(discoverCenter)
		if err != nil {
			return geoutil.BoundingBox{}, err
		}
		if discoverRadiusKM <= 0 {
			return geoutil.BoundingBox{}, eris.New("--center requires --radius-km greater than zero")
		}
		return geoutil.BoxAround(center, discoverRadiusKM*1000), nil
	case discoverBBox != "":
		return parseBBox(discoverBBox)
	default:
		return geoutil.BoundingBox{}, eris.New("either --bbox or --center is required")
	}
}

// placeObservation converts a business hit into a footprint observation. The
// physical attributes stay zero until a footprint source covers the address.
func placeObservation(hit *places.Place) model.FootprintObservation {
	obs := model.FootprintObservation{
		SourceID:   "place-" + hit.ID,
		Source:     "discovery",
		Name:       hit.DisplayName.Text,
		AddressRaw: hit.FormattedAddress,
		TypeTags:   hit.Types,
	}
	if hit.Location != nil {
		obs.Location = &model.LatLng{Lat: hit.Location.Latitude, Lng: hit.Location.Longitude}
	}
	return obs
}

func init() {
	discoverCmd.Flags().StringVar(&discoverBBox, "bbox", "", "bounding box as south,west,north,east")
	discoverCmd.Flags().StringVar(&discoverCenter, "center", "", "sweep center as lat,lng (alternative to --bbox)")
	discoverCmd.Flags().Float64Var(&discoverRadiusKM, "radius-km", 0, "sweep radius in km around --center")
	discoverCmd.Flags().StringSliceVar(&discoverTerms, "terms",
		[]string{"manufacturing", "warehouse", "distribution center", "machine shop", "cold storage"},
		"search terms to sweep per cell")
	discoverCmd.Flags().Float64Var(&discoverCellKM, "cell-km", 0, "grid cell size in km (default from config)")
	rootCmd.AddCommand(discoverCmd)
}
