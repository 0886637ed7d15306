package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the fields a command mode actually uses. Commands that
// never touch an API should not fail on its missing key.
func (c *Config) Validate(mode string) error {
	var problems []string

	common := func() {
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Pipeline.MinRoofAreaSqft < 0 {
			problems = append(problems, "pipeline.min_roof_area_sqft must be >= 0")
		}
		if c.Pipeline.DedupDistanceMeters <= 0 {
			problems = append(problems, "pipeline.dedup_distance_meters must be > 0")
		}
	}

	switch mode {
	case "ingest":
		common()
		if c.Overpass.BaseURL == "" {
			problems = append(problems, "overpass.base_url is required")
		}
	case "enrich":
		common()
		if c.Places.Key == "" {
			problems = append(problems, "places.key is required")
		}
		if c.Solar.Key == "" {
			problems = append(problems, "solar.key is required")
		}
		if c.Pipeline.MaxConcurrentEnrichments < 1 || c.Pipeline.MaxConcurrentEnrichments > 50 {
			problems = append(problems, "pipeline.max_concurrent_enrichments must be between 1 and 50")
		}
	case "discover":
		common()
		if c.Places.Key == "" {
			problems = append(problems, "places.key is required")
		}
		if c.Discovery.DatabaseURL == "" {
			problems = append(problems, "discovery.database_url is required")
		}
		if c.Discovery.StalenessDays < 1 {
			problems = append(problems, "discovery.staleness_days must be >= 1")
		}
		if c.Discovery.CellKM <= 0 {
			problems = append(problems, "discovery.cell_km must be > 0")
		}
	case "serve":
		common()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "store":
		common()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}
