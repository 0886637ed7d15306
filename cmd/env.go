package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/suncrest-solar/leadscout/internal/enrich"
	"github.com/suncrest-solar/leadscout/internal/geoutil"
	"github.com/suncrest-solar/leadscout/internal/model"
	"github.com/suncrest-solar/leadscout/internal/pipeline"
	"github.com/suncrest-solar/leadscout/internal/store"
	"github.com/suncrest-solar/leadscout/pkg/geocode"
	"github.com/suncrest-solar/leadscout/pkg/places"
	"github.com/suncrest-solar/leadscout/pkg/solarapi"
)

// pipelineEnv holds the initialized store, clients, and pipeline shared by
// the ingest/enrich/discover commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Places   places.Client // nil when no key is configured
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leads.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline validates config for the given mode and builds the pipeline
// with every client the config has credentials for. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	geocoder := geocode.NewClient(cfg.Geocoder.UserAgent,
		geocode.WithBaseURL(cfg.Geocoder.BaseURL))

	var placesClient places.Client
	var lookup *enrich.BusinessLookup
	if cfg.Places.Key != "" {
		placesClient = places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))
		lookup = enrich.NewBusinessLookup(placesClient)
	} else {
		zap.L().Debug("LEADSCOUT_PLACES_KEY not set, business enrichment disabled")
	}

	var solarClient solarapi.Client
	if cfg.Solar.Key != "" {
		solarClient = solarapi.NewClient(cfg.Solar.Key, solarapi.WithBaseURL(cfg.Solar.BaseURL))
	} else {
		zap.L().Debug("LEADSCOUT_SOLAR_KEY not set, solar enrichment disabled")
	}

	p, err := pipeline.New(cfg, st, geocoder, lookup, solarClient)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &pipelineEnv{Store: st, Pipeline: p, Places: placesClient}, nil
}

// parseBBox parses "south,west,north,east" in degrees.
func parseBBox(raw string) (geoutil.BoundingBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return geoutil.BoundingBox{}, eris.Errorf("bbox must be south,west,north,east, got %q", raw)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geoutil.BoundingBox{}, eris.Wrapf(err, "bbox component %q", p)
		}
		vals[i] = v
	}
	box := geoutil.BoundingBox{South: vals[0], West: vals[1], North: vals[2], East: vals[3]}
	if box.South >= box.North || box.West >= box.East {
		return geoutil.BoundingBox{}, eris.Errorf("bbox %q is empty or inverted", raw)
	}
	return box, nil
}

// parseLatLng parses "lat,lng" in degrees.
func parseLatLng(raw string) (model.LatLng, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return model.LatLng{}, eris.Errorf("center must be lat,lng, got %q", raw)
	}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if latErr != nil || lngErr != nil {
		return model.LatLng{}, eris.Errorf("center must be lat,lng, got %q", raw)
	}
	return model.LatLng{Lat: lat, Lng: lng}, nil
}
