// Package pipeline orchestrates a full lead run: footprint ingestion,
// identity resolution, enrichment, classification, eligibility, scoring, and
// persistence. Enrichment fetches run concurrently across records; merges and
// store writes are serialized through a single writer so the read-modify-write
// invariant on sources and score holds.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suncrest-solar/leadscout/internal/classify"
	"github.com/suncrest-solar/leadscout/internal/config"
	"github.com/suncrest-solar/leadscout/internal/enrich"
	"github.com/suncrest-solar/leadscout/internal/model"
	"github.com/suncrest-solar/leadscout/internal/resilience"
	"github.com/suncrest-solar/leadscout/internal/resolver"
	"github.com/suncrest-solar/leadscout/internal/scorer"
	"github.com/suncrest-solar/leadscout/internal/store"
	"github.com/suncrest-solar/leadscout/pkg/geocode"
	"github.com/suncrest-solar/leadscout/pkg/solarapi"
)

// Pipeline wires the stages together. Any enrichment client may be nil; the
// corresponding fetch is skipped.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	resolver   *resolver.Resolver
	geocoder   geocode.Client
	business   *enrich.BusinessLookup
	solar      solarapi.Client
	classifier *classify.Classifier

	// refresh forces business lookups even for records whose profile
	// already came from the places API.
	refresh bool
}

// SetRefresh controls whether enrichment re-runs the business waterfall for
// records already carrying a places-sourced profile.
func (p *Pipeline) SetRefresh(refresh bool) { p.refresh = refresh }

// New creates a Pipeline.
func New(
	cfg *config.Config,
	st store.Store,
	geocoder geocode.Client,
	business *enrich.BusinessLookup,
	solar solarapi.Client,
) (*Pipeline, error) {
	classifier, err := classify.New()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		resolver:   resolver.New(st, cfg.Pipeline.DedupDistanceMeters),
		geocoder:   geocoder,
		business:   business,
		solar:      solar,
		classifier: classifier,
	}, nil
}

// IngestSummary reports the outcome of an ingestion pass.
type IngestSummary struct {
	Observations int
	Created      int
	Matched      int
	Failed       int
}

// Ingest resolves raw footprint observations against the store. A failing
// observation is logged and skipped; it never aborts the rest of the batch.
func (p *Pipeline) Ingest(ctx context.Context, observations []model.FootprintObservation) (*IngestSummary, error) {
	summary := &IngestSummary{Observations: len(observations)}

	for i := range observations {
		if err := ctx.Err(); err != nil {
			return summary, eris.Wrap(err, "pipeline: ingest interrupted")
		}

		_, created, err := p.resolver.Resolve(ctx, observations[i])
		if err != nil {
			summary.Failed++
			zap.L().Warn("pipeline: observation failed",
				zap.String("source_id", observations[i].SourceID),
				zap.Error(err))
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Matched++
		}
	}

	zap.L().Info("pipeline: ingest complete",
		zap.Int("observations", summary.Observations),
		zap.Int("created", summary.Created),
		zap.Int("matched", summary.Matched),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// EnrichSummary reports the outcome of an enrichment pass.
type EnrichSummary struct {
	Processed     int
	Geocoded      int
	BusinessFound int
	SolarFound    int
	Ineligible    int
	Failed        int
}

// fetchResult carries one record's enrichment fetches back to the merge loop.
// A fetch failure leaves its field nil and the record's prior data intact.
type fetchResult struct {
	location         *model.LatLng
	geocodeAttempted bool
	business         *model.BusinessProfile
	solar            *model.SolarPotential
	failed           bool
}

// Enrich runs enrichment over every eligible record in the store. Fetches run
// concurrently up to the configured limit; merging and persistence happen
// serially afterward. Ineligible records are terminal and never re-queried.
func (p *Pipeline) Enrich(ctx context.Context) (*EnrichSummary, error) {
	records, err := p.store.List(ctx, store.LeadFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list records for enrichment")
	}

	results := make([]fetchResult, len(records))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.MaxConcurrentEnrichments)
	for i := range records {
		g.Go(func() error {
			results[i] = p.fetch(gCtx, &records[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: enrichment fetch")
	}

	summary := &EnrichSummary{Processed: len(records)}
	now := time.Now().UTC()

	for i := range records {
		rec := &records[i]
		res := results[i]

		if res.failed {
			summary.Failed++
		}
		if res.geocodeAttempted {
			if enrich.MergeLocation(rec, res.location, now) && res.location != nil {
				summary.Geocoded++
			}
		}
		if enrich.MergeBusiness(rec, res.business, now) {
			summary.BusinessFound++
		}
		if enrich.MergeSolar(rec, res.solar, now) {
			summary.SolarFound++
		}

		p.finalize(rec)
		if rec.Ineligible {
			summary.Ineligible++
		}

		if err := p.store.Upsert(ctx, rec); err != nil {
			return summary, eris.Wrapf(err, "pipeline: persist record %s", rec.BuildingID)
		}
	}

	zap.L().Info("pipeline: enrichment complete",
		zap.Int("processed", summary.Processed),
		zap.Int("business_found", summary.BusinessFound),
		zap.Int("solar_found", summary.SolarFound),
		zap.Int("ineligible", summary.Ineligible),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// Rescore re-runs classification, eligibility, and scoring over the whole
// store without touching external services.
func (p *Pipeline) Rescore(ctx context.Context) (int, error) {
	records, err := p.store.List(ctx, store.LeadFilter{IncludeIneligible: true})
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: list records for rescore")
	}

	for i := range records {
		rec := &records[i]
		p.finalize(rec)
		if err := p.store.Upsert(ctx, rec); err != nil {
			return i, eris.Wrapf(err, "pipeline: persist record %s", rec.BuildingID)
		}
	}
	return len(records), nil
}

// ImportSummary reports the outcome of a lead-file import.
type ImportSummary struct {
	Records int
	Created int
	Merged  int
	Failed  int
}

// Import folds an external lead file into the store. Each incoming row is
// identity-resolved like a footprint observation, then its sub-records merge
// under the usual precedence rules and the record is re-scored.
func (p *Pipeline) Import(ctx context.Context, records []model.BuildingRecord) (*ImportSummary, error) {
	summary := &ImportSummary{Records: len(records)}
	now := time.Now().UTC()

	for i := range records {
		if err := ctx.Err(); err != nil {
			return summary, eris.Wrap(err, "pipeline: import interrupted")
		}
		in := &records[i]

		id, created, err := p.resolver.Resolve(ctx, observationFromRecord(in))
		if err != nil {
			summary.Failed++
			zap.L().Warn("pipeline: import row failed",
				zap.String("address", in.AddressRaw),
				zap.Error(err))
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Merged++
		}

		rec, err := p.store.Get(ctx, id)
		if err != nil {
			return summary, eris.Wrapf(err, "pipeline: load imported record %s", id)
		}
		enrich.MergeBusiness(rec, in.Business, now)
		enrich.MergeSolar(rec, in.Solar, now)
		if in.Geocoded && !rec.Geocoded {
			enrich.MergeLocation(rec, in.Location, now)
		}
		for _, src := range in.Sources {
			rec.AddSource(src)
		}

		p.finalize(rec)
		if err := p.store.Upsert(ctx, rec); err != nil {
			return summary, eris.Wrapf(err, "pipeline: persist record %s", rec.BuildingID)
		}
	}

	zap.L().Info("pipeline: import complete",
		zap.Int("records", summary.Records),
		zap.Int("created", summary.Created),
		zap.Int("merged", summary.Merged),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// observationFromRecord reprojects a flat lead row onto the footprint shape so
// imports pass through the same identity resolution as first-party sources.
func observationFromRecord(rec *model.BuildingRecord) model.FootprintObservation {
	source := "import"
	if len(rec.Sources) == 1 {
		source = rec.Sources[0]
	}
	return model.FootprintObservation{
		SourceID:         rec.BuildingID,
		Source:           source,
		AddressRaw:       rec.AddressRaw,
		BuildingType:     rec.BuildingType,
		AreaSqft:         rec.FootprintAreaSqft,
		NumStories:       rec.NumStories,
		Location:         rec.Location,
		VerifiedLandmark: rec.VerifiedLandmark,
	}
}

// Run executes ingestion followed by enrichment.
func (p *Pipeline) Run(ctx context.Context, observations []model.FootprintObservation) (*IngestSummary, *EnrichSummary, error) {
	ingested, err := p.Ingest(ctx, observations)
	if err != nil {
		return ingested, nil, err
	}
	enriched, err := p.Enrich(ctx)
	return ingested, enriched, err
}

// fetch gathers a record's external enrichment. Every failure is non-fatal
// and isolated to this record.
func (p *Pipeline) fetch(ctx context.Context, rec *model.BuildingRecord) fetchResult {
	var res fetchResult
	log := zap.L().With(zap.String("building_id", rec.BuildingID))

	if p.geocoder != nil && rec.Location == nil && !rec.Geocoded && rec.AddressRaw != "" {
		hit, err := resilience.DoVal(ctx, resilience.Policy{Service: "geocode"},
			func(ctx context.Context) (*geocode.Result, error) {
				return p.geocoder.Geocode(ctx, rec.AddressNormalized)
			})
		switch {
		case err == nil:
			res.geocodeAttempted = true
			res.location = &model.LatLng{Lat: hit.Lat, Lng: hit.Lng}
		case eris.Is(err, geocode.ErrNoResult):
			// A definitive miss is remembered; transient failures are not, so
			// the next run retries them.
			res.geocodeAttempted = true
		default:
			res.failed = true
			log.Warn("pipeline: geocode failed", zap.Error(err))
		}
	}

	loc := rec.Location
	if loc == nil && res.location != nil {
		loc = res.location
	}

	if p.business != nil && (p.refresh || !rec.HasSource(enrich.SourceBusiness)) {
		scratch := *rec
		scratch.Location = loc
		profile, err := resilience.DoVal(ctx, resilience.Policy{Service: "places"},
			func(ctx context.Context) (*model.BusinessProfile, error) {
				return p.business.Find(ctx, &scratch)
			})
		if err != nil {
			res.failed = true
			log.Warn("pipeline: business lookup failed", zap.Error(err))
		} else {
			res.business = profile
		}
	}

	if p.solar != nil && loc != nil {
		insights, err := resilience.DoVal(ctx, resilience.Policy{Service: "solar"},
			func(ctx context.Context) (*solarapi.BuildingInsights, error) {
				return p.solar.FindClosest(ctx, loc.Lat, loc.Lng)
			})
		switch {
		case err == nil:
			res.solar = enrich.SolarFromInsights(insights)
		case eris.Is(err, solarapi.ErrNoData):
			// No coverage; leave the sub-record absent.
		default:
			res.failed = true
			log.Warn("pipeline: solar lookup failed", zap.Error(err))
		}
	}

	return res
}

// finalize applies the post-merge stages in order: classification first, then
// eligibility (the floor exemption depends on the bucket), then scoring.
func (p *Pipeline) finalize(rec *model.BuildingRecord) {
	rec.ICPBucket = p.classifier.Classify(rec)
	rec.Ineligible = !classify.Eligible(rec, p.cfg.Pipeline.MinRoofAreaSqft)
	scorer.Apply(rec, p.classifier)
}
