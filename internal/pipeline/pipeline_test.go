package pipeline

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suncrest-solar/leadscout/internal/config"
	"github.com/suncrest-solar/leadscout/internal/enrich"
	"github.com/suncrest-solar/leadscout/internal/model"
	"github.com/suncrest-solar/leadscout/internal/store"
	"github.com/suncrest-solar/leadscout/pkg/geocode"
	"github.com/suncrest-solar/leadscout/pkg/places"
	"github.com/suncrest-solar/leadscout/pkg/solarapi"
)

// ---- fakes ----

type fakeGeocoder struct {
	results map[string]*geocode.Result
	err     error
	calls   atomic.Int64
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (*geocode.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[address]; ok {
		return r, nil
	}
	return nil, geocode.ErrNoResult
}

type fakePlaces struct {
	textHits   []places.Place
	nearbyHits []places.Place
	details    map[string]*places.Place
	err        error
	calls      atomic.Int64
}

func (f *fakePlaces) TextSearch(_ context.Context, _ string, _ *places.Circle) ([]places.Place, error) {
	f.calls.Add(1)
	return f.textHits, f.err
}

func (f *fakePlaces) NearbySearch(_ context.Context, _ places.Circle) ([]places.Place, error) {
	f.calls.Add(1)
	return f.nearbyHits, f.err
}

func (f *fakePlaces) Details(_ context.Context, id string) (*places.Place, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.details[id]; ok {
		return p, nil
	}
	return &places.Place{ID: id}, nil
}

type fakeSolar struct {
	insights *solarapi.BuildingInsights
	err      error
	calls    atomic.Int64
}

func (f *fakeSolar) FindClosest(_ context.Context, _, _ float64) (*solarapi.BuildingInsights, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.insights, nil
}

// ---- helpers ----

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline.MinRoofAreaSqft = 3000
	cfg.Pipeline.DedupDistanceMeters = 20
	cfg.Pipeline.MaxConcurrentEnrichments = 4
	return cfg
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testPipeline(t *testing.T, st store.Store, geo geocode.Client, pl places.Client, sol solarapi.Client) *Pipeline {
	t.Helper()
	var lookup *enrich.BusinessLookup
	if pl != nil {
		lookup = enrich.NewBusinessLookup(pl)
	}
	p, err := New(testConfig(), st, geo, lookup, sol)
	require.NoError(t, err)
	return p
}

func warehouseObs() model.FootprintObservation {
	return model.FootprintObservation{
		SourceID:     "osm-way-101",
		Source:       "osm",
		AddressRaw:   "901 Freight Rd, Sheboygan, WI 53081",
		BuildingType: "warehouse",
		AreaSqft:     100000,
		NumStories:   1,
		Location:     &model.LatLng{Lat: 43.7508, Lng: -87.7145},
	}
}

func operationalPlace() places.Place {
	return places.Place{
		ID:              "place-1",
		DisplayName:     places.DisplayName{Text: "Lakeside Distribution Co"},
		Rating:          4.4,
		UserRatingCount: 58,
		BusinessStatus:  "OPERATIONAL",
		Types:           []string{"warehouse", "storage"},
	}
}

func viableInsights() *solarapi.BuildingInsights {
	return &solarapi.BuildingInsights{
		SolarPotential: solarapi.SolarPotential{
			MaxArrayPanelsCount:     680,
			MaxArrayAreaMeters2:     1320.5,
			MaxSunshineHoursPerYear: 1490,
			WholeRoofStats:          solarapi.RoofStats{AreaMeters2: 2100},
			SolarPanelConfigs: []solarapi.SolarPanelConfig{
				{PanelsCount: 4, YearlyEnergyDcKwh: 1400},
				{PanelsCount: 680, YearlyEnergyDcKwh: 270000},
			},
			FinancialAnalyses: []solarapi.FinancialAnalysis{
				{
					DefaultBill:       true,
					FinanciallyViable: true,
					MonthlyBill:       solarapi.Money{Units: "950"},
					CashPurchaseSavings: &solarapi.CashPurchaseSavings{
						PaybackYears: 6.2,
					},
				},
			},
		},
	}
}

// ---- tests ----

func TestRun_FullPipeline(t *testing.T) {
	st := testStore(t)
	pl := &fakePlaces{
		textHits: []places.Place{operationalPlace()},
		details:  map[string]*places.Place{"place-1": func() *places.Place { p := operationalPlace(); return &p }()},
	}
	sol := &fakeSolar{insights: viableInsights()}
	p := testPipeline(t, st, &fakeGeocoder{}, pl, sol)

	ingested, enriched, err := p.Run(context.Background(), []model.FootprintObservation{warehouseObs()})
	require.NoError(t, err)
	assert.Equal(t, 1, ingested.Created)
	assert.Equal(t, 1, enriched.BusinessFound)
	assert.Equal(t, 1, enriched.SolarFound)
	assert.Equal(t, 0, enriched.Ineligible)

	records, err := st.List(context.Background(), store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Lakeside Distribution Co", rec.Business.Name)
	assert.Equal(t, 680, rec.Solar.MaxPanelCount)
	assert.True(t, rec.Solar.FinanciallyViable)
	assert.Equal(t, model.BucketWarehousing, rec.ICPBucket)
	assert.False(t, rec.Ineligible)

	// Solar 40, ICP 25, financial 20, type 10, business 10.
	assert.Equal(t, 100, rec.Score)
	assert.ElementsMatch(t, []string{"osm", "places", "solar"}, rec.Sources)
}

func TestIngest_Idempotent(t *testing.T) {
	st := testStore(t)
	p := testPipeline(t, st, nil, nil, nil)
	ctx := context.Background()

	obs := []model.FootprintObservation{warehouseObs()}
	first, err := p.Ingest(ctx, obs)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := p.Ingest(ctx, obs)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Matched)

	n, err := st.Count(ctx, store.LeadFilter{IncludeIneligible: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_IdempotentOnUnchangedInputs(t *testing.T) {
	st := testStore(t)
	pl := &fakePlaces{
		textHits: []places.Place{operationalPlace()},
		details:  map[string]*places.Place{"place-1": func() *places.Place { p := operationalPlace(); return &p }()},
	}
	sol := &fakeSolar{insights: viableInsights()}
	p := testPipeline(t, st, &fakeGeocoder{}, pl, sol)
	ctx := context.Background()

	obs := []model.FootprintObservation{warehouseObs()}
	_, _, err := p.Run(ctx, obs)
	require.NoError(t, err)
	before, err := st.List(ctx, store.LeadFilter{})
	require.NoError(t, err)

	_, _, err = p.Run(ctx, obs)
	require.NoError(t, err)
	after, err := st.List(ctx, store.LeadFilter{})
	require.NoError(t, err)

	require.Len(t, after, 1)
	b, a := before[0], after[0]
	b.LastUpdated = a.LastUpdated
	assert.Equal(t, b, a)
}

func TestEnrich_GeocodeMissRemembered(t *testing.T) {
	st := testStore(t)
	geo := &fakeGeocoder{}
	p := testPipeline(t, st, geo, nil, nil)
	ctx := context.Background()

	obs := warehouseObs()
	obs.Location = nil
	_, err := p.Ingest(ctx, []model.FootprintObservation{obs})
	require.NoError(t, err)

	_, err = p.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), geo.calls.Load())

	// The miss was recorded; the next run does not re-query.
	_, err = p.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), geo.calls.Load())

	records, err := st.List(ctx, store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Geocoded)
	assert.Nil(t, records[0].Location)
}

func TestEnrich_GeocodeErrorRetriedNextRun(t *testing.T) {
	st := testStore(t)
	geo := &fakeGeocoder{err: eris.New("geocode: upstream timeout")}
	p := testPipeline(t, st, geo, nil, nil)
	ctx := context.Background()

	obs := warehouseObs()
	obs.Location = nil
	_, err := p.Ingest(ctx, []model.FootprintObservation{obs})
	require.NoError(t, err)

	summary, err := p.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	records, err := st.List(ctx, store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Geocoded)

	// Transient failure was not remembered, so the next run retries.
	_, err = p.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), geo.calls.Load())
}

func TestEnrich_FailureIsolation(t *testing.T) {
	st := testStore(t)
	sol := &fakeSolar{err: eris.New("solarapi: status 500")}
	pl := &fakePlaces{
		textHits: []places.Place{operationalPlace()},
		details:  map[string]*places.Place{"place-1": func() *places.Place { p := operationalPlace(); return &p }()},
	}
	p := testPipeline(t, st, nil, pl, sol)
	ctx := context.Background()

	_, err := p.Ingest(ctx, []model.FootprintObservation{warehouseObs()})
	require.NoError(t, err)

	summary, err := p.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.BusinessFound)

	// The solar failure did not block the business merge.
	records, err := st.List(ctx, store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotNil(t, records[0].Business)
	assert.Nil(t, records[0].Solar)
}

func TestEnrich_BusinessNotRefetchedUnlessRefresh(t *testing.T) {
	st := testStore(t)
	pl := &fakePlaces{
		textHits: []places.Place{operationalPlace()},
		details:  map[string]*places.Place{"place-1": func() *places.Place { p := operationalPlace(); return &p }()},
	}
	p := testPipeline(t, st, nil, pl, nil)
	ctx := context.Background()

	_, err := p.Ingest(ctx, []model.FootprintObservation{warehouseObs()})
	require.NoError(t, err)

	_, err = p.Enrich(ctx)
	require.NoError(t, err)
	callsAfterFirst := pl.calls.Load()
	assert.Positive(t, callsAfterFirst)

	// The stored profile is places-sourced; the next run skips the waterfall.
	_, err = p.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, pl.calls.Load())

	p.SetRefresh(true)
	_, err = p.Enrich(ctx)
	require.NoError(t, err)
	assert.Greater(t, pl.calls.Load(), callsAfterFirst)
}

func TestEnrich_EmptyPayloadKeepsExisting(t *testing.T) {
	st := testStore(t)
	pl := &fakePlaces{} // no hits anywhere
	p := testPipeline(t, st, nil, pl, nil)
	ctx := context.Background()

	_, err := p.Ingest(ctx, []model.FootprintObservation{warehouseObs()})
	require.NoError(t, err)

	// Seed an existing profile, then re-enrich against an empty source.
	records, err := st.List(ctx, store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	records[0].Business = &model.BusinessProfile{Name: "Prior Tenant LLC"}
	require.NoError(t, st.Upsert(ctx, &records[0]))

	summary, err := p.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.BusinessFound)

	got, err := st.Get(ctx, records[0].BuildingID)
	require.NoError(t, err)
	require.NotNil(t, got.Business)
	assert.Equal(t, "Prior Tenant LLC", got.Business.Name)
}

func TestEnrich_IneligibleRecordsNeverRequeried(t *testing.T) {
	st := testStore(t)
	sol := &fakeSolar{err: solarapi.ErrNoData}
	p := testPipeline(t, st, nil, nil, sol)
	ctx := context.Background()

	obs := warehouseObs()
	obs.BuildingType = "office"
	obs.AreaSqft = 2000
	_, err := p.Ingest(ctx, []model.FootprintObservation{obs})
	require.NoError(t, err)

	// First pass marks the small office ineligible.
	summary, err := p.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Ineligible)
	callsAfterFirst := sol.calls.Load()

	// Second pass skips it entirely.
	summary, err = p.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, callsAfterFirst, sol.calls.Load())
}

func TestRescore_IncludesIneligible(t *testing.T) {
	st := testStore(t)
	p := testPipeline(t, st, nil, nil, nil)
	ctx := context.Background()

	small := warehouseObs()
	small.SourceID = "osm-way-102"
	small.AddressRaw = "12 Side St, Sheboygan, WI"
	small.BuildingType = "office"
	small.AreaSqft = 2000
	small.Location = &model.LatLng{Lat: 43.76, Lng: -87.71}

	_, err := p.Ingest(ctx, []model.FootprintObservation{warehouseObs(), small})
	require.NoError(t, err)
	_, err = p.Enrich(ctx)
	require.NoError(t, err)

	n, err := p.Rescore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := st.List(ctx, store.LeadFilter{IncludeIneligible: true})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.NotEmpty(t, rec.ScoreBreakdown, "building %s", rec.BuildingID)
	}
}

func TestImport_MergesByIdentity(t *testing.T) {
	st := testStore(t)
	p := testPipeline(t, st, nil, nil, nil)
	ctx := context.Background()

	_, err := p.Ingest(ctx, []model.FootprintObservation{warehouseObs()})
	require.NoError(t, err)

	// A secondary export covering the same building plus a new one.
	incoming := []model.BuildingRecord{
		{
			BuildingID:        "ext-1",
			AddressRaw:        "901 Freight Road, Sheboygan, WI 53081",
			AddressNormalized: "ignored, recomputed on import",
			Location:          &model.LatLng{Lat: 43.7508, Lng: -87.7145},
			BuildingType:      "warehouse",
			Business:          &model.BusinessProfile{PlaceID: "pl-9", Name: "Freight Road Logistics", OperatingStatus: "OPERATIONAL", Rating: 4.2},
			Sources:           []string{"crm"},
		},
		{
			BuildingID:        "ext-2",
			AddressRaw:        "18 Kiln Court, Sheboygan, WI 53081",
			BuildingType:      "industrial",
			FootprintAreaSqft: 50000,
			NumStories:        1,
		},
	}

	summary, err := p.Import(ctx, incoming)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Merged)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 0, summary.Failed)

	n, err := st.Count(ctx, store.LeadFilter{IncludeIneligible: true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := st.List(ctx, store.LeadFilter{})
	require.NoError(t, err)
	for _, rec := range records {
		if rec.AddressRaw != warehouseObs().AddressRaw {
			continue
		}
		require.NotNil(t, rec.Business)
		assert.Equal(t, "Freight Road Logistics", rec.Business.Name)
		assert.True(t, rec.HasSource("crm"))
		assert.True(t, rec.HasSource("osm"))
		assert.Positive(t, rec.Score)
	}
}

func TestImport_Idempotent(t *testing.T) {
	st := testStore(t)
	p := testPipeline(t, st, nil, nil, nil)
	ctx := context.Background()

	incoming := []model.BuildingRecord{{
		BuildingID:        "ext-3",
		AddressRaw:        "7 Dock St, Sheboygan, WI",
		BuildingType:      "warehouse",
		FootprintAreaSqft: 40000,
		NumStories:        1,
	}}

	first, err := p.Import(ctx, incoming)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := p.Import(ctx, incoming)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Merged)

	n, err := st.Count(ctx, store.LeadFilter{IncludeIneligible: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnrich_RoundTripScoreStable(t *testing.T) {
	st := testStore(t)
	sol := &fakeSolar{insights: viableInsights()}
	p := testPipeline(t, st, nil, nil, sol)
	ctx := context.Background()

	_, err := p.Ingest(ctx, []model.FootprintObservation{warehouseObs()})
	require.NoError(t, err)
	_, err = p.Enrich(ctx)
	require.NoError(t, err)

	records, err := st.List(ctx, store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	persisted := records[0].Score

	// Reload and rescore: the stored score was already current.
	n, err := p.Rescore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.Get(ctx, records[0].BuildingID)
	require.NoError(t, err)
	assert.Equal(t, persisted, got.Score)
}
