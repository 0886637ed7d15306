// Package resolver decides whether an incoming footprint observation is a
// building the store already knows. Matching is deliberately precision over
// recall: a shared parking lot must not collapse two tenants into one lead.
package resolver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/suncrest-solar/leadscout/internal/address"
	"github.com/suncrest-solar/leadscout/internal/geoutil"
	"github.com/suncrest-solar/leadscout/internal/model"
	"github.com/suncrest-solar/leadscout/internal/store"
)

// Resolver matches observations against the lead store.
type Resolver struct {
	store store.Store

	// maxDistanceM is the proximity ceiling for treating two located
	// observations as the same structure.
	maxDistanceM float64
}

// New creates a Resolver. maxDistanceM at or below zero falls back to 20.
func New(s store.Store, maxDistanceM float64) *Resolver {
	if maxDistanceM <= 0 {
		maxDistanceM = 20
	}
	return &Resolver{store: s, maxDistanceM: maxDistanceM}
}

// Resolve returns the building id for an observation, creating and inserting
// a new record when nothing matches. created reports whether a record was
// allocated. Observations with neither address nor location are inserted
// rather than rejected.
func (r *Resolver) Resolve(ctx context.Context, obs model.FootprintObservation) (string, bool, error) {
	norm := address.Normalize(obs.AddressRaw)

	// Address-less observations key on their source id, the same fallback
	// newRecord persists, so re-ingesting one finds its prior record.
	key := norm.Normalized
	if key == "" {
		key = obs.SourceID
	}

	if key != "" {
		candidates, err := r.store.FindByAddress(ctx, key)
		if err != nil {
			return "", false, eris.Wrap(err, "resolver: candidate lookup")
		}

		for i := range candidates {
			if r.matches(&candidates[i], obs) {
				if err := r.refresh(ctx, &candidates[i], obs); err != nil {
					return "", false, err
				}
				return candidates[i].BuildingID, false, nil
			}
		}
	}

	rec := newRecord(obs, norm)
	if err := r.store.Upsert(ctx, rec); err != nil {
		return "", false, eris.Wrap(err, "resolver: insert record")
	}

	zap.L().Debug("allocated building record",
		zap.String("building_id", rec.BuildingID),
		zap.String("address", rec.AddressNormalized),
		zap.String("source", obs.Source))
	return rec.BuildingID, true, nil
}

// matches applies the dedup rule: normalized addresses already agree (the
// candidate came from an address lookup), so the remaining question is
// proximity. When both locations are known they must be within the threshold;
// when either is unknown, address equality alone merges.
func (r *Resolver) matches(candidate *model.BuildingRecord, obs model.FootprintObservation) bool {
	if candidate.Location == nil || obs.Location == nil {
		return true
	}
	return geoutil.Distance(*candidate.Location, *obs.Location) <= r.maxDistanceM
}

// refresh backfills physical attributes a matched record is missing. It never
// overwrites populated fields; enrichment merging owns those semantics.
func (r *Resolver) refresh(ctx context.Context, rec *model.BuildingRecord, obs model.FootprintObservation) error {
	changed := false

	if rec.Location == nil && obs.Location != nil {
		rec.Location = obs.Location
		changed = true
	}
	if rec.FootprintAreaSqft == 0 && obs.AreaSqft > 0 {
		rec.FootprintAreaSqft = obs.AreaSqft
		rec.EstimatedRoofArea = geoutil.EstimateRoofArea(obs.AreaSqft, maxStories(rec.NumStories, obs.NumStories))
		changed = true
	}
	if rec.NumStories == 0 && obs.NumStories > 0 {
		rec.NumStories = obs.NumStories
		changed = true
	}
	if (rec.BuildingType == "" || rec.BuildingType == "unknown") && obs.BuildingType != "" {
		rec.BuildingType = obs.BuildingType
		changed = true
	}
	if obs.VerifiedLandmark && !rec.VerifiedLandmark {
		rec.VerifiedLandmark = true
		changed = true
	}
	if rec.Business == nil {
		if profile := provisionalBusiness(obs); profile != nil {
			rec.Business = profile
			changed = true
		}
	}
	if !rec.HasSource(obs.Source) {
		rec.AddSource(obs.Source)
		changed = true
	}

	if !changed {
		return nil
	}
	rec.LastUpdated = time.Now().UTC()
	return eris.Wrap(r.store.Upsert(ctx, rec), "resolver: refresh record")
}

func newRecord(obs model.FootprintObservation, norm address.Normalized) *model.BuildingRecord {
	normalized := norm.Normalized
	if normalized == "" {
		normalized = obs.SourceID
	}

	rec := &model.BuildingRecord{
		BuildingID:        uuid.New().String(),
		AddressRaw:        obs.AddressRaw,
		AddressNormalized: normalized,
		Location:          obs.Location,
		BuildingType:      obs.BuildingType,
		FootprintAreaSqft: obs.AreaSqft,
		NumStories:        obs.NumStories,
		EstimatedRoofArea: geoutil.EstimateRoofArea(obs.AreaSqft, obs.NumStories),
		ICPBucket:         model.BucketGeneralCommercial,
		VerifiedLandmark:  obs.VerifiedLandmark,
		LastUpdated:       time.Now().UTC(),
	}
	if rec.BuildingType == "" {
		rec.BuildingType = "unknown"
	}
	rec.Business = provisionalBusiness(obs)
	rec.AddSource(obs.Source)
	return rec
}

// provisionalBusiness seeds a business sub-record from what the footprint
// source itself knows (an OSM name plus amenity/shop tags, or a discovery
// search hit). It feeds the classifier until the enrichment waterfall
// replaces it with a full profile.
func provisionalBusiness(obs model.FootprintObservation) *model.BusinessProfile {
	if obs.Name == "" && len(obs.TypeTags) == 0 {
		return nil
	}
	return &model.BusinessProfile{
		Name:         obs.Name,
		CategoryTags: obs.TypeTags,
	}
}

func maxStories(a, b int) int {
	if a > b {
		return a
	}
	return b
}
