// Package enrich folds external enrichment payloads (business profiles,
// solar insights) into canonical building records.
//
// Merge policy is last-write-wins per sub-record with existence precedence:
// sub-records replace as a unit, and an absent or empty payload never clears
// a populated one. A stale partial profile is worse than a fresh complete
// one, and a failed lookup must not erase prior enrichment.
package enrich

import (
	"time"

	"github.com/suncrest-solar/leadscout/internal/model"
)

// Source tags recorded on merge.
const (
	SourceBusiness = "places"
	SourceSolar    = "solar"
	SourceGeocoder = "geocoder"
)

// MergeBusiness folds a business payload into the record. Returns true when
// the record changed.
func MergeBusiness(rec *model.BuildingRecord, payload *model.BusinessProfile, now time.Time) bool {
	if payload.Empty() {
		return false
	}
	rec.Business = payload
	rec.AddSource(SourceBusiness)
	rec.LastUpdated = now
	return true
}

// MergeSolar folds a solar payload into the record. Returns true when the
// record changed.
func MergeSolar(rec *model.BuildingRecord, payload *model.SolarPotential, now time.Time) bool {
	if payload.Empty() {
		return false
	}
	rec.Solar = payload
	rec.AddSource(SourceSolar)
	rec.LastUpdated = now
	return true
}

// MergeLocation records a geocoding outcome. The geocoded flag is set even on
// a miss so the next run knows the lookup was attempted.
func MergeLocation(rec *model.BuildingRecord, loc *model.LatLng, now time.Time) bool {
	if rec.Geocoded && loc == nil {
		return false
	}
	if loc != nil && rec.Location == nil {
		rec.Location = loc
	}
	rec.Geocoded = true
	rec.AddSource(SourceGeocoder)
	rec.LastUpdated = now
	return true
}
