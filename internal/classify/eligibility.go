package classify

import "github.com/suncrest-solar/leadscout/internal/model"

// protectedBuckets bypass the minimum-area floor: small footprints in these
// tiers are still worth a rep's time.
var protectedBuckets = map[string]bool{
	model.BucketManufacturing: true,
	model.BucketWarehousing:   true,
}

// Eligible applies the roof-area floor. Must run after classification since
// the exemption depends on the assigned bucket. The record's effective roof
// area prefers the solar API's usable-array figure when present.
func Eligible(rec *model.BuildingRecord, minRoofAreaSqft float64) bool {
	if protectedBuckets[rec.ICPBucket] || rec.VerifiedLandmark {
		return true
	}
	return rec.EffectiveRoofArea() >= minRoofAreaSqft
}
