// Package model defines the canonical lead record types shared across the pipeline.
package model

import (
	"slices"
	"time"
)

// SqmToSqft converts square meters to square feet.
const SqmToSqft = 10.7639

// ICP bucket labels assigned by the classifier. Ordering/priority lives in the
// classifier rule table, not here.
const (
	BucketManufacturing     = "Manufacturing/Industrial"
	BucketWarehousing       = "Warehousing/Logistics"
	BucketFoodBeverage      = "Food/Beverage/Cold Load"
	BucketAutoEquipment     = "Auto/Equipment"
	BucketNonprofit         = "Nonprofit/Community"
	BucketDeprioritize      = "De-prioritize"
	BucketGeneralCommercial = "General Commercial"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BusinessProfile holds business enrichment for a building. It is replaced as
// a unit on merge; a nil profile means "absent", never "empty".
type BusinessProfile struct {
	PlaceID         string   `json:"place_id,omitempty"`
	Name            string   `json:"name"`
	Rating          float64  `json:"rating,omitempty"`
	ReviewCount     int      `json:"review_count,omitempty"`
	Website         string   `json:"website,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	OperatingStatus string   `json:"operating_status,omitempty"`
	CategoryTags    []string `json:"category_tags,omitempty"`
}

// Empty reports whether the profile carries no usable data. An empty payload
// from a failed lookup must never displace a populated one.
func (b *BusinessProfile) Empty() bool {
	return b == nil || (b.Name == "" && b.PlaceID == "" && len(b.CategoryTags) == 0)
}

// SolarPotential holds solar-API enrichment for a building. Replaced as a
// unit on merge, same absent-vs-empty contract as BusinessProfile.
type SolarPotential struct {
	MaxPanelCount          int     `json:"max_panel_count"`
	MinPanelCount          int     `json:"min_panel_count,omitempty"`
	OptimalAnnualEnergyKWh float64 `json:"optimal_annual_energy_kwh,omitempty"`
	MinAnnualEnergyKWh     float64 `json:"min_annual_energy_kwh,omitempty"`
	PaybackYears           float64 `json:"payback_years,omitempty"`
	FinanciallyViable      bool    `json:"financially_viable"`
	AnnualSunshineHours    float64 `json:"annual_sunshine_hours,omitempty"`
	CarbonOffsetKgPerMWh   float64 `json:"carbon_offset_kg_per_mwh,omitempty"`
	MaxArrayAreaM2         float64 `json:"max_array_area_m2,omitempty"`
	RoofAreaM2             float64 `json:"roof_area_m2,omitempty"`
	RoofSegmentCount       int     `json:"roof_segment_count,omitempty"`
	CoveragePercentage     float64 `json:"coverage_percentage,omitempty"`
	MonthlySavingsEstimate float64 `json:"monthly_savings_estimate,omitempty"`
}

// Empty reports whether the payload carries no usable data.
func (s *SolarPotential) Empty() bool {
	return s == nil || (s.MaxPanelCount == 0 && s.MaxArrayAreaM2 == 0 && s.RoofAreaM2 == 0 && s.AnnualSunshineHours == 0)
}

// BuildingRecord is the canonical entity: one row per physical structure.
// BuildingID is assigned once by the resolver and never reassigned.
type BuildingRecord struct {
	BuildingID        string `json:"building_id"`
	AddressRaw        string `json:"address_raw"`
	AddressNormalized string `json:"address_normalized"`

	// Location is nil when coordinates are unknown. Geocoded distinguishes
	// "lookup attempted, nothing found" from "not yet attempted".
	Location *LatLng `json:"location,omitempty"`
	Geocoded bool    `json:"geocoded"`

	BuildingType      string  `json:"building_type"`
	FootprintAreaSqft float64 `json:"footprint_area_sqft"`
	NumStories        int     `json:"num_stories"`
	EstimatedRoofArea float64 `json:"estimated_roof_area"`

	Business *BusinessProfile `json:"business,omitempty"`
	Solar    *SolarPotential  `json:"solar,omitempty"`

	ICPBucket        string `json:"icp_bucket"`
	VerifiedLandmark bool   `json:"verified_landmark"`
	Ineligible       bool   `json:"ineligible"`

	Score          int            `json:"score"`
	ScoreBreakdown map[string]int `json:"score_breakdown,omitempty"`

	Sources     []string  `json:"sources"`
	LastUpdated time.Time `json:"last_updated"`
}

// EffectiveRoofArea returns the usable roof area in sq ft for eligibility and
// scoring. The solar API's maximum usable array area wins over the geometric
// estimate when present.
func (r *BuildingRecord) EffectiveRoofArea() float64 {
	if r.Solar != nil && r.Solar.MaxArrayAreaM2 > 0 {
		return r.Solar.MaxArrayAreaM2 * SqmToSqft
	}
	return r.EstimatedRoofArea
}

// AddSource records a provenance tag. Sources is a set kept in sorted order
// so serialized records compare stably across runs.
func (r *BuildingRecord) AddSource(tag string) {
	if tag == "" || slices.Contains(r.Sources, tag) {
		return
	}
	r.Sources = append(r.Sources, tag)
	slices.Sort(r.Sources)
}

// HasSource reports whether a provenance tag is present.
func (r *BuildingRecord) HasSource(tag string) bool {
	return slices.Contains(r.Sources, tag)
}

// FootprintObservation is a single raw building observation from a footprint
// source (Overpass, shapefile) before identity resolution.
type FootprintObservation struct {
	SourceID         string   `json:"source_id"`
	Source           string   `json:"source"`
	Name             string   `json:"name,omitempty"`
	AddressRaw       string   `json:"address_raw"`
	BuildingType     string   `json:"building_type"`
	AreaSqft         float64  `json:"area_sqft"`
	NumStories       int      `json:"num_stories"`
	Location         *LatLng  `json:"location,omitempty"`
	TypeTags         []string `json:"type_tags,omitempty"`
	VerifiedLandmark bool     `json:"verified_landmark,omitempty"`
}
