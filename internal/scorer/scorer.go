// Package scorer computes the 0-100 composite suitability score. Score is a
// pure function of the record: identical inputs always produce identical
// output, and the stored score is recomputed after every merge, never on read.
package scorer

import (
	"math"

	"github.com/suncrest-solar/leadscout/internal/model"
)

const (
	// panelsForMaxScore is the panel count where the solar component tops out.
	panelsForMaxScore = 250.0

	// sqftPerPanel sizes the proxy panel estimate when the solar API has no
	// coverage for a building.
	sqftPerPanel = 17.5

	// proxyEfficiency discounts the proxy estimate against API-derived counts.
	proxyEfficiency = 0.70

	// baselineFloor is the minimum score for any non-excluded record.
	baselineFloor = 12
)

// Tiers maps ICP buckets to their tiers for the relevance component.
type Tiers interface {
	Tier(bucket string) int
}

// Score computes the composite score and its per-component breakdown.
func Score(rec *model.BuildingRecord, tiers Tiers) (int, map[string]int) {
	breakdown := map[string]int{
		"solar_potential":     solarComponent(rec),
		"icp_relevance":       icpComponent(rec, tiers),
		"financial_viability": financialComponent(rec),
		"building_type":       typeComponent(rec.BuildingType),
		"business_data":       businessComponent(rec.Business),
	}

	total := 0
	for _, v := range breakdown {
		total += v
	}

	excluded := tiers.Tier(rec.ICPBucket) < 0
	if total < baselineFloor && !excluded {
		breakdown["baseline_floor"] = baselineFloor - total
		total = baselineFloor
	}

	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return total, breakdown
}

// Apply recomputes and stores the score on the record.
func Apply(rec *model.BuildingRecord, tiers Tiers) {
	rec.Score, rec.ScoreBreakdown = Score(rec, tiers)
}

// solarComponent scales panel count linearly to 40 points at 250+ panels.
// Without API data it falls back to a roof-area proxy discounted by the
// efficiency factor.
func solarComponent(rec *model.BuildingRecord) int {
	var panels float64
	if rec.Solar != nil && rec.Solar.MaxPanelCount > 0 {
		panels = float64(rec.Solar.MaxPanelCount)
	} else {
		panels = rec.EffectiveRoofArea() / sqftPerPanel * proxyEfficiency
	}
	if panels <= 0 {
		return 0
	}
	score := panels / panelsForMaxScore * 40
	if score > 40 {
		score = 40
	}
	return int(math.Round(score))
}

func icpComponent(rec *model.BuildingRecord, tiers Tiers) int {
	switch tiers.Tier(rec.ICPBucket) {
	case 1:
		return 25
	case 2:
		return 15
	case -1:
		return -30
	default:
		return 0
	}
}

func financialComponent(rec *model.BuildingRecord) int {
	if rec.Solar == nil || !rec.Solar.FinanciallyViable {
		return 0
	}
	score := 15
	if rec.Solar.PaybackYears > 0 && rec.Solar.PaybackYears < 7 {
		score += 5
	}
	return score
}

func typeComponent(buildingType string) int {
	switch buildingType {
	case "industrial", "warehouse":
		return 10
	case "commercial":
		return 8
	case "retail":
		return 5
	default:
		return 2
	}
}

func businessComponent(b *model.BusinessProfile) int {
	if b.Empty() || b.OperatingStatus != "OPERATIONAL" {
		return 0
	}
	score := 7
	if b.Rating >= 4.0 {
		score += 3
	}
	return score
}
