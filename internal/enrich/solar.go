package enrich

import (
	"strconv"

	"github.com/suncrest-solar/leadscout/internal/model"
	"github.com/suncrest-solar/leadscout/pkg/solarapi"
)

// SolarFromInsights validates and converts a building-insights response into
// the record's solar sub-record. Returns nil when the payload carries no
// usable data, so a degenerate API response reads as "absent" downstream.
func SolarFromInsights(insights *solarapi.BuildingInsights) *model.SolarPotential {
	if insights == nil {
		return nil
	}
	sp := insights.SolarPotential

	out := &model.SolarPotential{
		MaxPanelCount:        sp.MaxArrayPanelsCount,
		MaxArrayAreaM2:       sp.MaxArrayAreaMeters2,
		AnnualSunshineHours:  sp.MaxSunshineHoursPerYear,
		CarbonOffsetKgPerMWh: sp.CarbonOffsetFactorKgPerMwh,
		RoofAreaM2:           sp.WholeRoofStats.AreaMeters2,
		RoofSegmentCount:     len(sp.RoofSegmentStats),
	}

	// Configs arrive ordered by panel count; the ends give the min and
	// optimal figures.
	if n := len(sp.SolarPanelConfigs); n > 0 {
		out.MinPanelCount = sp.SolarPanelConfigs[0].PanelsCount
		out.MinAnnualEnergyKWh = sp.SolarPanelConfigs[0].YearlyEnergyDcKwh
		out.OptimalAnnualEnergyKWh = sp.SolarPanelConfigs[n-1].YearlyEnergyDcKwh
	}

	if analysis := defaultAnalysis(sp.FinancialAnalyses); analysis != nil {
		out.FinanciallyViable = analysis.FinanciallyViable
		if analysis.CashPurchaseSavings != nil {
			out.PaybackYears = analysis.CashPurchaseSavings.PaybackYears
		}
		if units, err := strconv.ParseFloat(analysis.MonthlyBill.Units, 64); err == nil {
			out.MonthlySavingsEstimate = units
		}
	}

	if out.RoofAreaM2 > 0 && out.MaxArrayAreaM2 > 0 {
		out.CoveragePercentage = out.MaxArrayAreaM2 / out.RoofAreaM2 * 100
	}

	if out.Empty() {
		return nil
	}
	return out
}

// defaultAnalysis picks the scenario flagged defaultBill, falling back to the
// first entry.
func defaultAnalysis(analyses []solarapi.FinancialAnalysis) *solarapi.FinancialAnalysis {
	if len(analyses) == 0 {
		return nil
	}
	for i := range analyses {
		if analyses[i].DefaultBill {
			return &analyses[i]
		}
	}
	return &analyses[0]
}
