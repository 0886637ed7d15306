package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suncrest-solar/leadscout/pkg/solarapi"
)

func insightsFixture() *solarapi.BuildingInsights {
	return &solarapi.BuildingInsights{
		Name: "buildings/abc123",
		SolarPotential: solarapi.SolarPotential{
			MaxArrayPanelsCount:        412,
			MaxArrayAreaMeters2:        810.5,
			MaxSunshineHoursPerYear:    1430,
			CarbonOffsetFactorKgPerMwh: 428.9,
			WholeRoofStats:             solarapi.RoofStats{AreaMeters2: 1150.2},
			RoofSegmentStats: []solarapi.RoofSegment{
				{PitchDegrees: 4.1}, {PitchDegrees: 12.0}, {PitchDegrees: 9.5},
			},
			SolarPanelConfigs: []solarapi.SolarPanelConfig{
				{PanelsCount: 4, YearlyEnergyDcKwh: 1650},
				{PanelsCount: 200, YearlyEnergyDcKwh: 82000},
				{PanelsCount: 412, YearlyEnergyDcKwh: 168000},
			},
			FinancialAnalyses: []solarapi.FinancialAnalysis{
				{MonthlyBill: solarapi.Money{Units: "150"}},
				{
					MonthlyBill:       solarapi.Money{Units: "350"},
					DefaultBill:       true,
					FinanciallyViable: true,
					CashPurchaseSavings: &solarapi.CashPurchaseSavings{
						PaybackYears: 6.5,
					},
				},
			},
		},
	}
}

func TestSolarFromInsights_FullPayload(t *testing.T) {
	got := SolarFromInsights(insightsFixture())
	require.NotNil(t, got)

	assert.Equal(t, 412, got.MaxPanelCount)
	assert.Equal(t, 4, got.MinPanelCount)
	assert.Equal(t, 1650.0, got.MinAnnualEnergyKWh)
	assert.Equal(t, 168000.0, got.OptimalAnnualEnergyKWh)
	assert.InDelta(t, 810.5, got.MaxArrayAreaM2, 1e-9)
	assert.InDelta(t, 1150.2, got.RoofAreaM2, 1e-9)
	assert.Equal(t, 3, got.RoofSegmentCount)
	assert.InDelta(t, 70.47, got.CoveragePercentage, 0.1)

	// The defaultBill scenario wins over the first entry.
	assert.True(t, got.FinanciallyViable)
	assert.Equal(t, 6.5, got.PaybackYears)
	assert.Equal(t, 350.0, got.MonthlySavingsEstimate)
}

func TestSolarFromInsights_FallsBackToFirstAnalysis(t *testing.T) {
	in := insightsFixture()
	for i := range in.SolarPotential.FinancialAnalyses {
		in.SolarPotential.FinancialAnalyses[i].DefaultBill = false
	}

	got := SolarFromInsights(in)
	require.NotNil(t, got)
	assert.Equal(t, 150.0, got.MonthlySavingsEstimate)
	assert.False(t, got.FinanciallyViable)
}

func TestSolarFromInsights_DegenerateIsAbsent(t *testing.T) {
	assert.Nil(t, SolarFromInsights(nil))
	assert.Nil(t, SolarFromInsights(&solarapi.BuildingInsights{}))

	// Financial data with no physical data is still unusable.
	assert.Nil(t, SolarFromInsights(&solarapi.BuildingInsights{
		SolarPotential: solarapi.SolarPotential{
			FinancialAnalyses: []solarapi.FinancialAnalysis{{FinanciallyViable: true}},
		},
	}))
}
