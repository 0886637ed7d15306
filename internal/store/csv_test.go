package store

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/suncrest-solar/leadscout/internal/model"
)

func fullRecord() model.BuildingRecord {
	return model.BuildingRecord{
		BuildingID:        "b-1",
		AddressRaw:        "784 South Dock Street, Sheboygan, WI 53081",
		AddressNormalized: "784 S DOCK ST, SHEBOYGAN, WI 53081",
		Location:          &model.LatLng{Lat: 43.742, Lng: -87.709},
		Geocoded:          true,
		BuildingType:      "industrial",
		FootprintAreaSqft: 42000,
		NumStories:        1,
		EstimatedRoofArea: 29400,
		Business: &model.BusinessProfile{
			PlaceID:         "pl_1",
			Name:            "Dockside Forge",
			Rating:          4.6,
			ReviewCount:     87,
			Website:         "https://docksideforge.example",
			Phone:           "(920) 555-0147",
			OperatingStatus: "OPERATIONAL",
			CategoryTags:    []string{"metal_fabricator", "point_of_interest"},
		},
		Solar: &model.SolarPotential{
			MaxPanelCount:          412,
			MinPanelCount:          4,
			OptimalAnnualEnergyKWh: 168000,
			PaybackYears:           6.5,
			FinanciallyViable:      true,
			AnnualSunshineHours:    1430,
			CarbonOffsetKgPerMWh:   428.9,
			MaxArrayAreaM2:         810.5,
			RoofAreaM2:             1150.2,
			RoofSegmentCount:       3,
		},
		ICPBucket:        model.BucketManufacturing,
		VerifiedLandmark: false,
		Ineligible:       false,
		Score:            88,
		Sources:          []string{"osm", "places", "solar"},
		LastUpdated:      time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestCSV_RoundTrip(t *testing.T) {
	sparse := model.BuildingRecord{
		BuildingID:        "b-2",
		AddressRaw:        "unknown lot",
		AddressNormalized: "UNKNOWN LOT",
		BuildingType:      "unknown",
		ICPBucket:         model.BucketGeneralCommercial,
		Score:             12,
		LastUpdated:       time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []model.BuildingRecord{fullRecord(), sparse}))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, fullRecord(), got[0])
	assert.Equal(t, sparse, got[1])
}

func TestCSV_SolarWithoutPanelCountSurvives(t *testing.T) {
	rec := fullRecord()
	rec.Solar = &model.SolarPotential{
		RoofAreaM2:        950.5,
		PaybackYears:      5.9,
		FinanciallyViable: true,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []model.BuildingRecord{rec}))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Solar)
	assert.Equal(t, rec, got[0])

	// Sunshine hours alone also marks the sub-record present.
	rec.Solar = &model.SolarPotential{AnnualSunshineHours: 1410}
	buf.Reset()
	require.NoError(t, WriteCSV(&buf, []model.BuildingRecord{rec}))
	got, err = ReadCSV(&buf)
	require.NoError(t, err)
	require.NotNil(t, got[0].Solar)
	assert.InDelta(t, 1410, got[0].Solar.AnnualSunshineHours, 1e-9)
}

func TestCSV_BooleanLiterals(t *testing.T) {
	rec := fullRecord()
	rec.Ineligible = true

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []model.BuildingRecord{rec}))
	out := buf.String()

	assert.Contains(t, out, "True")
	assert.Contains(t, out, "False")
	assert.NotContains(t, out, "true,")
	assert.NotContains(t, out, ",false")
}

func TestCSV_TagsCommaJoined(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []model.BuildingRecord{fullRecord()}))

	assert.Contains(t, buf.String(), `"metal_fabricator,point_of_interest"`)
}

func TestCSV_AbsentSubRecordsStayAbsent(t *testing.T) {
	rec := model.BuildingRecord{
		BuildingID:        "b-3",
		AddressNormalized: "1 EMPTY ST",
		LastUpdated:       time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []model.BuildingRecord{rec}))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Business)
	assert.Nil(t, got[0].Solar)
	assert.Nil(t, got[0].Location)
}

func TestCSV_ReorderedColumnsStillParse(t *testing.T) {
	in := strings.Join([]string{
		"score,building_id,ineligible,address_normalized",
		"77,b-9,False,9 MILL RD",
	}, "\n")

	got, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b-9", got[0].BuildingID)
	assert.Equal(t, 77, got[0].Score)
	assert.Equal(t, "9 MILL RD", got[0].AddressNormalized)
}

func TestCSV_MissingBuildingIDColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("score,ineligible\n10,False\n"))
	assert.Error(t, err)
}

func TestWriteTopLeadsXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "top.xlsx")
	require.NoError(t, WriteTopLeadsXLSX(path, []model.BuildingRecord{fullRecord()}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Top Leads", sheet.Name)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Score", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "88", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "Dockside Forge", sheet.Rows[1].Cells[2].String())

	// Capacity derives from the API-measured array area, 810.5 m2 here.
	assert.Equal(t, "Est. Capacity (kW)", sheet.Rows[0].Cells[5].String())
	kw, err := sheet.Rows[1].Cells[5].Float()
	require.NoError(t, err)
	assert.InDelta(t, 87.24, kw, 0.01)
}
