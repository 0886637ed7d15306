package store

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/suncrest-solar/leadscout/internal/model"
)

// csvColumns is the flat-table layout consumed by the dashboard. One row per
// building_id; sub-record columns are empty when the sub-record is absent.
var csvColumns = []string{
	"building_id", "address_raw", "address_normalized",
	"lat", "lng", "geocoded",
	"building_type", "footprint_area_sqft", "num_stories", "estimated_roof_area",
	"business_name", "business_place_id", "business_rating", "business_review_count",
	"business_website", "business_phone", "business_operating_status", "business_category_tags",
	"solar_max_panel_count", "solar_min_panel_count",
	"solar_optimal_annual_energy_kwh", "solar_min_annual_energy_kwh",
	"solar_payback_years", "solar_financially_viable",
	"solar_annual_sunshine_hours", "solar_carbon_offset_kg_per_mwh",
	"solar_max_array_area_m2", "solar_roof_area_m2", "solar_roof_segment_count",
	"solar_coverage_percentage", "solar_monthly_savings_estimate",
	"icp_bucket", "verified_landmark", "ineligible", "score",
	"sources", "last_updated",
}

// WriteCSV writes records as the flat lead table. Booleans serialize as
// literal "True"/"False"; list fields are comma-joined.
func WriteCSV(w io.Writer, records []model.BuildingRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return eris.Wrap(err, "csv: write header")
	}

	for i := range records {
		if err := cw.Write(recordToRow(&records[i])); err != nil {
			return eris.Wrapf(err, "csv: write row %s", records[i].BuildingID)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}

// ReadCSV parses a flat lead table back into records. Columns are located by
// header name, so consumers may reorder or append columns without breaking
// re-import.
func ReadCSV(r io.Reader) ([]model.BuildingRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	if _, ok := index["building_id"]; !ok {
		return nil, eris.New("csv: missing building_id column")
	}

	var records []model.BuildingRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: read line %d", line)
		}

		rec, err := rowToRecord(row, index)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: parse line %d", line)
		}
		records = append(records, *rec)
	}
	return records, nil
}

func recordToRow(rec *model.BuildingRecord) []string {
	row := make([]string, 0, len(csvColumns))
	row = append(row,
		rec.BuildingID, rec.AddressRaw, rec.AddressNormalized,
		csvFloatPtrLat(rec.Location), csvFloatPtrLng(rec.Location), csvBool(rec.Geocoded),
		rec.BuildingType, csvFloat(rec.FootprintAreaSqft), csvInt(rec.NumStories), csvFloat(rec.EstimatedRoofArea),
	)

	if b := rec.Business; b != nil {
		row = append(row,
			b.Name, b.PlaceID, csvFloat(b.Rating), csvInt(b.ReviewCount),
			b.Website, b.Phone, b.OperatingStatus, strings.Join(b.CategoryTags, ","),
		)
	} else {
		row = append(row, "", "", "", "", "", "", "", "")
	}

	if s := rec.Solar; s != nil {
		row = append(row,
			csvInt(s.MaxPanelCount), csvInt(s.MinPanelCount),
			csvFloat(s.OptimalAnnualEnergyKWh), csvFloat(s.MinAnnualEnergyKWh),
			csvFloat(s.PaybackYears), csvBool(s.FinanciallyViable),
			csvFloat(s.AnnualSunshineHours), csvFloat(s.CarbonOffsetKgPerMWh),
			csvFloat(s.MaxArrayAreaM2), csvFloat(s.RoofAreaM2), csvInt(s.RoofSegmentCount),
			csvFloat(s.CoveragePercentage), csvFloat(s.MonthlySavingsEstimate),
		)
	} else {
		row = append(row, "", "", "", "", "", "", "", "", "", "", "", "", "")
	}

	row = append(row,
		rec.ICPBucket, csvBool(rec.VerifiedLandmark), csvBool(rec.Ineligible),
		strconv.Itoa(rec.Score), strings.Join(rec.Sources, ","),
		rec.LastUpdated.UTC().Format(time.RFC3339Nano),
	)
	return row
}

func rowToRecord(row []string, index map[string]int) (*model.BuildingRecord, error) {
	col := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	rec := &model.BuildingRecord{
		BuildingID:        col("building_id"),
		AddressRaw:        col("address_raw"),
		AddressNormalized: col("address_normalized"),
		Geocoded:          col("geocoded") == "True",
		BuildingType:      col("building_type"),
		ICPBucket:         col("icp_bucket"),
		VerifiedLandmark:  col("verified_landmark") == "True",
		Ineligible:        col("ineligible") == "True",
	}
	if rec.BuildingID == "" {
		return nil, eris.New("empty building_id")
	}

	var err error
	if rec.FootprintAreaSqft, err = parseFloatCol(col("footprint_area_sqft")); err != nil {
		return nil, err
	}
	if rec.EstimatedRoofArea, err = parseFloatCol(col("estimated_roof_area")); err != nil {
		return nil, err
	}
	if rec.NumStories, err = parseIntCol(col("num_stories")); err != nil {
		return nil, err
	}
	if rec.Score, err = parseIntCol(col("score")); err != nil {
		return nil, err
	}

	if latStr, lngStr := col("lat"), col("lng"); latStr != "" && lngStr != "" {
		lat, err := parseFloatCol(latStr)
		if err != nil {
			return nil, err
		}
		lng, err := parseFloatCol(lngStr)
		if err != nil {
			return nil, err
		}
		rec.Location = &model.LatLng{Lat: lat, Lng: lng}
	}

	// A business sub-record exists if any of its identity columns are set.
	if col("business_name") != "" || col("business_place_id") != "" || col("business_category_tags") != "" {
		b := &model.BusinessProfile{
			Name:            col("business_name"),
			PlaceID:         col("business_place_id"),
			Website:         col("business_website"),
			Phone:           col("business_phone"),
			OperatingStatus: col("business_operating_status"),
			CategoryTags:    splitTags(col("business_category_tags")),
		}
		if b.Rating, err = parseFloatCol(col("business_rating")); err != nil {
			return nil, err
		}
		if b.ReviewCount, err = parseIntCol(col("business_review_count")); err != nil {
			return nil, err
		}
		rec.Business = b
	}

	// Presence mirrors SolarPotential.Empty: any of these four marks a
	// sub-record worth keeping.
	if col("solar_max_panel_count") != "" || col("solar_max_array_area_m2") != "" ||
		col("solar_roof_area_m2") != "" || col("solar_annual_sunshine_hours") != "" {
		s := &model.SolarPotential{FinanciallyViable: col("solar_financially_viable") == "True"}
		if s.MaxPanelCount, err = parseIntCol(col("solar_max_panel_count")); err != nil {
			return nil, err
		}
		if s.MinPanelCount, err = parseIntCol(col("solar_min_panel_count")); err != nil {
			return nil, err
		}
		if s.OptimalAnnualEnergyKWh, err = parseFloatCol(col("solar_optimal_annual_energy_kwh")); err != nil {
			return nil, err
		}
		if s.MinAnnualEnergyKWh, err = parseFloatCol(col("solar_min_annual_energy_kwh")); err != nil {
			return nil, err
		}
		if s.PaybackYears, err = parseFloatCol(col("solar_payback_years")); err != nil {
			return nil, err
		}
		if s.AnnualSunshineHours, err = parseFloatCol(col("solar_annual_sunshine_hours")); err != nil {
			return nil, err
		}
		if s.CarbonOffsetKgPerMWh, err = parseFloatCol(col("solar_carbon_offset_kg_per_mwh")); err != nil {
			return nil, err
		}
		if s.MaxArrayAreaM2, err = parseFloatCol(col("solar_max_array_area_m2")); err != nil {
			return nil, err
		}
		if s.RoofAreaM2, err = parseFloatCol(col("solar_roof_area_m2")); err != nil {
			return nil, err
		}
		if s.RoofSegmentCount, err = parseIntCol(col("solar_roof_segment_count")); err != nil {
			return nil, err
		}
		if s.CoveragePercentage, err = parseFloatCol(col("solar_coverage_percentage")); err != nil {
			return nil, err
		}
		if s.MonthlySavingsEstimate, err = parseFloatCol(col("solar_monthly_savings_estimate")); err != nil {
			return nil, err
		}
		rec.Solar = s
	}

	rec.Sources = splitTags(col("sources"))

	if ts := col("last_updated"); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, eris.Wrap(err, "parse last_updated")
		}
		rec.LastUpdated = parsed.UTC()
	}

	return rec, nil
}

func csvBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func csvFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func csvInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func csvFloatPtrLat(p *model.LatLng) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(p.Lat, 'f', -1, 64)
}

func csvFloatPtrLng(p *model.LatLng) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseFloatCol(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse float %q", s)
	}
	return f, nil
}

func parseIntCol(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Wrapf(err, "parse int %q", s)
	}
	return n, nil
}
