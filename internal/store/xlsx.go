package store

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/suncrest-solar/leadscout/internal/geoutil"
	"github.com/suncrest-solar/leadscout/internal/model"
)

// xlsxColumns is the condensed top-leads layout handed to sales. The full
// column set lives in the CSV export; this sheet carries what a rep scans.
var xlsxColumns = []string{
	"Score", "ICP Bucket", "Business Name", "Address",
	"Roof Area (sqft)", "Est. Capacity (kW)", "Max Panels",
	"Financially Viable", "Payback (yrs)", "Phone", "Website",
}

// WriteTopLeadsXLSX writes the highest-scoring records to an xlsx workbook at
// path. Records are expected pre-sorted by score descending.
func WriteTopLeadsXLSX(path string, records []model.BuildingRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Top Leads")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range xlsxColumns {
		header.AddCell().SetString(name)
	}

	for i := range records {
		rec := &records[i]
		row := sheet.AddRow()

		row.AddCell().SetInt(rec.Score)
		row.AddCell().SetString(rec.ICPBucket)

		name := ""
		phone := ""
		website := ""
		if rec.Business != nil {
			name = rec.Business.Name
			phone = rec.Business.Phone
			website = rec.Business.Website
		}
		row.AddCell().SetString(name)
		row.AddCell().SetString(strings.TrimSpace(rec.AddressRaw))
		row.AddCell().SetFloat(rec.EffectiveRoofArea())
		row.AddCell().SetFloat(geoutil.EstimateCapacityKW(rec.EffectiveRoofArea()))

		panels := 0
		viable := false
		payback := 0.0
		if rec.Solar != nil {
			panels = rec.Solar.MaxPanelCount
			viable = rec.Solar.FinanciallyViable
			payback = rec.Solar.PaybackYears
		}
		row.AddCell().SetInt(panels)
		row.AddCell().SetString(csvBool(viable))
		row.AddCell().SetFloat(payback)
		row.AddCell().SetString(phone)
		row.AddCell().SetString(website)
	}

	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}
