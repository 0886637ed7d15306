package footprint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/suncrest-solar/leadscout/internal/model"
)

// FieldMap names the shapefile attribute columns to read per observation.
// County footprint exports vary; unset names are simply skipped.
type FieldMap struct {
	Address      string
	Name         string
	BuildingType string
	Stories      string
}

// ReadShapefile loads polygon footprints from a shapefile. Non-polygon shapes
// and rows whose geometry is degenerate are skipped with a debug log, never
// an error; a malformed row must not sink the rest of the file.
func ReadShapefile(path string, fields FieldMap) ([]model.FootprintObservation, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "footprint: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	attrIndex := make(map[string]int)
	for i, f := range reader.Fields() {
		attrIndex[strings.ToUpper(strings.TrimRight(string(f.Name[:]), "\x00"))] = i
	}

	var observations []model.FootprintObservation
	for reader.Next() {
		row, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok || len(poly.Points) < 3 {
			zap.L().Debug("skipping non-polygon shapefile row", zap.Int("row", row))
			continue
		}

		// Outer ring only: parts[0] up to the next part boundary.
		end := len(poly.Points)
		if poly.NumParts > 1 {
			end = int(poly.Parts[1])
		}
		ring := make([]model.LatLng, 0, end)
		for _, pt := range poly.Points[:end] {
			ring = append(ring, model.LatLng{Lat: pt.Y, Lng: pt.X})
		}

		obs := model.FootprintObservation{
			SourceID: fmt.Sprintf("shp-%s-%d", baseName(path), row),
			Source:   "shapefile",
			AreaSqft: RingAreaSqft(ring),
			Location: Centroid(ring),
		}

		attr := func(name string) string {
			if name == "" {
				return ""
			}
			idx, ok := attrIndex[strings.ToUpper(name)]
			if !ok {
				return ""
			}
			return strings.TrimSpace(reader.ReadAttribute(row, idx))
		}

		obs.AddressRaw = attr(fields.Address)
		obs.Name = attr(fields.Name)
		obs.BuildingType = buildingType(strings.ToLower(attr(fields.BuildingType)))
		if s := attr(fields.Stories); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				obs.NumStories = n
			}
		}
		if obs.BuildingType != "unknown" {
			obs.TypeTags = []string{obs.BuildingType}
		}
		if obs.AddressRaw == "" {
			if obs.Name != "" {
				obs.AddressRaw = obs.Name
			} else {
				obs.AddressRaw = strings.ToUpper(obs.SourceID)
			}
		}

		observations = append(observations, obs)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "footprint: read shapefile %s", path)
	}

	return observations, nil
}

func baseName(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".shp")
}
