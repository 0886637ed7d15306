package footprint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suncrest-solar/leadscout/internal/model"
	"github.com/suncrest-solar/leadscout/pkg/overpass"
)

// DefaultBuildingFilter is the Overpass regex for the commercial building
// classes the pipeline targets.
const DefaultBuildingFilter = "commercial|industrial|warehouse|retail|office"

// AddressDefaults fills the city/state gaps OSM address tags usually leave.
type AddressDefaults struct {
	City  string
	State string
}

// extraTagKeys are OSM keys whose values feed the classification text blob
// alongside the building tag.
var extraTagKeys = []string{"amenity", "shop", "craft", "industrial", "man_made", "office"}

// FromElement maps one Overpass element to a footprint observation. Elements
// without a usable centroid or geometry still produce an observation; the
// resolver handles location-less records.
func FromElement(el overpass.Element, defaults AddressDefaults) model.FootprintObservation {
	tags := el.Tags
	if tags == nil {
		tags = map[string]string{}
	}

	obs := model.FootprintObservation{
		SourceID:     fmt.Sprintf("osm-%s-%d", el.Type, el.ID),
		Source:       "osm",
		Name:         tags["name"],
		BuildingType: buildingType(tags["building"]),
		NumStories:   parseLevels(tags["building:levels"]),
	}

	if el.Center != nil {
		obs.Location = &model.LatLng{Lat: el.Center.Lat, Lng: el.Center.Lon}
	} else if el.Lat != 0 || el.Lon != 0 {
		obs.Location = &model.LatLng{Lat: el.Lat, Lng: el.Lon}
	}

	if len(el.Geometry) >= 3 {
		ring := make([]model.LatLng, len(el.Geometry))
		for i, p := range el.Geometry {
			ring[i] = model.LatLng{Lat: p.Lat, Lng: p.Lon}
		}
		obs.AreaSqft = RingAreaSqft(ring)
		if obs.Location == nil {
			obs.Location = Centroid(ring)
		}
	}

	obs.AddressRaw = assembleAddress(tags, obs, defaults)
	obs.TypeTags = collectTypeTags(tags)
	obs.VerifiedLandmark = tags["heritage"] != "" || tags["landmark"] == "yes" ||
		tags["tourism"] == "attraction"

	return obs
}

// buildingType maps the OSM building tag onto the pipeline's categorical set.
func buildingType(tag string) string {
	switch tag {
	case "industrial", "warehouse", "commercial", "office", "retail":
		return tag
	case "supermarket", "kiosk", "shop":
		return "retail"
	case "church", "school", "university", "civic", "public":
		return "institutional"
	case "mixed_use", "mixed":
		return "mixed_use"
	case "":
		return "unknown"
	default:
		return tag
	}
}

func parseLevels(raw string) int {
	if raw == "" {
		return 0
	}
	// Levels occasionally arrive fractional ("2.5"); round down.
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f > 0 {
		return int(f)
	}
	return 0
}

// assembleAddress builds an address hint from addr:* tags, falling back to
// addr:full, the building name, and finally the OSM id.
func assembleAddress(tags map[string]string, obs model.FootprintObservation, defaults AddressDefaults) string {
	houseNumber := tags["addr:housenumber"]
	street := tags["addr:street"]

	if houseNumber != "" && street != "" {
		city := tags["addr:city"]
		if city == "" {
			city = defaults.City
		}
		state := tags["addr:state"]
		if state == "" {
			state = defaults.State
		}

		parts := []string{houseNumber + " " + street}
		if city != "" {
			parts = append(parts, city)
		}
		tail := strings.TrimSpace(state + " " + tags["addr:postcode"])
		if tail != "" {
			parts = append(parts, tail)
		}
		return strings.Join(parts, ", ")
	}

	if full := tags["addr:full"]; full != "" {
		return full
	}
	if obs.Name != "" {
		return obs.Name
	}
	return strings.ToUpper(obs.SourceID)
}

func collectTypeTags(tags map[string]string) []string {
	var out []string
	if b := tags["building"]; b != "" && b != "yes" {
		out = append(out, b)
	}
	for _, key := range extraTagKeys {
		if v := tags[key]; v != "" && v != "yes" {
			out = append(out, v)
		}
	}
	return out
}
