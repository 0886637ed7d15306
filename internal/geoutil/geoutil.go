// Package geoutil provides the geometry helpers shared by the resolver,
// discovery grid, and scoring proxy math.
package geoutil

import (
	"math"

	"github.com/suncrest-solar/leadscout/internal/model"
)

const (
	// earthRadiusM is the mean Earth radius used by the haversine distance.
	earthRadiusM = 6371000.0

	// UsableRoofFraction discounts the raw per-story footprint for HVAC,
	// setbacks, and obstructions when estimating installable roof area.
	UsableRoofFraction = 0.70

	// SqftPerKW approximates panel area per kilowatt of installed capacity.
	SqftPerKW = 100.0
)

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b model.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// EstimateRoofArea derives usable roof area in sq ft from a building's total
// floor area and story count. Story counts below one are treated as one.
func EstimateRoofArea(floorAreaSqft float64, numStories int) float64 {
	if floorAreaSqft <= 0 {
		return 0
	}
	if numStories < 1 {
		numStories = 1
	}
	return floorAreaSqft / float64(numStories) * UsableRoofFraction
}

// EstimateCapacityKW converts usable roof area to an indicative system size.
func EstimateCapacityKW(roofAreaSqft float64) float64 {
	if roofAreaSqft <= 0 {
		return 0
	}
	return roofAreaSqft / SqftPerKW
}

// BoundingBox is a south-west / north-east envelope in degrees.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Contains reports whether the point lies inside the box, inclusive of edges.
func (b BoundingBox) Contains(p model.LatLng) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lng >= b.West && p.Lng <= b.East
}

// BoxAround returns a bounding box extending radiusM meters from center in
// each direction. Longitude degrees shrink with latitude; the flat-Earth
// approximation here is fine at the sub-kilometer radii discovery uses.
func BoxAround(center model.LatLng, radiusM float64) BoundingBox {
	dLat := radiusM / 111320.0
	dLng := radiusM / (111320.0 * math.Cos(center.Lat*math.Pi/180))
	return BoundingBox{
		South: center.Lat - dLat,
		West:  center.Lng - dLng,
		North: center.Lat + dLat,
		East:  center.Lng + dLng,
	}
}
