// Package footprint turns raw building-footprint sources (Overpass elements,
// shapefiles) into typed observations ready for identity resolution.
package footprint

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/suncrest-solar/leadscout/internal/model"
)

// RingAreaSqft computes the area of a closed lat/lng ring in square feet.
// Vertices are projected to local meters around the ring's centroid before
// the planar area runs; at building scale the distortion is negligible.
func RingAreaSqft(ring []model.LatLng) float64 {
	if len(ring) < 3 {
		return 0
	}

	center := Centroid(ring)
	mPerDegLat := 111320.0
	mPerDegLng := 111320.0 * math.Cos(center.Lat*math.Pi/180)

	flat := make([]float64, 0, (len(ring)+1)*2)
	for _, p := range ring {
		flat = append(flat, (p.Lng-center.Lng)*mPerDegLng, (p.Lat-center.Lat)*mPerDegLat)
	}
	// Close the ring if the source left it open.
	if flat[0] != flat[len(flat)-2] || flat[1] != flat[len(flat)-1] {
		flat = append(flat, flat[0], flat[1])
	}

	poly := geom.NewPolygon(geom.XY)
	if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
		return 0
	}

	return math.Abs(poly.Area()) * model.SqmToSqft
}

// Centroid returns the vertex mean of a ring, good enough as a building's
// representative point.
func Centroid(ring []model.LatLng) *model.LatLng {
	if len(ring) == 0 {
		return nil
	}
	var lat, lng float64
	for _, p := range ring {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(ring))
	return &model.LatLng{Lat: lat / n, Lng: lng / n}
}
