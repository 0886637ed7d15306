// Package discovery decides which geographic cells and search terms the
// pipeline is allowed to query again. The memory is append-only: every issued
// query is logged, and a cell+fingerprint pair with a fresh enough entry is
// skipped on later runs, even when the earlier run found nothing.
package discovery

import (
	"fmt"
	"math"

	"github.com/suncrest-solar/leadscout/internal/geoutil"
	"github.com/suncrest-solar/leadscout/internal/model"
)

// metersPerDegreeLat is close enough at the cell sizes discovery sweeps.
const metersPerDegreeLat = 111320.0

// Cell is one tile of a discovery sweep.
type Cell struct {
	ID     string
	Center model.LatLng
	Box    geoutil.BoundingBox
}

// Fingerprint keys a query against this cell for the memory log.
func (c Cell) Fingerprint(term string) string {
	return term + "@" + c.ID
}

// Grid tiles a bounding box into cells of roughly cellKM on a side. Cells are
// keyed by their south-west corner so the same box always yields the same IDs.
func Grid(box geoutil.BoundingBox, cellKM float64) []Cell {
	if cellKM <= 0 {
		cellKM = 1
	}
	dLat := cellKM * 1000 / metersPerDegreeLat

	var cells []Cell
	for south := box.South; south < box.North; south += dLat {
		north := math.Min(south+dLat, box.North)
		midLat := (south + north) / 2
		dLng := cellKM * 1000 / (metersPerDegreeLat * math.Cos(midLat*math.Pi/180))

		for west := box.West; west < box.East; west += dLng {
			east := math.Min(west+dLng, box.East)
			cells = append(cells, Cell{
				ID:     fmt.Sprintf("%.4f,%.4f", south, west),
				Center: model.LatLng{Lat: midLat, Lng: (west + east) / 2},
				Box:    geoutil.BoundingBox{South: south, West: west, North: north, East: east},
			})
		}
	}
	return cells
}
