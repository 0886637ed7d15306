package discovery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suncrest-solar/leadscout/internal/geoutil"
	"github.com/suncrest-solar/leadscout/internal/model"
)

func TestGrid_CoversBox(t *testing.T) {
	box := geoutil.BoundingBox{South: 35.20, West: -80.90, North: 35.25, East: -80.82}
	cells := Grid(box, 2)
	require.NotEmpty(t, cells)

	// Every cell center lies inside the sweep box, and every corner point of
	// the box falls in some cell.
	for _, c := range cells {
		assert.True(t, box.Contains(c.Center), "cell %s center outside box", c.ID)
	}
	for _, p := range []model.LatLng{
		{Lat: 35.201, Lng: -80.899},
		{Lat: 35.249, Lng: -80.821},
		{Lat: 35.22, Lng: -80.86},
	} {
		found := false
		for _, c := range cells {
			if c.Box.Contains(p) {
				found = true
				break
			}
		}
		assert.True(t, found, "no cell covers %+v", p)
	}
}

func TestGrid_Deterministic(t *testing.T) {
	box := geoutil.BoundingBox{South: 35.20, West: -80.90, North: 35.25, East: -80.82}
	first := Grid(box, 2)
	second := Grid(box, 2)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestGrid_CellSize(t *testing.T) {
	box := geoutil.BoundingBox{South: 35.20, West: -80.90, North: 35.30, East: -80.80}
	cells := Grid(box, 2)

	// Interior cells should span roughly 2km on a side.
	c := cells[0]
	height := geoutil.Distance(
		model.LatLng{Lat: c.Box.South, Lng: c.Box.West},
		model.LatLng{Lat: c.Box.North, Lng: c.Box.West},
	)
	width := geoutil.Distance(
		model.LatLng{Lat: c.Box.South, Lng: c.Box.West},
		model.LatLng{Lat: c.Box.South, Lng: c.Box.East},
	)
	assert.InDelta(t, 2000, height, 50)
	assert.InDelta(t, 2000, width, 50)
}

func TestCell_Fingerprint(t *testing.T) {
	c := Cell{ID: "35.2000,-80.9000"}
	assert.Equal(t, "warehouse@35.2000,-80.9000", c.Fingerprint("warehouse"))
}

func TestSQLiteMemory_FreshEntrySuppresses(t *testing.T) {
	mem, err := NewSQLiteMemory(filepath.Join(t.TempDir(), "discovery.db"), 30*24*time.Hour)
	require.NoError(t, err)
	defer mem.Close()

	ctx := context.Background()
	ok, err := mem.ShouldQuery(ctx, "cellA", "warehouse@cellA")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mem.Record(ctx, "cellA", "warehouse@cellA", 12))

	ok, err = mem.ShouldQuery(ctx, "cellA", "warehouse@cellA")
	require.NoError(t, err)
	assert.False(t, ok)

	// A different term over the same cell is still allowed.
	ok, err = mem.ShouldQuery(ctx, "cellA", "brewery@cellA")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteMemory_ZeroResultsStillSuppress(t *testing.T) {
	mem, err := NewSQLiteMemory(filepath.Join(t.TempDir(), "discovery.db"), 30*24*time.Hour)
	require.NoError(t, err)
	defer mem.Close()

	ctx := context.Background()
	require.NoError(t, mem.Record(ctx, "cellB", "dairy@cellB", 0))

	ok, err := mem.ShouldQuery(ctx, "cellB", "dairy@cellB")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteMemory_StaleEntryExpires(t *testing.T) {
	mem, err := NewSQLiteMemory(filepath.Join(t.TempDir(), "discovery.db"), 30*24*time.Hour)
	require.NoError(t, err)
	defer mem.Close()

	ctx := context.Background()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	mem.now = func() time.Time { return base }
	require.NoError(t, mem.Record(ctx, "cellC", "fleet@cellC", 3))

	mem.now = func() time.Time { return base.Add(29 * 24 * time.Hour) }
	ok, err := mem.ShouldQuery(ctx, "cellC", "fleet@cellC")
	require.NoError(t, err)
	assert.False(t, ok)

	mem.now = func() time.Time { return base.Add(31 * 24 * time.Hour) }
	ok, err = mem.ShouldQuery(ctx, "cellC", "fleet@cellC")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemory_MatchesContract(t *testing.T) {
	mem := NewInMemory(time.Hour)
	ctx := context.Background()

	ok, err := mem.ShouldQuery(ctx, "c", "f")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mem.Record(ctx, "c", "f", 0))
	ok, err = mem.ShouldQuery(ctx, "c", "f")
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Now()
	mem.now = func() time.Time { return base.Add(2 * time.Hour) }
	ok, err = mem.ShouldQuery(ctx, "c", "f")
	require.NoError(t, err)
	assert.True(t, ok)
}
