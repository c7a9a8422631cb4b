package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLargestComponentPicksBiggest(t *testing.T) {
	res := 6
	mask := make([]bool, res*res)
	set := func(i, j int) { mask[i*res+j] = true }

	// 2x2 block and a separate 3-cell diagonal strip (8-connected).
	set(0, 0)
	set(0, 1)
	set(1, 0)
	set(1, 1)
	set(3, 3)
	set(4, 4)
	set(5, 5)

	component := largestComponent(mask, res)
	assert.Len(t, component, 4)
	assert.True(t, component[0])
	assert.True(t, component[1*res+1])
	assert.False(t, component[3*res+3])
}

func TestLargestComponentTieBreakFirstFound(t *testing.T) {
	res := 6
	mask := make([]bool, res*res)
	// Two 2-cell components of equal size; the row-major first one wins.
	mask[0*res+0] = true
	mask[0*res+1] = true
	mask[4*res+4] = true
	mask[4*res+5] = true

	component := largestComponent(mask, res)
	assert.Len(t, component, 2)
	assert.True(t, component[0])
	assert.True(t, component[1])
}

func TestDiagonalCellsConnect(t *testing.T) {
	res := 4
	mask := make([]bool, res*res)
	mask[0*res+0] = true
	mask[1*res+1] = true
	mask[2*res+2] = true

	component := largestComponent(mask, res)
	assert.Len(t, component, 3)
}

// uniformGrid builds a grid whose density is concentrated uniformly on the
// given cells, for deterministic contour tests.
func uniformGrid(res int, cells [][2]int) *Grid {
	g := &Grid{
		Resolution: res,
		LatEdges:   linspace(0, float64(res), res+1),
		LonEdges:   linspace(10, 10+float64(res), res+1),
		Density:    make([]float64, res*res),
	}
	g.LatCenters = centersOf(g.LatEdges)
	g.LonCenters = centersOf(g.LonEdges)
	for _, c := range cells {
		g.Density[c[0]*res+c[1]] = 1 / float64(len(cells))
	}
	return g
}

func TestExtractSearchAreaSquare(t *testing.T) {
	g := uniformGrid(8, [][2]int{{3, 3}, {3, 4}, {4, 3}, {4, 4}})

	area := g.ExtractSearchArea(90)
	require.NotNil(t, area)
	assert.Equal(t, 90, area.ConfidenceLevel)
	assert.Equal(t, 4, area.CellCount)
	assert.InDelta(t, 1.0, area.Mass, 1e-12)
	assert.Greater(t, area.AreaKm2, 0.0)

	ring := area.Ring
	require.NotEmpty(t, ring)
	// Closed ring: first vertex equals last.
	assert.Equal(t, ring[0], ring[len(ring)-1])
	// The boundary of a 2x2 block visits all four cell centers.
	distinct := map[[2]float64]bool{}
	for _, v := range ring {
		distinct[v] = true
	}
	assert.Len(t, distinct, 4)

	// Vertices are (lon, lat) over the bin centers.
	for _, v := range ring {
		assert.GreaterOrEqual(t, v[0], g.LonCenters[3])
		assert.LessOrEqual(t, v[0], g.LonCenters[4])
		assert.GreaterOrEqual(t, v[1], g.LatCenters[3])
		assert.LessOrEqual(t, v[1], g.LatCenters[4])
	}
}

func TestExtractSearchAreaFiftyTakesDensestCells(t *testing.T) {
	// One dominant cell (0.6) plus a spread remainder: the 50% area is the
	// single dominant cell, the 90% area needs more.
	g := uniformGrid(8, nil)
	g.Density[3*8+3] = 0.6
	g.Density[3*8+4] = 0.2
	g.Density[4*8+3] = 0.15
	g.Density[4*8+4] = 0.05

	area50 := g.ExtractSearchArea(50)
	require.NotNil(t, area50)
	assert.Equal(t, 1, area50.CellCount)
	assert.InDelta(t, 0.6, area50.Mass, 1e-12)

	area90 := g.ExtractSearchArea(90)
	require.NotNil(t, area90)
	assert.Equal(t, 3, area90.CellCount)
	assert.GreaterOrEqual(t, area90.Mass, 0.9)
	assert.GreaterOrEqual(t, area90.AreaKm2, area50.AreaKm2)
}

func TestExtractSearchAreaUnreachable(t *testing.T) {
	g := uniformGrid(8, nil) // zero density everywhere

	area := g.ExtractSearchArea(50)
	require.NotNil(t, area)
	assert.Nil(t, area.Ring)
	assert.Zero(t, area.CellCount)
}

func TestSingleCellRingCloses(t *testing.T) {
	g := uniformGrid(8, [][2]int{{2, 5}})

	area := g.ExtractSearchArea(50)
	require.NotNil(t, area)
	assert.Equal(t, 1, area.CellCount)
	require.NotEmpty(t, area.Ring)
	assert.Equal(t, area.Ring[0], area.Ring[len(area.Ring)-1])
	assert.Equal(t, [2]float64{g.LonCenters[5], g.LatCenters[2]}, area.Ring[0])
}
