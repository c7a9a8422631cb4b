package surface

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/driftline/driftline/config"
)

func testSurfaceConfig() config.SurfaceConfig {
	return config.SurfaceConfig{
		GridResolution:       100,
		SmoothingSigma:       1.5,
		PaddingDegrees:       0.05,
		MaxTrajectorySamples: 100,
	}
}

// clusteredPositions returns n positions normally scattered around a center.
// The seed is fixed so tests are reproducible.
func clusteredPositions(n int, centerLat, centerLon, sigma float64) (lat, lon []float64) {
	rng := rand.New(rand.NewSource(42))
	lat = make([]float64, n)
	lon = make([]float64, n)
	for i := 0; i < n; i++ {
		lat[i] = centerLat + rng.NormFloat64()*sigma
		lon[i] = centerLon + rng.NormFloat64()*sigma
	}
	return lat, lon
}

func TestBuildGridNormalizes(t *testing.T) {
	lat, lon := clusteredPositions(250, 60.05, -2.95, 0.01)
	g := BuildGrid(lat, lon, testSurfaceConfig())

	assert.InDelta(t, 1.0, floats.Sum(g.Density), 1e-9)
	assert.Len(t, g.LatEdges, g.Resolution+1)
	assert.Len(t, g.LatCenters, g.Resolution)

	// Centers sit strictly inside their edges.
	assert.Greater(t, g.LatCenters[0], g.LatEdges[0])
	assert.Less(t, g.LatCenters[g.Resolution-1], g.LatEdges[g.Resolution])
}

func TestCentroidTracksCluster(t *testing.T) {
	lat, lon := clusteredPositions(100, 60.05, -2.95, 0.005)
	g := BuildGrid(lat, lon, testSurfaceConfig())

	centroidLat, centroidLon := g.Centroid()
	assert.InDelta(t, 60.05, centroidLat, 0.01)
	assert.InDelta(t, -2.95, centroidLon, 0.01)

	// Centroid lies within the grid bounding box.
	minLat, maxLat, minLon, maxLon := g.Bounds()
	assert.GreaterOrEqual(t, centroidLat, minLat)
	assert.LessOrEqual(t, centroidLat, maxLat)
	assert.GreaterOrEqual(t, centroidLon, minLon)
	assert.LessOrEqual(t, centroidLon, maxLon)
}

func TestBuildGridSinglePoint(t *testing.T) {
	// A degenerate cloud still yields a usable grid thanks to padding.
	g := BuildGrid([]float64{60.0}, []float64{-3.0}, testSurfaceConfig())

	assert.InDelta(t, 1.0, floats.Sum(g.Density), 1e-9)
	centroidLat, centroidLon := g.Centroid()
	assert.InDelta(t, 60.0, centroidLat, 0.01)
	assert.InDelta(t, -3.0, centroidLon, 0.01)
}

func TestThresholdLevelTieBreak(t *testing.T) {
	g := &Grid{
		Resolution: 2,
		LatEdges:   linspace(0, 2, 3),
		LonEdges:   linspace(0, 2, 3),
		Density:    []float64{0.5, 0.3, 0.15, 0.05},
	}
	g.LatCenters = centersOf(g.LatEdges)
	g.LonCenters = centersOf(g.LonEdges)

	// Cumulative sum reaches exactly 0.5 at the first cell: that cell is
	// included (>= rule), so the level equals its density.
	assert.InDelta(t, 0.5, g.ThresholdLevel(0.5), 1e-12)
	assert.InDelta(t, 0.5, g.MassAtOrAbove(g.ThresholdLevel(0.5)), 1e-12)

	assert.InDelta(t, 0.3, g.ThresholdLevel(0.8), 1e-12)
	assert.InDelta(t, 0.15, g.ThresholdLevel(0.9), 1e-12)
	assert.InDelta(t, 0.05, g.ThresholdLevel(1.0), 1e-12)
}

func TestThresholdLevelUnreachable(t *testing.T) {
	g := &Grid{
		Resolution: 2,
		LatEdges:   linspace(0, 2, 3),
		LonEdges:   linspace(0, 2, 3),
		Density:    []float64{0, 0, 0, 0},
	}
	g.LatCenters = centersOf(g.LatEdges)
	g.LonCenters = centersOf(g.LonEdges)

	assert.True(t, math.IsInf(g.ThresholdLevel(0.5), 1))
}

func TestThresholdMassMonotone(t *testing.T) {
	lat, lon := clusteredPositions(500, 60.0, -3.0, 0.02)
	g := BuildGrid(lat, lon, testSurfaceConfig())

	mass50 := g.MassAtOrAbove(g.ThresholdLevel(0.50))
	mass90 := g.MassAtOrAbove(g.ThresholdLevel(0.90))
	mass95 := g.MassAtOrAbove(g.ThresholdLevel(0.95))

	assert.GreaterOrEqual(t, mass50, 0.50)
	assert.GreaterOrEqual(t, mass90, 0.90)
	assert.GreaterOrEqual(t, mass95, 0.95)
	assert.GreaterOrEqual(t, mass90, mass50)
	assert.GreaterOrEqual(t, mass95, mass90)
}

func TestBinIndexEdgeValues(t *testing.T) {
	edges := linspace(0, 10, 11)

	assert.Equal(t, 0, binIndex(edges, 0))
	assert.Equal(t, 3, binIndex(edges, 3.5))
	// The final edge belongs to the last bin, not one past it.
	assert.Equal(t, 9, binIndex(edges, 10))
	// Values out of range clamp rather than panic.
	assert.Equal(t, 0, binIndex(edges, -1))
	assert.Equal(t, 9, binIndex(edges, 11))
}

func TestSmoothingSpreadsImpulse(t *testing.T) {
	// Impulse far enough from the border that no kernel window is clamped.
	res := 30
	data := make([]float64, res*res)
	data[res*15+15] = 100

	smooth2D(data, res, 1.5)

	require.InDelta(t, 100, floats.Sum(data), 1e-9)
	// The impulse spread out: the peak dropped and neighbors picked up mass.
	assert.Less(t, data[res*15+15], 100.0)
	assert.Greater(t, data[res*15+16], 0.0)
	assert.Greater(t, data[res*14+15], 0.0)
	// Symmetric kernel, symmetric spread.
	assert.InDelta(t, data[res*15+16], data[res*15+14], 1e-9)
	assert.InDelta(t, data[res*16+15], data[res*14+15], 1e-9)
}
