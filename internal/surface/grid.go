// Package surface converts raw particle trajectories into a probability
// density surface and its derived search products. This is the algorithmic
// heart of the pipeline; everything here is pure float64 math with no I/O.
package surface

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/driftline/driftline/config"
)

// Grid is a normalized 2-D probability density histogram over a padded
// bounding box. Bin edges and centers are computed once at construction and
// shared with polygon extraction, so grid indices always map back to the
// same real-world coordinates.
type Grid struct {
	Resolution int

	// Edges have Resolution+1 entries; Centers have Resolution.
	LatEdges   []float64
	LonEdges   []float64
	LatCenters []float64
	LonCenters []float64

	// Density is row-major: Density[latIdx*Resolution+lonIdx]. Sums to 1
	// after construction.
	Density []float64
}

// BuildGrid constructs the density grid from valid final positions: raw
// histogram, Gaussian smoothing, then normalization to unit mass. Positions
// must be non-empty and NaN-free; the caller filters stranded particles.
func BuildGrid(lat, lon []float64, cfg config.SurfaceConfig) *Grid {
	res := cfg.GridResolution

	minLat, maxLat := floats.Min(lat), floats.Max(lat)
	minLon, maxLon := floats.Min(lon), floats.Max(lon)

	pad := cfg.PaddingDegrees
	if pad <= 0 {
		pad = 0.05
	}
	minLat -= pad
	maxLat += pad
	minLon -= pad
	maxLon += pad

	g := &Grid{
		Resolution: res,
		LatEdges:   linspace(minLat, maxLat, res+1),
		LonEdges:   linspace(minLon, maxLon, res+1),
		Density:    make([]float64, res*res),
	}
	g.LatCenters = centersOf(g.LatEdges)
	g.LonCenters = centersOf(g.LonEdges)

	for i := range lat {
		li := binIndex(g.LatEdges, lat[i])
		lo := binIndex(g.LonEdges, lon[i])
		g.Density[li*res+lo]++
	}

	smooth2D(g.Density, res, cfg.SmoothingSigma)

	if total := floats.Sum(g.Density); total > 0 {
		floats.Scale(1/total, g.Density)
	}
	return g
}

// Bounds returns the padded bounding box of the grid.
func (g *Grid) Bounds() (minLat, maxLat, minLon, maxLon float64) {
	return g.LatEdges[0], g.LatEdges[len(g.LatEdges)-1],
		g.LonEdges[0], g.LonEdges[len(g.LonEdges)-1]
}

// At returns the density of cell (latIdx, lonIdx).
func (g *Grid) At(latIdx, lonIdx int) float64 {
	return g.Density[latIdx*g.Resolution+lonIdx]
}

// Centroid returns the density-weighted mean position. With unit total mass
// this is the sum of center*density over all cells, which biases toward the
// densest cluster rather than the arithmetic particle mean.
func (g *Grid) Centroid() (lat, lon float64) {
	for i := 0; i < g.Resolution; i++ {
		for j := 0; j < g.Resolution; j++ {
			d := g.At(i, j)
			lat += g.LatCenters[i] * d
			lon += g.LonCenters[j] * d
		}
	}
	return lat, lon
}

// ThresholdLevel returns the smallest cell density such that cells at or
// above it hold at least mass fraction of total probability. The crossing
// cell is included (>= rule). mass is in (0, 1].
func (g *Grid) ThresholdLevel(mass float64) float64 {
	sorted := make([]float64, len(g.Density))
	copy(sorted, g.Density)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	cum := 0.0
	for _, d := range sorted {
		cum += d
		if cum >= mass {
			return d
		}
	}
	// Mass unreachable (degenerate grid); no cell qualifies.
	return math.Inf(1)
}

// MassAtOrAbove returns the total probability mass of cells with density >= level.
func (g *Grid) MassAtOrAbove(level float64) float64 {
	mass := 0.0
	for _, d := range g.Density {
		if d >= level {
			mass += d
		}
	}
	return mass
}

// CellAreaKm2 approximates the area of one grid cell in km² at the grid's
// mean latitude, using the small-region equirectangular approximation.
func (g *Grid) CellAreaKm2() float64 {
	const kmPerDegree = 111.32
	latStep := g.LatEdges[1] - g.LatEdges[0]
	lonStep := g.LonEdges[1] - g.LonEdges[0]
	midLat := (g.LatEdges[0] + g.LatEdges[len(g.LatEdges)-1]) / 2
	return latStep * kmPerDegree * lonStep * kmPerDegree * math.Cos(midLat*math.Pi/180)
}

// smooth2D applies a separable Gaussian kernel in place over a res×res
// row-major grid. Kernel radius is 3 sigma, clamped at the grid border by
// renormalizing each window.
func smooth2D(data []float64, res int, sigma float64) {
	if sigma <= 0 {
		return
	}
	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2
	tmp := make([]float64, len(data))

	// Rows (along lon).
	for i := 0; i < res; i++ {
		row := data[i*res : (i+1)*res]
		out := tmp[i*res : (i+1)*res]
		convolve1D(row, out, kernel, radius)
	}
	// Columns (along lat).
	col := make([]float64, res)
	out := make([]float64, res)
	for j := 0; j < res; j++ {
		for i := 0; i < res; i++ {
			col[i] = tmp[i*res+j]
		}
		convolve1D(col, out, kernel, radius)
		for i := 0; i < res; i++ {
			data[i*res+j] = out[i]
		}
	}
}

func convolve1D(in, out, kernel []float64, radius int) {
	n := len(in)
	for i := 0; i < n; i++ {
		sum, weight := 0.0, 0.0
		for k := -radius; k <= radius; k++ {
			idx := i + k
			if idx < 0 || idx >= n {
				continue
			}
			w := kernel[k+radius]
			sum += in[idx] * w
			weight += w
		}
		if weight > 0 {
			out[i] = sum / weight
		}
	}
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	for k := -radius; k <= radius; k++ {
		kernel[k+radius] = math.Exp(-float64(k*k) / (2 * sigma * sigma))
	}
	return kernel
}

// binIndex locates the histogram bin for v; values on the final edge fall
// into the last bin.
func binIndex(edges []float64, v float64) int {
	n := len(edges) - 1
	width := (edges[n] - edges[0]) / float64(n)
	if width <= 0 {
		return 0
	}
	idx := int((v - edges[0]) / width)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

func centersOf(edges []float64) []float64 {
	out := make([]float64, len(edges)-1)
	for i := range out {
		out[i] = (edges[i] + edges[i+1]) / 2
	}
	return out
}

