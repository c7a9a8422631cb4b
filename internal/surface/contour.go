package surface

import "math"

// SearchArea is the polygonal search region for one confidence level. Ring
// vertices are (lon, lat) pairs over the grid's bin centers, ordered along
// the boundary and closed (first == last). Ring is nil when the threshold
// was unreachable on this grid.
type SearchArea struct {
	ConfidenceLevel int
	Ring            [][2]float64
	CellCount       int
	Mass            float64
	AreaKm2         float64
}

// ExtractSearchArea derives the search polygon for a confidence level given
// in percent. The mask keeps cells at or above the threshold density; the
// largest 8-connected component (first found on ties, scanning row-major) is
// traced into a closed ring. A level no component can reach yields a nil
// Ring, not an error.
func (g *Grid) ExtractSearchArea(levelPercent int) *SearchArea {
	area := &SearchArea{ConfidenceLevel: levelPercent}

	threshold := g.ThresholdLevel(float64(levelPercent) / 100)
	if math.IsInf(threshold, 1) {
		return area
	}

	mask := make([]bool, len(g.Density))
	for i, d := range g.Density {
		if d > 0 && d >= threshold {
			mask[i] = true
		}
	}

	component := largestComponent(mask, g.Resolution)
	if len(component) == 0 {
		return area
	}

	area.CellCount = len(component)
	area.AreaKm2 = float64(len(component)) * g.CellAreaKm2()
	for idx := range component {
		area.Mass += g.Density[idx]
	}
	area.Ring = g.traceBoundary(component)
	return area
}

// largestComponent labels 8-connected components over the mask and returns
// the cell set of the largest one. Ties go to the component found first in
// row-major scan order.
func largestComponent(mask []bool, res int) map[int]bool {
	visited := make([]bool, len(mask))
	var best map[int]bool

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}

		component := map[int]bool{start: true}
		visited[start] = true
		frontier := []int{start}
		for len(frontier) > 0 {
			idx := frontier[len(frontier)-1]
			frontier = frontier[:len(frontier)-1]
			i, j := idx/res, idx%res
			for di := -1; di <= 1; di++ {
				for dj := -1; dj <= 1; dj++ {
					ni, nj := i+di, j+dj
					if ni < 0 || ni >= res || nj < 0 || nj >= res {
						continue
					}
					nIdx := ni*res + nj
					if mask[nIdx] && !visited[nIdx] {
						visited[nIdx] = true
						component[nIdx] = true
						frontier = append(frontier, nIdx)
					}
				}
			}
		}

		if len(component) > len(best) {
			best = component
		}
	}
	return best
}

// Moore neighborhood in clockwise order starting west, as (dLat, dLon).
var mooreDirs = [8][2]int{
	{0, -1}, {-1, -1}, {-1, 0}, {-1, 1},
	{0, 1}, {1, 1}, {1, 0}, {1, -1},
}

// traceBoundary walks the component's outer boundary with Moore-neighbor
// tracing and maps each boundary cell to its bin center as a (lon, lat)
// vertex. The ring is closed by repeating the first vertex.
func (g *Grid) traceBoundary(component map[int]bool) [][2]float64 {
	res := g.Resolution

	// Start at the first component cell in row-major order; its west
	// neighbor is guaranteed outside.
	start := -1
	for idx := 0; idx < res*res; idx++ {
		if component[idx] {
			start = idx
			break
		}
	}
	if start < 0 {
		return nil
	}

	center := func(idx int) [2]float64 {
		return [2]float64{g.LonCenters[idx%res], g.LatCenters[idx/res]}
	}

	ring := [][2]float64{center(start)}

	current := start
	// Direction from current toward the last known outside cell; the scan
	// resumes just past it. Initially west, which is outside by choice of
	// start.
	backtrack := 0
	firstNext := -1
	// The trace visits each boundary cell at most once per incident boundary
	// segment; 4*cells+8 safely bounds any legal walk.
	for steps := 0; steps < 4*len(component)+8; steps++ {
		next, entry := -1, -1
		for k := 1; k <= 8; k++ {
			d := (backtrack + k) % 8
			ni := current/res + mooreDirs[d][0]
			nj := current%res + mooreDirs[d][1]
			if ni < 0 || ni >= res || nj < 0 || nj >= res {
				continue
			}
			if component[ni*res+nj] {
				next = ni*res + nj
				entry = d
				break
			}
		}
		if next < 0 {
			// Isolated cell; the ring is just its center.
			break
		}
		// Done once the walk is about to repeat its first move from start.
		if current == start && next == firstNext {
			break
		}
		if current == start && firstNext < 0 {
			firstNext = next
		}
		ring = append(ring, center(next))
		current = next
		// The last background cell examined sat one step counterclockwise
		// of the entry direction; seen from next that is entry+5.
		backtrack = (entry + 5) % 8
	}

	// Close the ring.
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}
