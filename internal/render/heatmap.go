// Package render produces the visual mission artifacts: the density heatmap
// raster and the PDF summary report.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/driftline/driftline/internal/surface"
)

// heatRamp maps a normalized intensity in [0, 1] to a color on a dark-blue
// to red ramp. Zero-density cells stay fully transparent so the raster can
// be overlaid on a chart.
func heatRamp(v float64) color.NRGBA {
	if v <= 0 {
		return color.NRGBA{}
	}
	stops := []struct {
		at      float64
		r, g, b uint8
	}{
		{0.0, 10, 20, 120},
		{0.35, 20, 140, 200},
		{0.65, 250, 200, 40},
		{1.0, 220, 30, 30},
	}
	for i := 1; i < len(stops); i++ {
		if v > stops[i].at {
			continue
		}
		lo, hi := stops[i-1], stops[i]
		f := (v - lo.at) / (hi.at - lo.at)
		lerp := func(a, b uint8) uint8 {
			return uint8(math.Round(float64(a) + f*(float64(b)-float64(a))))
		}
		return color.NRGBA{R: lerp(lo.r, hi.r), G: lerp(lo.g, hi.g), B: lerp(lo.b, hi.b), A: 255}
	}
	return color.NRGBA{R: 220, G: 30, B: 30, A: 255}
}

// Heatmap rasterizes the density grid into a PNG, one pixel per grid cell.
// Rows are flipped so north (higher latitude) is at the top of the image.
// Intensity is scaled by the square root of relative density, which keeps
// the low-probability fringe visible next to the peak.
func Heatmap(grid *surface.Grid) ([]byte, error) {
	res := grid.Resolution
	peak := floats.Max(grid.Density)
	if peak <= 0 {
		return nil, fmt.Errorf("render heatmap: grid has no mass")
	}

	img := image.NewNRGBA(image.Rect(0, 0, res, res))
	for i := 0; i < res; i++ {
		for j := 0; j < res; j++ {
			v := math.Sqrt(grid.At(i, j) / peak)
			img.SetNRGBA(j, res-1-i, heatRamp(v))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render heatmap: %w", err)
	}
	return buf.Bytes(), nil
}
