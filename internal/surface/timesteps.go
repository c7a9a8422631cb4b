package surface

import (
	"time"

	"github.com/driftline/driftline/config"
	"github.com/driftline/driftline/internal/domain/model"
)

// TimestepContourLevels are the confidence levels derived per time step for
// the frontend time slider.
var TimestepContourLevels = []int{50, 90}

// maxTimestepFrames bounds the number of per-step frames. Long simulations
// are subsampled evenly, always keeping the first and last step.
const maxTimestepFrames = 24

// TimestepContour is the probability surface snapshot at one output time
// step: hours elapsed since the seed time, the step timestamp, the
// density-weighted centroid, and the search areas derivable at that step.
type TimestepContour struct {
	HoursElapsed float64
	Timestamp    time.Time
	CentroidLat  float64
	CentroidLon  float64
	Areas        map[int]*SearchArea
}

// TimestepContours builds one contour frame per sampled time step. A step
// where every particle is undefined produces no frame; the sequence stays
// ordered by elapsed time.
func TimestepContours(ds *model.TrajectoryDataset, cfg config.SurfaceConfig) []TimestepContour {
	steps := ds.NumTimeSteps()
	total := ds.NumParticles()
	if steps == 0 || total == 0 {
		return nil
	}

	var frames []TimestepContour
	for _, step := range sampleStepIndices(steps, maxTimestepFrames) {
		lat := make([]float64, 0, total)
		lon := make([]float64, 0, total)
		for p := 0; p < total; p++ {
			la, lo := ds.Lat[step][p], ds.Lon[step][p]
			if !la.Defined() || !lo.Defined() {
				continue
			}
			lat = append(lat, float64(la))
			lon = append(lon, float64(lo))
		}
		if len(lat) == 0 {
			continue
		}

		grid := BuildGrid(lat, lon, cfg)
		centroidLat, centroidLon := grid.Centroid()

		areas := make(map[int]*SearchArea, len(TimestepContourLevels))
		for _, level := range TimestepContourLevels {
			areas[level] = grid.ExtractSearchArea(level)
		}

		frames = append(frames, TimestepContour{
			HoursElapsed: ds.Times[step].Sub(ds.Times[0]).Hours(),
			Timestamp:    ds.Times[step],
			CentroidLat:  centroidLat,
			CentroidLon:  centroidLon,
			Areas:        areas,
		})
	}
	return frames
}

// sampleStepIndices selects at most maxFrames step indices, evenly spaced
// and always including the first and last step.
func sampleStepIndices(steps, maxFrames int) []int {
	if steps <= maxFrames {
		out := make([]int, steps)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, maxFrames)
	for s := 0; s < maxFrames; s++ {
		out = append(out, s*(steps-1)/(maxFrames-1))
	}
	return out
}
