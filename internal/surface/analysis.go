package surface

import (
	"errors"
	"fmt"
	"time"

	"github.com/driftline/driftline/config"
	apperrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/internal/domain/model"
)

// ErrNoValidParticles marks a dataset whose every particle stranded before
// the simulation horizon. No search area can be produced from it.
var ErrNoValidParticles = errors.New("no valid particles at final time step")

// ConfidenceLevels are the probability-mass percentages search areas are
// derived for. The 50 and 90 levels feed the result row; all levels appear
// in the GeoJSON output.
var ConfidenceLevels = []int{50, 90, 95}

// Analysis is the complete derived product set for one mission.
type Analysis struct {
	CentroidLat  float64
	CentroidLon  float64
	CentroidTime time.Time

	ParticleCount int
	StrandedCount int

	Grid         *Grid
	SearchAreas  map[int]*SearchArea
	Trajectories []Trajectory
	Timesteps    []TimestepContour

	// ComputationSeconds is the wall time spent deriving this analysis,
	// recorded by the results processor before publishing.
	ComputationSeconds float64
}

// SearchArea returns the area for a confidence level, nil ring included.
func (a *Analysis) SearchArea(level int) *SearchArea {
	return a.SearchAreas[level]
}

// Analyze runs the full probability surface derivation over a trajectory
// dataset: final-position extraction with stranded accounting, density grid,
// centroid, per-level search areas, trajectory samples, and per-time-step
// contour frames.
func Analyze(ds *model.TrajectoryDataset, cfg config.SurfaceConfig) (*Analysis, error) {
	if err := ds.Validate(); err != nil {
		return nil, apperrors.Analysis("analysis failed: invalid trajectory dataset", err)
	}

	final := ds.NumTimeSteps() - 1
	total := ds.NumParticles()

	lat := make([]float64, 0, total)
	lon := make([]float64, 0, total)
	for p := 0; p < total; p++ {
		la, lo := ds.Lat[final][p], ds.Lon[final][p]
		if !la.Defined() || !lo.Defined() {
			continue
		}
		lat = append(lat, float64(la))
		lon = append(lon, float64(lo))
	}

	stranded := total - len(lat)
	if len(lat) == 0 {
		return nil, apperrors.Analysis(
			fmt.Sprintf("analysis failed: all %d particles stranded", total),
			ErrNoValidParticles)
	}

	grid := BuildGrid(lat, lon, cfg)
	centroidLat, centroidLon := grid.Centroid()

	areas := make(map[int]*SearchArea, len(ConfidenceLevels))
	for _, level := range ConfidenceLevels {
		areas[level] = grid.ExtractSearchArea(level)
	}

	return &Analysis{
		CentroidLat:   centroidLat,
		CentroidLon:   centroidLon,
		CentroidTime:  ds.FinalTime(),
		ParticleCount: total,
		StrandedCount: stranded,
		Grid:          grid,
		SearchAreas:   areas,
		Trajectories:  SampleTrajectories(ds, cfg.MaxTrajectorySamples),
		Timesteps:     TimestepContours(ds, cfg),
	}, nil
}
