package surface

import (
	"github.com/driftline/driftline/internal/domain/model"
)

// Trajectory is one particle's path as an ordered (lon, lat) sequence with
// undefined samples removed. Gaps left by stranding are dropped, never
// interpolated.
type Trajectory struct {
	ParticleIndex int
	Points        [][2]float64
}

// SampleTrajectories selects at most maxSamples trajectories, evenly spaced
// by particle index across the full population, for visualization.
// Trajectories with no defined samples at all are omitted.
func SampleTrajectories(ds *model.TrajectoryDataset, maxSamples int) []Trajectory {
	particles := ds.NumParticles()
	if particles == 0 || maxSamples < 1 {
		return nil
	}

	count := maxSamples
	if particles < count {
		count = particles
	}

	out := make([]Trajectory, 0, count)
	for s := 0; s < count; s++ {
		// Even spacing over [0, particles): index s*particles/count.
		idx := s * particles / count

		points := make([][2]float64, 0, ds.NumTimeSteps())
		for step := 0; step < ds.NumTimeSteps(); step++ {
			lat, lon := ds.Lat[step][idx], ds.Lon[step][idx]
			if !lat.Defined() || !lon.Defined() {
				continue
			}
			points = append(points, [2]float64{float64(lon), float64(lat)})
		}
		if len(points) == 0 {
			continue
		}
		out = append(out, Trajectory{ParticleIndex: idx, Points: points})
	}
	return out
}
