package model

import (
	"bytes"
	"math"
	"strconv"
	"time"

	apperrors "github.com/driftline/driftline/internal/errors"
)

// Coord is a latitude or longitude sample that may be undefined. A stranded
// particle's position is NaN from its stranding step onward; that is encoded
// as JSON null and must never collapse to zero.
type Coord float64

var nullLiteral = []byte("null")

// Defined reports whether the coordinate holds a real position.
func (c Coord) Defined() bool {
	return !math.IsNaN(float64(c))
}

// MarshalJSON encodes NaN as null.
func (c Coord) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(c)) {
		return nullLiteral, nil
	}
	return strconv.AppendFloat(nil, float64(c), 'g', -1, 64), nil
}

// UnmarshalJSON decodes null as NaN.
func (c *Coord) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, nullLiteral) {
		*c = Coord(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*c = Coord(v)
	return nil
}

// TrajectoryDataset is the raw simulation engine output: dense per-particle
// positions indexed by (time step, particle index). Position arrays are
// rectangular; undefined (stranded) samples are NaN.
type TrajectoryDataset struct {
	MissionID string      `json:"mission_id"`
	Times     []time.Time `json:"times"`
	Lat       [][]Coord   `json:"lat"`
	Lon       [][]Coord   `json:"lon"`
}

// NumTimeSteps returns the number of output time steps.
func (d *TrajectoryDataset) NumTimeSteps() int {
	return len(d.Times)
}

// NumParticles returns the particle count, 0 for an empty dataset.
func (d *TrajectoryDataset) NumParticles() int {
	if len(d.Lat) == 0 {
		return 0
	}
	return len(d.Lat[0])
}

// FinalTime returns the timestamp of the last output step.
func (d *TrajectoryDataset) FinalTime() time.Time {
	if len(d.Times) == 0 {
		return time.Time{}
	}
	return d.Times[len(d.Times)-1]
}

// Validate checks the dataset is rectangular and non-empty.
func (d *TrajectoryDataset) Validate() error {
	steps := len(d.Times)
	if steps == 0 {
		return apperrors.Validation("trajectory dataset has no time steps")
	}
	if len(d.Lat) != steps || len(d.Lon) != steps {
		return apperrors.Validationf(
			"trajectory dataset dimensions mismatch: %d times, %d lat rows, %d lon rows",
			steps, len(d.Lat), len(d.Lon))
	}
	particles := len(d.Lat[0])
	if particles == 0 {
		return apperrors.Validation("trajectory dataset has no particles")
	}
	for i := range d.Lat {
		if len(d.Lat[i]) != particles || len(d.Lon[i]) != particles {
			return apperrors.Validationf("trajectory dataset row %d is ragged", i)
		}
	}
	return nil
}
