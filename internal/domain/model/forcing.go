package model

import "time"

// Forcing layer names as staged by the data service.
const (
	ForcingLayerOceanCurrents = "ocean_currents"
	ForcingLayerWind          = "wind"
	ForcingLayerWaves         = "waves"
)

// ForcingRequest describes the spatial/temporal window of environmental data
// needed for one simulation: the seed position padded by the configured
// buffer, over the forecast window.
type ForcingRequest struct {
	MinLat float64   `json:"min_lat"`
	MaxLat float64   `json:"max_lat"`
	MinLon float64   `json:"min_lon"`
	MaxLon float64   `json:"max_lon"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// ForcingLayer references one gridded environmental field in the data bucket.
type ForcingLayer struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// ForcingBundle is the set of forcing layers available for a simulation.
// Any layer may be nil; the engine falls back to constant-condition defaults
// for missing layers rather than failing the mission.
type ForcingBundle struct {
	OceanCurrents *ForcingLayer `json:"ocean_currents,omitempty"`
	Wind          *ForcingLayer `json:"wind,omitempty"`
	Waves         *ForcingLayer `json:"waves,omitempty"`
}

// Complete reports whether every forcing layer is present.
func (b ForcingBundle) Complete() bool {
	return b.OceanCurrents != nil && b.Wind != nil && b.Waves != nil
}

// Empty reports whether no forcing layer is present.
func (b ForcingBundle) Empty() bool {
	return b.OceanCurrents == nil && b.Wind == nil && b.Waves == nil
}

// SimulationRequest is the narrow invocation contract of the simulation
// engine: seed parameters plus forcing references and engine tunables.
type SimulationRequest struct {
	MissionID             string         `json:"mission_id"`
	Params                DriftJobParams `json:"params"`
	Forcing               ForcingBundle  `json:"forcing"`
	TimeStepSeconds       int            `json:"time_step_seconds"`
	OutputIntervalSeconds int            `json:"output_interval_seconds"`
	SeedRadiusM           int            `json:"seed_radius_m"`
}
