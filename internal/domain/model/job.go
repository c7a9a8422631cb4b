package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/driftline/driftline/internal/domain/leeway"
	apperrors "github.com/driftline/driftline/internal/errors"
)

// DriftJobParams carries the simulation seed parameters of a mission job.
// Zero-valued duration/particles/object type are filled from configured
// defaults before validation.
type DriftJobParams struct {
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	StartTime     time.Time `json:"start_time"`
	DurationHours int       `json:"duration_hours"`
	NumParticles  int       `json:"num_particles"`
	ObjectType    int       `json:"object_type"`
	Backtracking  bool      `json:"backtracking,omitempty"`
}

// DriftJob is the mission job message carried on the drift job queue.
// Immutable once enqueued; produced by the API layer.
type DriftJob struct {
	MissionID string         `json:"mission_id"`
	Params    DriftJobParams `json:"params"`
}

// ParseDriftJob decodes a queue payload into a DriftJob. A parse failure is
// distinct from "queue empty": the caller drops the message rather than
// retrying, since a poison payload would loop forever.
func ParseDriftJob(data []byte) (*DriftJob, error) {
	var job DriftJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, apperrors.Validationf("malformed drift job payload: %v", err)
	}
	if strings.TrimSpace(job.MissionID) == "" {
		return nil, apperrors.ValidationField("mission_id", "mission_id is required")
	}
	if _, err := uuid.Parse(job.MissionID); err != nil {
		return nil, apperrors.ValidationField("mission_id", "mission_id must be a valid UUID")
	}
	return &job, nil
}

// ApplyDefaults fills zero-valued simulation parameters.
func (j *DriftJob) ApplyDefaults(particles, durationHours, objectClass int) {
	if j.Params.NumParticles <= 0 {
		j.Params.NumParticles = particles
	}
	if j.Params.DurationHours <= 0 {
		j.Params.DurationHours = durationHours
	}
	if j.Params.ObjectType <= 0 {
		j.Params.ObjectType = objectClass
	}
}

// Validate checks the seed parameters against the invocation preconditions.
func (j *DriftJob) Validate() error {
	p := j.Params
	if p.Latitude < -90 || p.Latitude > 90 {
		return apperrors.ValidationField("latitude", fmt.Sprintf("latitude %v outside [-90, 90]", p.Latitude))
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return apperrors.ValidationField("longitude", fmt.Sprintf("longitude %v outside [-180, 180]", p.Longitude))
	}
	if p.StartTime.IsZero() {
		return apperrors.ValidationField("start_time", "start_time is required")
	}
	if p.DurationHours <= 0 {
		return apperrors.ValidationField("duration_hours", "duration_hours must be > 0")
	}
	if p.NumParticles <= 0 {
		return apperrors.ValidationField("num_particles", "num_particles must be > 0")
	}
	if !leeway.Valid(p.ObjectType) {
		return apperrors.ValidationField("object_type",
			fmt.Sprintf("object_type %d is not a known leeway object class", p.ObjectType))
	}
	return nil
}

// ResultsJob is the message the worker enqueues once the raw trajectory
// artifact is durable, consumed by the results processor. The field name
// netcdf_path is part of the published interface.
type ResultsJob struct {
	MissionID  string `json:"mission_id"`
	NetcdfPath string `json:"netcdf_path"`
}

// ParseResultsJob decodes a results queue payload.
func ParseResultsJob(data []byte) (*ResultsJob, error) {
	var job ResultsJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, apperrors.Validationf("malformed results job payload: %v", err)
	}
	if strings.TrimSpace(job.MissionID) == "" {
		return nil, apperrors.ValidationField("mission_id", "mission_id is required")
	}
	if strings.TrimSpace(job.NetcdfPath) == "" {
		return nil, apperrors.ValidationField("netcdf_path", "netcdf_path is required")
	}
	return &job, nil
}

// Encode serialises the job for the queue.
func (j *ResultsJob) Encode() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, errors.Join(errors.New("encode results job"), err)
	}
	return data, nil
}
