// Package model defines the core data types used throughout the mission pipeline.
package model

import (
	"encoding/json"
	"time"
)

// MissionStatus represents the lifecycle state of a mission.
type MissionStatus string

const (
	// StatusQueued indicates a mission is waiting for a worker.
	StatusQueued MissionStatus = "queued"
	// StatusProcessing indicates a worker has claimed the mission.
	StatusProcessing MissionStatus = "processing"
	// StatusCompleted indicates derived products exist and the result row is populated.
	StatusCompleted MissionStatus = "completed"
	// StatusFailed indicates the mission terminated with an error message.
	StatusFailed MissionStatus = "failed"
)

// Valid returns true if the MissionStatus is one of the known states.
func (s MissionStatus) Valid() bool {
	return s == StatusQueued || s == StatusProcessing || s == StatusCompleted || s == StatusFailed
}

// Terminal reports whether the status can never change again. A failed
// mission is terminal; resubmission happens as a new mission.
func (s MissionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Mission is the mission store row owned by this pipeline. The API layer
// creates rows in `queued`; the pipeline drives them forward from there.
type Mission struct {
	ID           string        `json:"id"                      db:"id"`
	Status       MissionStatus `json:"status"                  db:"status"`
	ErrorMessage *string       `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time     `json:"created_at"              db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"              db:"updated_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"  db:"completed_at"`
}

// MissionResult is the one-row-per-mission summary of a completed simulation.
// The worker seeds the row with the raw trajectory reference; the results
// processor fills in the derived fields. A mission may only transition to
// completed once CentroidLat/CentroidLon are non-null.
type MissionResult struct {
	MissionID        string          `json:"mission_id"                   db:"mission_id"`
	NetcdfPath       *string         `json:"netcdf_path,omitempty"        db:"netcdf_path"`
	CentroidLat      *float64        `json:"centroid_lat,omitempty"       db:"centroid_lat"`
	CentroidLon      *float64        `json:"centroid_lon,omitempty"       db:"centroid_lon"`
	CentroidTime     *time.Time      `json:"centroid_time,omitempty"      db:"centroid_time"`
	SearchArea50Geom json.RawMessage `json:"search_area_50_geom,omitempty" db:"search_area_50_geom"`
	SearchArea90Geom json.RawMessage `json:"search_area_90_geom,omitempty" db:"search_area_90_geom"`
	// TimestepContours is the per-time-step contour sequence consumed by the
	// frontend time slider: a JSON array of entries carrying hours_elapsed,
	// timestamp, centroid, and the contour geometries available at that step.
	TimestepContours       json.RawMessage `json:"timestep_contours,omitempty"        db:"timestep_contours"`
	GeojsonPath            *string         `json:"geojson_path,omitempty"             db:"geojson_path"`
	HeatmapPath            *string         `json:"heatmap_path,omitempty"             db:"heatmap_path"`
	PdfReportPath          *string         `json:"pdf_report_path,omitempty"          db:"pdf_report_path"`
	ParticleCount          *int            `json:"particle_count,omitempty"           db:"particle_count"`
	StrandedCount          *int            `json:"stranded_count,omitempty"           db:"stranded_count"`
	ComputationTimeSeconds *float64        `json:"computation_time_seconds,omitempty" db:"computation_time_seconds"`
	CreatedAt              time.Time       `json:"created_at"                         db:"created_at"`
}
