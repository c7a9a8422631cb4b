// Package geo builds the GeoJSON output document for a mission: sampled
// trajectories as LineStrings and search-area polygons as single-ring
// Polygons.
package geo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/driftline/driftline/internal/surface"
)

// Geometry is a GeoJSON geometry. Coordinates hold [][2]float64 for
// LineString and [][][2]float64 for Polygon, both as (lon, lat).
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// Feature is a GeoJSON feature.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// TrajectoryFeature encodes one sampled trajectory as a LineString with a
// trajectory_id property.
func TrajectoryFeature(tr surface.Trajectory) Feature {
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "LineString",
			Coordinates: tr.Points,
		},
		Properties: map[string]any{
			"trajectory_id": tr.ParticleIndex,
		},
	}
}

// SearchAreaFeature encodes a search area as a Polygon with a single linear
// ring, tagged with its confidence level and approximate area. Returns
// ok=false when the area has no ring.
func SearchAreaFeature(area *surface.SearchArea) (Feature, bool) {
	if area == nil || len(area.Ring) == 0 {
		return Feature{}, false
	}
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Polygon",
			Coordinates: [][][2]float64{area.Ring},
		},
		Properties: map[string]any{
			"confidence_level": area.ConfidenceLevel,
			"area_km2":         area.AreaKm2,
		},
	}, true
}

// BuildFeatureCollection assembles the mission's GeoJSON document:
// trajectories first, then one polygon per confidence level that produced a
// ring, in ascending level order.
func BuildFeatureCollection(analysis *surface.Analysis) *FeatureCollection {
	fc := &FeatureCollection{Type: "FeatureCollection"}

	for _, tr := range analysis.Trajectories {
		fc.Features = append(fc.Features, TrajectoryFeature(tr))
	}
	for _, level := range surface.ConfidenceLevels {
		if feature, ok := SearchAreaFeature(analysis.SearchArea(level)); ok {
			fc.Features = append(fc.Features, feature)
		}
	}
	return fc
}

// Encode serializes the collection.
func (fc *FeatureCollection) Encode() ([]byte, error) {
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encode feature collection: %w", err)
	}
	return data, nil
}

// TimestepContourEntry is one frame of the per-time-step contour sequence
// stored in the result row and consumed by the frontend time slider.
type TimestepContourEntry struct {
	HoursElapsed float64                    `json:"hours_elapsed"`
	Timestamp    time.Time                  `json:"timestamp"`
	CentroidLat  float64                    `json:"centroid_lat"`
	CentroidLon  float64                    `json:"centroid_lon"`
	Contours     map[string]json.RawMessage `json:"contours,omitempty"`
}

// TimestepContoursJSON encodes the contour frames as the JSON array persisted
// in the timestep_contours column. Levels without a derivable ring are absent
// from a frame's contours map. Returns nil for an empty sequence, which maps
// to a NULL column.
func TimestepContoursJSON(frames []surface.TimestepContour) (json.RawMessage, error) {
	if len(frames) == 0 {
		return nil, nil
	}
	entries := make([]TimestepContourEntry, 0, len(frames))
	for _, frame := range frames {
		entry := TimestepContourEntry{
			HoursElapsed: frame.HoursElapsed,
			Timestamp:    frame.Timestamp,
			CentroidLat:  frame.CentroidLat,
			CentroidLon:  frame.CentroidLon,
		}
		for level, area := range frame.Areas {
			geom, err := PolygonGeometry(area)
			if err != nil {
				return nil, err
			}
			if geom == nil {
				continue
			}
			if entry.Contours == nil {
				entry.Contours = make(map[string]json.RawMessage, len(frame.Areas))
			}
			entry.Contours[strconv.Itoa(level)] = geom
		}
		entries = append(entries, entry)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode timestep contours: %w", err)
	}
	return data, nil
}

// PolygonGeometry returns just the Polygon geometry JSON for a search area,
// for storage in the result row's geometry columns. Returns nil when the
// area has no ring, which maps to a NULL column.
func PolygonGeometry(area *surface.SearchArea) (json.RawMessage, error) {
	feature, ok := SearchAreaFeature(area)
	if !ok {
		return nil, nil
	}
	data, err := json.Marshal(feature.Geometry)
	if err != nil {
		return nil, fmt.Errorf("encode polygon geometry: %w", err)
	}
	return data, nil
}
