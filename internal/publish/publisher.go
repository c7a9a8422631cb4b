// Package publish persists the derived mission products and records them in
// the result row.
package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/driftline/driftline/internal/core"
	"github.com/driftline/driftline/internal/domain/model"
	"github.com/driftline/driftline/internal/geo"
	"github.com/driftline/driftline/internal/render"
	"github.com/driftline/driftline/internal/surface"
)

// Publisher uploads the GeoJSON, heatmap, and report artifacts and then
// updates the mission result row once. An individual artifact failure leaves
// its column NULL and is logged; it never hides behind a completed mission
// with silently missing references.
type Publisher struct {
	store   core.ObjectStore
	results core.ResultRepository
	logger  *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(store core.ObjectStore, results core.ResultRepository, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, results: results, logger: logger}
}

// Publish renders and uploads all artifacts for a mission and writes the
// result summary. The returned error is non-nil only when the summary update
// itself fails; artifact gaps are recorded, not fatal.
func (p *Publisher) Publish(ctx context.Context, missionID string, analysis *surface.Analysis) (*model.MissionResult, error) {
	result := &model.MissionResult{
		MissionID:     missionID,
		CentroidLat:   &analysis.CentroidLat,
		CentroidLon:   &analysis.CentroidLon,
		CentroidTime:  &analysis.CentroidTime,
		ParticleCount: &analysis.ParticleCount,
		StrandedCount: &analysis.StrandedCount,
	}

	var err error
	if result.SearchArea50Geom, err = geo.PolygonGeometry(analysis.SearchArea(50)); err != nil {
		p.logger.ErrorContext(ctx, "encode 50% search area failed", "mission_id", missionID, "error", err)
	}
	if result.SearchArea90Geom, err = geo.PolygonGeometry(analysis.SearchArea(90)); err != nil {
		p.logger.ErrorContext(ctx, "encode 90% search area failed", "mission_id", missionID, "error", err)
	}
	if result.TimestepContours, err = geo.TimestepContoursJSON(analysis.Timesteps); err != nil {
		p.logger.ErrorContext(ctx, "encode timestep contours failed", "mission_id", missionID, "error", err)
	}
	if analysis.ComputationSeconds > 0 {
		elapsed := analysis.ComputationSeconds
		result.ComputationTimeSeconds = &elapsed
	}

	result.GeojsonPath = p.uploadArtifact(ctx, missionID, model.TrajectoriesKey(missionID),
		"application/geo+json", func() ([]byte, error) {
			return geo.BuildFeatureCollection(analysis).Encode()
		})
	result.HeatmapPath = p.uploadArtifact(ctx, missionID, model.HeatmapKey(missionID),
		"image/png", func() ([]byte, error) {
			return render.Heatmap(analysis.Grid)
		})
	result.PdfReportPath = p.uploadArtifact(ctx, missionID, model.ReportKey(missionID),
		"application/pdf", func() ([]byte, error) {
			return render.Report(missionID, analysis)
		})

	if err := p.results.PublishSummary(ctx, result); err != nil {
		return nil, fmt.Errorf("publish mission %s: %w", missionID, err)
	}
	return result, nil
}

// uploadArtifact renders one artifact and uploads it, returning its key or
// nil when either step failed.
func (p *Publisher) uploadArtifact(
	ctx context.Context,
	missionID, key, contentType string,
	build func() ([]byte, error),
) *string {
	data, err := build()
	if err != nil {
		p.logger.ErrorContext(ctx, "artifact render failed",
			"mission_id", missionID, "key", key, "error", err)
		return nil
	}
	if err := p.store.Put(ctx, key, data, contentType); err != nil {
		p.logger.ErrorContext(ctx, "artifact upload failed",
			"mission_id", missionID, "key", key, "error", err)
		return nil
	}
	return &key
}
