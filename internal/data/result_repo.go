package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/driftline/driftline/internal/errors"

	"github.com/driftline/driftline/internal/core"
	"github.com/driftline/driftline/internal/domain/model"
)

// ResultRepo owns the mission_results rows.
type ResultRepo struct {
	DB *sql.DB
}

var _ core.ResultRepository = (*ResultRepo)(nil)

// NewResultRepo creates a ResultRepo with the given database connection.
func NewResultRepo(db *sql.DB) *ResultRepo {
	return &ResultRepo{DB: db}
}

// SeedRaw upserts the raw trajectory reference for a mission. Called by the
// drift worker once the raw artifact upload is confirmed durable; the upsert
// makes redelivered jobs harmless.
func (r *ResultRepo) SeedRaw(ctx context.Context, missionID, netcdfPath string, particleCount int) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO mission_results (mission_id, netcdf_path, particle_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (mission_id) DO UPDATE
		SET netcdf_path = EXCLUDED.netcdf_path,
		    particle_count = EXCLUDED.particle_count`,
		missionID, netcdfPath, particleCount)
	if err != nil {
		return fmt.Errorf("seed raw result: %w", apperrors.MapDBError(err))
	}
	return nil
}

// PublishSummary writes the derived result fields in a single update so the
// row is never observed half-written. Artifact references left nil by a
// partial publish stay NULL, which is how the row records the gap.
func (r *ResultRepo) PublishSummary(ctx context.Context, result *model.MissionResult) error {
	if result == nil {
		return errors.New("mission result is required")
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE mission_results
		SET centroid_lat = $2,
		    centroid_lon = $3,
		    centroid_time = $4,
		    search_area_50_geom = $5,
		    search_area_90_geom = $6,
		    timestep_contours = $7,
		    geojson_path = $8,
		    heatmap_path = $9,
		    pdf_report_path = $10,
		    particle_count = $11,
		    stranded_count = $12,
		    computation_time_seconds = $13
		WHERE mission_id = $1`,
		result.MissionID,
		result.CentroidLat,
		result.CentroidLon,
		result.CentroidTime,
		nullableJSON(result.SearchArea50Geom),
		nullableJSON(result.SearchArea90Geom),
		nullableJSON(result.TimestepContours),
		result.GeojsonPath,
		result.HeatmapPath,
		result.PdfReportPath,
		result.ParticleCount,
		result.StrandedCount,
		result.ComputationTimeSeconds)
	if err != nil {
		return fmt.Errorf("publish result summary: %w", apperrors.MapDBError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("publish result rows affected: %w", err)
	}
	if affected == 0 {
		return ErrResultNotFound
	}
	return nil
}

// Get returns the mission_results row for a mission.
func (r *ResultRepo) Get(ctx context.Context, missionID string) (*model.MissionResult, error) {
	var result model.MissionResult
	err := r.DB.QueryRowContext(ctx, `
		SELECT mission_id, netcdf_path, centroid_lat, centroid_lon, centroid_time,
		       search_area_50_geom, search_area_90_geom, timestep_contours,
		       geojson_path, heatmap_path, pdf_report_path,
		       particle_count, stranded_count, computation_time_seconds, created_at
		FROM mission_results WHERE mission_id = $1`, missionID,
	).Scan(
		&result.MissionID, &result.NetcdfPath,
		&result.CentroidLat, &result.CentroidLon, &result.CentroidTime,
		&result.SearchArea50Geom, &result.SearchArea90Geom, &result.TimestepContours,
		&result.GeojsonPath, &result.HeatmapPath, &result.PdfReportPath,
		&result.ParticleCount, &result.StrandedCount, &result.ComputationTimeSeconds,
		&result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mission result: %w", apperrors.MapDBError(err))
	}
	return &result, nil
}

// nullableJSON converts an empty raw message to NULL so the driver does not
// write a zero-length jsonb value.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
