package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/domain/model"
	"github.com/driftline/driftline/internal/testutil"
)

func TestMissionLifecycle(t *testing.T) {
	db := testutil.SkipIfNoTestDB(t)
	ctx := context.Background()

	missions := NewMissionRepo(db, RepoConfig{})
	results := NewResultRepo(db)

	missionID := testutil.NewMissionID()
	require.NoError(t, missions.Create(ctx, missionID))

	status, err := missions.GetStatus(ctx, missionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, status)

	// queued → processing, idempotent on redelivery.
	require.NoError(t, missions.MarkProcessing(ctx, missionID))
	require.NoError(t, missions.MarkProcessing(ctx, missionID))

	// Completion is refused until a result row with centroid exists.
	err = missions.MarkCompleted(ctx, missionID)
	require.ErrorIs(t, err, ErrCentroidRequired)

	require.NoError(t, results.SeedRaw(ctx, missionID, missionID+"/raw/particles.json", 1000))

	// Centroid still missing: the seeded row alone must not allow completion.
	err = missions.MarkCompleted(ctx, missionID)
	require.ErrorIs(t, err, ErrCentroidRequired)

	lat, lon := 60.05, -2.95
	centroidTime := time.Date(2024, 1, 16, 6, 0, 0, 0, time.UTC)
	particles, stranded := 1000, 12
	computation := 42.7
	geojsonPath := missionID + "/trajectories.geojson"
	require.NoError(t, results.PublishSummary(ctx, &model.MissionResult{
		MissionID:        missionID,
		CentroidLat:      &lat,
		CentroidLon:      &lon,
		CentroidTime:     &centroidTime,
		SearchArea50Geom: []byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`),
		TimestepContours: []byte(`[{"hours_elapsed":0,"timestamp":"2024-01-15T06:00:00Z"},` +
			`{"hours_elapsed":24,"timestamp":"2024-01-16T06:00:00Z"}]`),
		GeojsonPath:            &geojsonPath,
		ParticleCount:          &particles,
		StrandedCount:          &stranded,
		ComputationTimeSeconds: &computation,
	}))

	require.NoError(t, missions.MarkCompleted(ctx, missionID))
	// Completing again is a no-op.
	require.NoError(t, missions.MarkCompleted(ctx, missionID))

	mission, err := missions.Get(ctx, missionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, mission.Status)
	assert.Nil(t, mission.ErrorMessage)
	require.NotNil(t, mission.CompletedAt)

	// Terminal status is never overwritten.
	err = missions.MarkFailed(ctx, missionID, "late failure")
	require.ErrorIs(t, err, ErrMissionTerminal)
	err = missions.MarkProcessing(ctx, missionID)
	require.ErrorIs(t, err, ErrMissionTerminal)

	stored, err := results.Get(ctx, missionID)
	require.NoError(t, err)
	require.NotNil(t, stored.CentroidLat)
	assert.InDelta(t, 60.05, *stored.CentroidLat, 1e-9)
	assert.NotEmpty(t, stored.SearchArea50Geom)
	assert.Empty(t, stored.SearchArea90Geom)
	assert.Nil(t, stored.HeatmapPath)
	require.NotNil(t, stored.StrandedCount)
	assert.Equal(t, 12, *stored.StrandedCount)
	assert.JSONEq(t,
		`[{"hours_elapsed":0,"timestamp":"2024-01-15T06:00:00Z"},`+
			`{"hours_elapsed":24,"timestamp":"2024-01-16T06:00:00Z"}]`,
		string(stored.TimestepContours))
	require.NotNil(t, stored.ComputationTimeSeconds)
	assert.InDelta(t, 42.7, *stored.ComputationTimeSeconds, 1e-9)
}

func TestMarkFailedPreservesReason(t *testing.T) {
	db := testutil.SkipIfNoTestDB(t)
	ctx := context.Background()

	missions := NewMissionRepo(db, RepoConfig{})
	missionID := testutil.NewMissionID()
	require.NoError(t, missions.Create(ctx, missionID))
	require.NoError(t, missions.MarkProcessing(ctx, missionID))

	reason := "simulation failed: engine returned 500: forcing grid out of range"
	require.NoError(t, missions.MarkFailed(ctx, missionID, reason))
	// Failing again is a no-op.
	require.NoError(t, missions.MarkFailed(ctx, missionID, "other"))

	mission, err := missions.Get(ctx, missionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, mission.Status)
	require.NotNil(t, mission.ErrorMessage)
	assert.Equal(t, reason, *mission.ErrorMessage)

	// Failed is terminal: no completion, no reprocessing.
	assert.ErrorIs(t, missions.MarkCompleted(ctx, missionID), ErrMissionTerminal)
	assert.ErrorIs(t, missions.MarkProcessing(ctx, missionID), ErrMissionTerminal)
}

func TestGetStatusUnknownMission(t *testing.T) {
	db := testutil.SkipIfNoTestDB(t)

	missions := NewMissionRepo(db, RepoConfig{})
	_, err := missions.GetStatus(context.Background(), testutil.NewMissionID())
	require.ErrorIs(t, err, ErrMissionNotFound)
}

func TestSeedRawUpsert(t *testing.T) {
	db := testutil.SkipIfNoTestDB(t)
	ctx := context.Background()

	missions := NewMissionRepo(db, RepoConfig{})
	results := NewResultRepo(db)

	missionID := testutil.NewMissionID()
	require.NoError(t, missions.Create(ctx, missionID))

	require.NoError(t, results.SeedRaw(ctx, missionID, missionID+"/raw/particles.json", 500))
	// Redelivered job re-seeds without error.
	require.NoError(t, results.SeedRaw(ctx, missionID, missionID+"/raw/particles.json", 500))

	stored, err := results.Get(ctx, missionID)
	require.NoError(t, err)
	require.NotNil(t, stored.NetcdfPath)
	assert.Equal(t, missionID+"/raw/particles.json", *stored.NetcdfPath)
	require.NotNil(t, stored.ParticleCount)
	assert.Equal(t, 500, *stored.ParticleCount)
	assert.Nil(t, stored.CentroidLat)
}

func TestPublishSummaryUnknownMission(t *testing.T) {
	db := testutil.SkipIfNoTestDB(t)

	results := NewResultRepo(db)
	lat, lon := 1.0, 2.0
	err := results.PublishSummary(context.Background(), &model.MissionResult{
		MissionID:   testutil.NewMissionID(),
		CentroidLat: &lat,
		CentroidLon: &lon,
	})
	require.ErrorIs(t, err, ErrResultNotFound)
}
