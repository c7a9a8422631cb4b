package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/config"
	"github.com/driftline/driftline/internal/domain/model"
	"github.com/driftline/driftline/internal/surface"
)

const testMissionID = "550e8400-e29b-41d4-a716-446655440000"

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failKey string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == s.failKey {
		return errors.New("connection reset")
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (s *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

type fakeResults struct {
	mu        sync.Mutex
	published *model.MissionResult
	failNext  bool
}

func (r *fakeResults) SeedRaw(context.Context, string, string, int) error { return nil }

func (r *fakeResults) PublishSummary(_ context.Context, result *model.MissionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		return errors.New("database unavailable")
	}
	r.published = result
	return nil
}

func (r *fakeResults) Get(context.Context, string) (*model.MissionResult, error) {
	return nil, errors.New("not implemented")
}

func testAnalysis(t *testing.T) *surface.Analysis {
	t.Helper()

	lat := make([]float64, 0, 100)
	lon := make([]float64, 0, 100)
	for i := 0; i < 100; i++ {
		lat = append(lat, 60.05+0.001*float64(i%10))
		lon = append(lon, -2.95+0.001*float64(i%7))
	}
	grid := surface.BuildGrid(lat, lon, config.SurfaceConfig{
		GridResolution: 50, SmoothingSigma: 1.5, PaddingDegrees: 0.05,
	})
	centroidLat, centroidLon := grid.Centroid()

	return &surface.Analysis{
		CentroidLat:   centroidLat,
		CentroidLon:   centroidLon,
		CentroidTime:  time.Date(2024, 1, 16, 6, 0, 0, 0, time.UTC),
		ParticleCount: 100,
		StrandedCount: 0,
		Grid:          grid,
		SearchAreas: map[int]*surface.SearchArea{
			50: grid.ExtractSearchArea(50),
			90: grid.ExtractSearchArea(90),
			95: grid.ExtractSearchArea(95),
		},
		Trajectories: []surface.Trajectory{
			{ParticleIndex: 0, Points: [][2]float64{{-3.0, 60.0}, {-2.95, 60.05}}},
		},
		Timesteps: []surface.TimestepContour{
			{
				HoursElapsed: 0,
				Timestamp:    time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC),
				CentroidLat:  60.0, CentroidLon: -3.0,
				Areas: map[int]*surface.SearchArea{50: grid.ExtractSearchArea(50)},
			},
			{
				HoursElapsed: 24,
				Timestamp:    time.Date(2024, 1, 16, 6, 0, 0, 0, time.UTC),
				CentroidLat:  centroidLat, CentroidLon: centroidLon,
				Areas: map[int]*surface.SearchArea{50: grid.ExtractSearchArea(50)},
			},
		},
		ComputationSeconds: 3.25,
	}
}

func TestPublishAllArtifacts(t *testing.T) {
	store := newFakeStore()
	results := &fakeResults{}
	pub := NewPublisher(store, results, nil)

	result, err := pub.Publish(context.Background(), testMissionID, testAnalysis(t))
	require.NoError(t, err)

	require.NotNil(t, result.GeojsonPath)
	assert.Equal(t, testMissionID+"/trajectories.geojson", *result.GeojsonPath)
	require.NotNil(t, result.HeatmapPath)
	require.NotNil(t, result.PdfReportPath)
	assert.NotEmpty(t, result.SearchArea50Geom)
	assert.NotEmpty(t, result.SearchArea90Geom)
	require.NotNil(t, result.CentroidLat)
	assert.InDelta(t, 60.05, *result.CentroidLat, 0.02)
	require.NotNil(t, result.ComputationTimeSeconds)
	assert.InDelta(t, 3.25, *result.ComputationTimeSeconds, 1e-9)

	// The slider sequence round-trips with its frame fields intact.
	require.NotEmpty(t, result.TimestepContours)
	var frames []struct {
		HoursElapsed float64   `json:"hours_elapsed"`
		Timestamp    time.Time `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(result.TimestepContours, &frames))
	require.Len(t, frames, 2)
	assert.InDelta(t, 0.0, frames[0].HoursElapsed, 1e-9)
	assert.InDelta(t, 24.0, frames[1].HoursElapsed, 1e-9)
	assert.InDelta(t, 24.0, frames[1].Timestamp.Sub(frames[0].Timestamp).Hours(), 1e-9)

	// All three artifacts landed in the store.
	for _, key := range []string{
		model.TrajectoriesKey(testMissionID),
		model.HeatmapKey(testMissionID),
		model.ReportKey(testMissionID),
	} {
		ok, err := store.Exists(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}

	// The row was written exactly once with the same result.
	assert.Equal(t, result, results.published)
}

func TestPublishPartialUploadLeavesGap(t *testing.T) {
	store := newFakeStore()
	store.failKey = model.HeatmapKey(testMissionID)
	results := &fakeResults{}
	pub := NewPublisher(store, results, nil)

	result, err := pub.Publish(context.Background(), testMissionID, testAnalysis(t))
	require.NoError(t, err)

	// Heatmap upload failed: its reference stays nil, the rest survive.
	assert.Nil(t, result.HeatmapPath)
	require.NotNil(t, result.GeojsonPath)
	require.NotNil(t, result.PdfReportPath)
	require.NotNil(t, results.published)
	assert.Nil(t, results.published.HeatmapPath)
}

func TestPublishSummaryFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	results := &fakeResults{failNext: true}
	pub := NewPublisher(store, results, nil)

	_, err := pub.Publish(context.Background(), testMissionID, testAnalysis(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), testMissionID)
}
