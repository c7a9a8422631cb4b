package driftworker

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
	"github.com/driftline/driftline/internal/core"
	"github.com/driftline/driftline/internal/data"
	"github.com/driftline/driftline/internal/domain/model"
)

const testMissionID = "550e8400-e29b-41d4-a716-446655440000"

type fakeQueue struct {
	mu       sync.Mutex
	messages [][]byte
	acked    []string
}

func (q *fakeQueue) Enqueue(_ context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, payload)
	return nil
}

func (q *fakeQueue) Dequeue(context.Context, time.Duration) (*core.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return nil, nil
	}
	payload := q.messages[0]
	q.messages = q.messages[1:]
	return &core.Delivery{Payload: payload, Token: string(payload)}, nil
}

func (q *fakeQueue) Ack(_ context.Context, d *core.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, d.Token)
	return nil
}

func (q *fakeQueue) ackCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.acked)
}

func (q *fakeQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

type fakeMissions struct {
	mu       sync.Mutex
	statuses map[string]model.MissionStatus
	reasons  map[string]string
}

func newFakeMissions(statuses map[string]model.MissionStatus) *fakeMissions {
	return &fakeMissions{statuses: statuses, reasons: make(map[string]string)}
}

func (m *fakeMissions) GetStatus(_ context.Context, id string) (model.MissionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[id]
	if !ok {
		return "", data.ErrMissionNotFound
	}
	return status, nil
}

func (m *fakeMissions) MarkProcessing(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses[id].Terminal() {
		return data.ErrMissionTerminal
	}
	m.statuses[id] = model.StatusProcessing
	return nil
}

func (m *fakeMissions) MarkCompleted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses[id] == model.StatusFailed {
		return data.ErrMissionTerminal
	}
	m.statuses[id] = model.StatusCompleted
	return nil
}

func (m *fakeMissions) MarkFailed(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses[id] == model.StatusCompleted {
		return data.ErrMissionTerminal
	}
	if m.statuses[id] == model.StatusFailed {
		return nil
	}
	m.statuses[id] = model.StatusFailed
	m.reasons[id] = reason
	return nil
}

func (m *fakeMissions) status(id string) model.MissionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[id]
}

func (m *fakeMissions) reason(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reasons[id]
}

type fakeResultRepo struct {
	mu     sync.Mutex
	seeded map[string]string
}

func (r *fakeResultRepo) SeedRaw(_ context.Context, missionID, netcdfPath string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seeded == nil {
		r.seeded = make(map[string]string)
	}
	r.seeded[missionID] = netcdfPath
	return nil
}

func (r *fakeResultRepo) PublishSummary(context.Context, *model.MissionResult) error { return nil }

func (r *fakeResultRepo) Get(context.Context, string) (*model.MissionResult, error) {
	return nil, data.ErrResultNotFound
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeStore() *fakeStore { return &fakeStore{objects: make(map[string][]byte)} }

func (s *fakeStore) Put(_ context.Context, key string, payload []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = payload
	return nil
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return payload, nil
}

func (s *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

type fakeForcing struct {
	err    error
	bundle model.ForcingBundle
	calls  int
}

func (f *fakeForcing) Fetch(_ context.Context, _ model.ForcingRequest) (model.ForcingBundle, error) {
	f.calls++
	if f.err != nil {
		return model.ForcingBundle{}, f.err
	}
	return f.bundle, nil
}

type fakeEngine struct {
	mu    sync.Mutex
	err   error
	calls int
	last  model.SimulationRequest
}

func (e *fakeEngine) Run(_ context.Context, req model.SimulationRequest) (*model.TrajectoryDataset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.last = req
	if e.err != nil {
		return nil, e.err
	}

	start := req.Params.StartTime
	ds := &model.TrajectoryDataset{
		MissionID: req.MissionID,
		Times:     []time.Time{start, start.Add(time.Hour)},
	}
	n := req.Params.NumParticles
	for step := 0; step < 2; step++ {
		lat := make([]model.Coord, n)
		lon := make([]model.Coord, n)
		for p := 0; p < n; p++ {
			lat[p] = model.Coord(req.Params.Latitude + 0.01*float64(step))
			lon[p] = model.Coord(req.Params.Longitude + 0.01*float64(step))
		}
		ds.Lat = append(ds.Lat, lat)
		ds.Lon = append(ds.Lon, lon)
	}
	return ds, nil
}

func (e *fakeEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type workerHarness struct {
	runner   *Runner
	jobs     *fakeQueue
	results  *fakeQueue
	missions *fakeMissions
	repo     *fakeResultRepo
	store    *fakeStore
	forcing  *fakeForcing
	engine   *fakeEngine
}

func newWorkerHarness(t *testing.T, missions *fakeMissions) *workerHarness {
	t.Helper()

	h := &workerHarness{
		jobs:     &fakeQueue{},
		results:  &fakeQueue{},
		missions: missions,
		repo:     &fakeResultRepo{},
		store:    newFakeStore(),
		forcing:  &fakeForcing{},
		engine:   &fakeEngine{},
	}

	runner, err := NewRunner(RunnerOptions{
		Queue:      config.QueueConfig{JobQueue: "drift_jobs", ResultsQueue: "drift_results", PollInterval: time.Second, ReconnectBackoff: time.Millisecond},
		Worker:     config.WorkerConfig{Concurrency: 1, SpatialBufferDegrees: 2.0, DefaultParticles: 10, DefaultDurationHours: 24, DefaultObjectClass: 1},
		Engine:     config.SimulationConfig{TimeStepSeconds: 3600, OutputIntervalSeconds: 3600, SeedRadiusM: 100, Timeout: time.Minute},
		Jobs:       h.jobs,
		Results:    h.results,
		Missions:   h.missions,
		ResultRepo: h.repo,
		Store:      h.store,
		Forcing:    h.forcing,
		Simulator:  h.engine,
	})
	require.NoError(t, err)
	h.runner = runner
	return h
}

func validJobPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(model.DriftJob{
		MissionID: testMissionID,
		Params: model.DriftJobParams{
			Latitude:  60.0,
			Longitude: -3.0,
			StartTime: time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	return payload
}

func deliver(payload []byte) *core.Delivery {
	return &core.Delivery{Payload: payload, Token: string(payload)}
}

func TestProcessDeliveryHappyPath(t *testing.T) {
	h := newWorkerHarness(t, newFakeMissions(map[string]model.MissionStatus{
		testMissionID: model.StatusQueued,
	}))

	h.runner.processDelivery(context.Background(), deliver(validJobPayload(t)))

	assert.Equal(t, model.StatusProcessing, h.missions.status(testMissionID))
	assert.Equal(t, 1, h.engine.callCount())
	assert.Equal(t, 1, h.forcing.calls)

	// Raw artifact is durable and seeded before the results job exists.
	rawKey := model.RawParticlesKey(testMissionID)
	ok, err := h.store.Exists(context.Background(), rawKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rawKey, h.repo.seeded[testMissionID])

	require.Equal(t, 1, h.results.depth())
	job, err := model.ParseResultsJob(h.results.messages[0])
	require.NoError(t, err)
	assert.Equal(t, testMissionID, job.MissionID)
	assert.Equal(t, rawKey, job.NetcdfPath)

	assert.Equal(t, 1, h.jobs.ackCount())

	// Defaults were applied before invoking the engine.
	assert.Equal(t, 10, h.engine.last.Params.NumParticles)
	assert.Equal(t, 24, h.engine.last.Params.DurationHours)
	assert.Equal(t, 1, h.engine.last.Params.ObjectType)
}

func TestProcessDeliveryMalformedPayloadDropped(t *testing.T) {
	h := newWorkerHarness(t, newFakeMissions(map[string]model.MissionStatus{}))

	h.runner.processDelivery(context.Background(), deliver([]byte("{{{")))

	assert.Equal(t, 1, h.jobs.ackCount())
	assert.Zero(t, h.engine.callCount())
	assert.Zero(t, h.results.depth())
}

func TestProcessDeliveryTerminalMissionNoop(t *testing.T) {
	h := newWorkerHarness(t, newFakeMissions(map[string]model.MissionStatus{
		testMissionID: model.StatusCompleted,
	}))

	h.runner.processDelivery(context.Background(), deliver(validJobPayload(t)))

	// No engine re-invocation, no duplicate artifact, delivery consumed.
	assert.Zero(t, h.engine.callCount())
	assert.Zero(t, len(h.store.objects))
	assert.Equal(t, 1, h.jobs.ackCount())
	assert.Equal(t, model.StatusCompleted, h.missions.status(testMissionID))
}

func TestProcessDeliveryUnknownMissionDropped(t *testing.T) {
	h := newWorkerHarness(t, newFakeMissions(map[string]model.MissionStatus{}))

	h.runner.processDelivery(context.Background(), deliver(validJobPayload(t)))

	assert.Equal(t, 1, h.jobs.ackCount())
	assert.Zero(t, h.engine.callCount())
}

func TestProcessDeliveryEngineFailure(t *testing.T) {
	h := newWorkerHarness(t, newFakeMissions(map[string]model.MissionStatus{
		testMissionID: model.StatusQueued,
	}))
	h.engine.err = errors.New("simulation failed: engine returned 500: forcing grid out of range")

	h.runner.processDelivery(context.Background(), deliver(validJobPayload(t)))

	assert.Equal(t, model.StatusFailed, h.missions.status(testMissionID))
	// The causal message is preserved verbatim.
	assert.Equal(t,
		"simulation failed: engine returned 500: forcing grid out of range",
		h.missions.reason(testMissionID))
	assert.Equal(t, 1, h.jobs.ackCount())
	assert.Zero(t, h.results.depth())
}

func TestProcessDeliveryForcingFailureDegrades(t *testing.T) {
	h := newWorkerHarness(t, newFakeMissions(map[string]model.MissionStatus{
		testMissionID: model.StatusQueued,
	}))
	h.forcing.err = errors.New("data service unreachable")

	h.runner.processDelivery(context.Background(), deliver(validJobPayload(t)))

	// Forcing unavailability degrades to engine defaults, never fails the mission.
	assert.Equal(t, model.StatusProcessing, h.missions.status(testMissionID))
	assert.Equal(t, 1, h.engine.callCount())
	assert.True(t, h.engine.last.Forcing.Empty())
	assert.Equal(t, 1, h.results.depth())
}

func TestProcessDeliveryStoreFailureRedelivers(t *testing.T) {
	h := newWorkerHarness(t, newFakeMissions(map[string]model.MissionStatus{
		testMissionID: model.StatusQueued,
	}))
	h.store.putErr = errors.New("connection reset")

	h.runner.processDelivery(context.Background(), deliver(validJobPayload(t)))

	// Transient storage failure: no ack (redelivery), mission not failed.
	assert.Zero(t, h.jobs.ackCount())
	assert.Equal(t, model.StatusProcessing, h.missions.status(testMissionID))
	assert.Zero(t, h.results.depth())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newWorkerHarness(t, newFakeMissions(map[string]model.MissionStatus{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.runner.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}
