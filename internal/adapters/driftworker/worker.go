// Package driftworker provides the runner that consumes mission jobs,
// invokes the drift simulation, and hands raw trajectories to the results
// stage.
package driftworker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driftline/driftline/config"
	"github.com/driftline/driftline/internal/core"
	"github.com/driftline/driftline/internal/data"
	apperrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/internal/domain/model"
	"github.com/driftline/driftline/internal/observability/metrics"
	"github.com/driftline/driftline/internal/observability/statsd"
)

// RunnerOptions configures the drift worker runner.
type RunnerOptions struct {
	Logger *slog.Logger

	Queue  config.QueueConfig
	Worker config.WorkerConfig
	Engine config.SimulationConfig

	Jobs       core.JobQueue
	Results    core.JobQueue
	Missions   core.MissionRepository
	ResultRepo core.ResultRepository
	Store      core.ObjectStore
	Forcing    core.ForcingProvider
	Simulator  core.SimulationEngine

	Metrics statsd.Sink
}

// Runner claims mission jobs and drives each through simulation: claim,
// status pre-check, forcing fetch, engine invocation, raw artifact upload,
// then results handoff. Simulation failures mark the mission failed and the
// loop keeps polling; infrastructure failures leave the delivery unacked so
// it redelivers once the dependency recovers.
type Runner struct {
	logger *slog.Logger

	queueCfg  config.QueueConfig
	workerCfg config.WorkerConfig
	engineCfg config.SimulationConfig

	jobs      core.JobQueue
	results   core.JobQueue
	missions  core.MissionRepository
	resultRow core.ResultRepository
	store     core.ObjectStore
	forcing   core.ForcingProvider
	simulator core.SimulationEngine

	metrics statsd.Sink
}

// NewRunner creates a drift worker runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	required := []struct {
		name  string
		value any
	}{
		{"Jobs", opts.Jobs},
		{"Results", opts.Results},
		{"Missions", opts.Missions},
		{"ResultRepo", opts.ResultRepo},
		{"Store", opts.Store},
		{"Forcing", opts.Forcing},
		{"Simulator", opts.Simulator},
	}
	for _, dep := range required {
		if isNil(dep.value) {
			return nil, errors.New("drift worker missing required dependency: " + dep.name)
		}
	}

	opts.Queue.Sanitize()
	opts.Worker.Sanitize()

	return &Runner{
		logger:     logger,
		queueCfg:   opts.Queue,
		workerCfg:  opts.Worker,
		engineCfg:  opts.Engine,
		jobs:       opts.Jobs,
		results:    opts.Results,
		missions:   opts.Missions,
		resultRow:  opts.ResultRepo,
		store:      opts.Store,
		forcing:    opts.Forcing,
		simulator:  opts.Simulator,
		metrics:    opts.Metrics,
	}, nil
}

// Run starts the worker pool and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting drift worker",
		"workers", r.workerCfg.Concurrency, "queue", r.queueCfg.JobQueue)

	group, gctx := errgroup.WithContext(ctx)
	for range r.workerCfg.Concurrency {
		group.Go(func() error { return r.runWorkerLoop(gctx) })
	}
	return group.Wait()
}

// runWorkerLoop is one single-threaded poll loop. Transient queue errors
// back off and re-poll; they never stop the loop and never touch mission
// state.
func (r *Runner) runWorkerLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		delivery, err := r.jobs.Dequeue(ctx, r.queueCfg.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			r.logger.ErrorContext(ctx, "job dequeue failed", "error", err)
			if !sleepCtx(ctx, r.queueCfg.ReconnectBackoff) {
				break
			}
			continue
		}
		if delivery == nil {
			continue
		}
		r.processDelivery(ctx, delivery)
	}
	return ctx.Err()
}

// processDelivery handles one claimed mission job end to end.
func (r *Runner) processDelivery(ctx context.Context, delivery *core.Delivery) {
	start := time.Now()

	job, err := model.ParseDriftJob(delivery.Payload)
	if err != nil {
		// Poison payload: retrying would loop forever. Drop it.
		r.logger.ErrorContext(ctx, "dropping malformed drift job", "error", err)
		r.ack(ctx, delivery)
		r.emit(metrics.MissionMetric{
			Stage: "drift_worker", Transition: "dropped",
			Result: metrics.ResultDropped, Err: err,
		})
		return
	}

	logger := r.logger.With("mission_id", job.MissionID)

	status, err := r.missions.GetStatus(ctx, job.MissionID)
	switch {
	case errors.Is(err, data.ErrMissionNotFound):
		logger.ErrorContext(ctx, "dropping job for unknown mission")
		r.ack(ctx, delivery)
		r.emit(metrics.MissionMetric{
			Stage: "drift_worker", Transition: "dropped",
			Result: metrics.ResultDropped, Err: err,
		})
		return
	case err != nil:
		// Mission store unreachable: leave unacked for redelivery.
		logger.ErrorContext(ctx, "mission status check failed", "error", err)
		return
	case status.Terminal():
		// Redelivered job for a finished mission: no engine re-invocation,
		// no duplicate artifact.
		logger.InfoContext(ctx, "skipping job for terminal mission", "status", status)
		r.ack(ctx, delivery)
		r.emit(metrics.MissionMetric{
			Stage: "drift_worker", Transition: "processing", Result: metrics.ResultNoop,
		})
		return
	}

	if err := r.missions.MarkProcessing(ctx, job.MissionID); err != nil {
		if errors.Is(err, data.ErrMissionTerminal) {
			r.ack(ctx, delivery)
			return
		}
		logger.ErrorContext(ctx, "mark processing failed", "error", err)
		return
	}

	job.ApplyDefaults(
		r.workerCfg.DefaultParticles,
		r.workerCfg.DefaultDurationHours,
		r.workerCfg.DefaultObjectClass)
	if err := job.Validate(); err != nil {
		r.failMission(ctx, logger, delivery, job.MissionID, err.Error(), start)
		return
	}

	logger.InfoContext(ctx, "processing drift job",
		"particles", job.Params.NumParticles,
		"duration_hours", job.Params.DurationHours,
		"object_type", job.Params.ObjectType,
		"backtracking", job.Params.Backtracking)

	dataset, err := r.runSimulation(ctx, logger, job)
	if err != nil {
		// Verbatim: the causal message becomes the mission's error_message.
		r.failMission(ctx, logger, delivery, job.MissionID, err.Error(), start)
		return
	}

	rawKey := model.RawParticlesKey(job.MissionID)
	payload, err := json.Marshal(dataset)
	if err != nil {
		r.failMission(ctx, logger, delivery, job.MissionID,
			apperrors.Storage("storage failed: encode raw trajectories", err).Error(), start)
		return
	}
	// Upload must be confirmed durable before the results job exists.
	if err := r.store.Put(ctx, rawKey, payload, "application/json"); err != nil {
		logger.ErrorContext(ctx, "raw artifact upload failed", "key", rawKey, "error", err)
		return
	}

	if err := r.resultRow.SeedRaw(ctx, job.MissionID, rawKey, job.Params.NumParticles); err != nil {
		logger.ErrorContext(ctx, "seed result row failed", "error", err)
		return
	}

	resultsJob := model.ResultsJob{MissionID: job.MissionID, NetcdfPath: rawKey}
	encoded, err := resultsJob.Encode()
	if err != nil {
		logger.ErrorContext(ctx, "encode results job failed", "error", err)
		return
	}
	if err := r.results.Enqueue(ctx, encoded); err != nil {
		logger.ErrorContext(ctx, "results enqueue failed", "error", err)
		return
	}

	r.ack(ctx, delivery)
	logger.InfoContext(ctx, "drift job complete",
		"raw_key", rawKey, "elapsed", time.Since(start))
	r.emit(metrics.MissionMetric{
		Stage: "drift_worker", Transition: "processing",
		Result: metrics.ResultSuccess, Duration: time.Since(start),
	})
}

// runSimulation fetches forcing data and invokes the engine. A forcing fetch
// failure degrades to engine defaults; only the engine itself can fail the
// mission here.
func (r *Runner) runSimulation(ctx context.Context, logger *slog.Logger, job *model.DriftJob) (*model.TrajectoryDataset, error) {
	p := job.Params
	buffer := r.workerCfg.SpatialBufferDegrees

	windowStart := p.StartTime
	windowEnd := p.StartTime.Add(time.Duration(p.DurationHours) * time.Hour)
	if p.Backtracking {
		windowStart, windowEnd = p.StartTime.Add(-time.Duration(p.DurationHours)*time.Hour), p.StartTime
	}

	bundle, err := r.forcing.Fetch(ctx, model.ForcingRequest{
		MinLat: p.Latitude - buffer,
		MaxLat: p.Latitude + buffer,
		MinLon: p.Longitude - buffer,
		MaxLon: p.Longitude + buffer,
		Start:  windowStart,
		End:    windowEnd,
	})
	if err != nil {
		// Partial coverage degrades accuracy, never aborts the mission.
		logger.WarnContext(ctx, "forcing fetch failed, falling back to engine defaults", "error", err)
		bundle = model.ForcingBundle{}
	}

	return r.simulator.Run(ctx, model.SimulationRequest{
		MissionID:             job.MissionID,
		Params:                job.Params,
		Forcing:               bundle,
		TimeStepSeconds:       r.engineCfg.TimeStepSeconds,
		OutputIntervalSeconds: r.engineCfg.OutputIntervalSeconds,
		SeedRadiusM:           r.engineCfg.SeedRadiusM,
	})
}

// failMission marks the mission failed with the reason preserved verbatim
// and acks the delivery; the worker moves on to the next job.
func (r *Runner) failMission(
	ctx context.Context,
	logger *slog.Logger,
	delivery *core.Delivery,
	missionID, reason string,
	start time.Time,
) {
	logger.ErrorContext(ctx, "mission failed", "reason", reason)
	if err := r.missions.MarkFailed(ctx, missionID, reason); err != nil &&
		!errors.Is(err, data.ErrMissionTerminal) {
		logger.ErrorContext(ctx, "mark failed did not apply", "error", err)
		return
	}
	r.ack(ctx, delivery)
	r.emit(metrics.MissionMetric{
		Stage: "drift_worker", Transition: "failed",
		Result: metrics.ResultError, Duration: time.Since(start),
		Err: errors.New(reason),
	})
}

func (r *Runner) ack(ctx context.Context, delivery *core.Delivery) {
	if err := r.jobs.Ack(ctx, delivery); err != nil {
		r.logger.ErrorContext(ctx, "ack failed", "error", err)
	}
}

func (r *Runner) emit(in metrics.MissionMetric) {
	if r.metrics == nil {
		return
	}
	metrics.EmitMissionLifecycle(r.metrics, in)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func isNil(v any) bool {
	return v == nil
}
