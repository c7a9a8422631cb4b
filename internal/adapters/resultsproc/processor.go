// Package resultsproc provides the runner that turns raw trajectory
// artifacts into probability surfaces and published search products.
package resultsproc

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
	"github.com/driftline/driftline/internal/publish"
	"github.com/driftline/driftline/internal/storage"
	"github.com/driftline/driftline/internal/surface"
)

// RunnerOptions configures the results processor runner.
type RunnerOptions struct {
	Logger *slog.Logger

	Queue     config.QueueConfig
	Processor config.ProcessorConfig
	Surface   config.SurfaceConfig

	Results  core.JobQueue
	Missions core.MissionRepository
	Store    core.ObjectStore

	// Publisher is built from Store and ResultRepo when not injected.
	Publisher  *publish.Publisher
	ResultRepo core.ResultRepository

	Metrics statsd.Sink
}

// Runner consumes results jobs: load the raw trajectory dataset, run the
// probability surface analysis, publish artifacts, and complete the mission.
// Analysis failures are terminal and distinct from simulation failures;
// infrastructure failures leave the delivery unacked for redelivery.
type Runner struct {
	logger *slog.Logger

	queueCfg   config.QueueConfig
	procCfg    config.ProcessorConfig
	surfaceCfg config.SurfaceConfig

	results   core.JobQueue
	missions  core.MissionRepository
	store     core.ObjectStore
	publisher *publish.Publisher

	metrics statsd.Sink
}

// NewRunner creates a results processor runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Results == nil {
		return nil, errors.New("results processor missing required dependency: Results")
	}
	if opts.Missions == nil {
		return nil, errors.New("results processor missing required dependency: Missions")
	}
	if opts.Store == nil {
		return nil, errors.New("results processor missing required dependency: Store")
	}

	publisher := opts.Publisher
	if publisher == nil {
		if opts.ResultRepo == nil {
			return nil, errors.New("results processor requires a Publisher or a ResultRepo")
		}
		publisher = publish.NewPublisher(opts.Store, opts.ResultRepo, logger)
	}

	opts.Queue.Sanitize()
	opts.Processor.Sanitize()
	opts.Surface.Sanitize()

	return &Runner{
		logger:     logger,
		queueCfg:   opts.Queue,
		procCfg:    opts.Processor,
		surfaceCfg: opts.Surface,
		results:    opts.Results,
		missions:   opts.Missions,
		store:      opts.Store,
		publisher:  publisher,
		metrics:    opts.Metrics,
	}, nil
}

// Run starts the processor pool and consumes results jobs until the context
// is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting results processor",
		"workers", r.procCfg.Concurrency, "queue", r.queueCfg.ResultsQueue)

	group, gctx := errgroup.WithContext(ctx)
	for range r.procCfg.Concurrency {
		group.Go(func() error { return r.runWorkerLoop(gctx) })
	}
	return group.Wait()
}

func (r *Runner) runWorkerLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		delivery, err := r.results.Dequeue(ctx, r.queueCfg.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			r.logger.ErrorContext(ctx, "results dequeue failed", "error", err)
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

func (r *Runner) processDelivery(ctx context.Context, delivery *core.Delivery) {
	start := time.Now()

	job, err := model.ParseResultsJob(delivery.Payload)
	if err != nil {
		r.logger.ErrorContext(ctx, "dropping malformed results job", "error", err)
		r.ack(ctx, delivery)
		r.emit(metrics.MissionMetric{
			Stage: "results_processor", Transition: "dropped",
			Result: metrics.ResultDropped, Err: err,
		})
		return
	}

	logger := r.logger.With("mission_id", job.MissionID)

	status, err := r.missions.GetStatus(ctx, job.MissionID)
	switch {
	case errors.Is(err, data.ErrMissionNotFound):
		logger.ErrorContext(ctx, "dropping results job for unknown mission")
		r.ack(ctx, delivery)
		return
	case err != nil:
		logger.ErrorContext(ctx, "mission status check failed", "error", err)
		return
	case status.Terminal():
		logger.InfoContext(ctx, "skipping results job for terminal mission", "status", status)
		r.ack(ctx, delivery)
		r.emit(metrics.MissionMetric{
			Stage: "results_processor", Transition: "completed", Result: metrics.ResultNoop,
		})
		return
	}

	dataset, err := r.loadDataset(ctx, job)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || apperrors.IsCode(err, apperrors.ErrCodeAnalysis) {
			// The raw artifact can never become readable by retrying.
			r.failMission(ctx, logger, delivery, job.MissionID, err.Error(), start)
			return
		}
		logger.ErrorContext(ctx, "load raw trajectories failed", "key", job.NetcdfPath, "error", err)
		return
	}

	analysis, err := surface.Analyze(dataset, r.surfaceCfg)
	if err != nil {
		// Analysis failure is terminal and distinct from simulation failure:
		// the physics ran, the output was unusable for search-area analysis.
		r.failMission(ctx, logger, delivery, job.MissionID, err.Error(), start)
		return
	}

	// Wall time from dataset load through analysis, recorded on the result row.
	analysis.ComputationSeconds = time.Since(start).Seconds()

	if _, err := r.publisher.Publish(ctx, job.MissionID, analysis); err != nil {
		// Result row write failed: redeliver once the store recovers.
		logger.ErrorContext(ctx, "publish failed", "error", err)
		return
	}

	if err := r.missions.MarkCompleted(ctx, job.MissionID); err != nil {
		if errors.Is(err, data.ErrMissionTerminal) {
			r.ack(ctx, delivery)
			return
		}
		logger.ErrorContext(ctx, "mark completed failed", "error", err)
		return
	}

	r.ack(ctx, delivery)
	logger.InfoContext(ctx, "mission completed",
		"centroid_lat", analysis.CentroidLat,
		"centroid_lon", analysis.CentroidLon,
		"stranded", analysis.StrandedCount,
		"elapsed", time.Since(start))
	r.emit(metrics.MissionMetric{
		Stage: "results_processor", Transition: "completed",
		Result: metrics.ResultSuccess, Duration: time.Since(start),
	})
}

// loadDataset fetches and decodes the raw trajectory artifact.
func (r *Runner) loadDataset(ctx context.Context, job *model.ResultsJob) (*model.TrajectoryDataset, error) {
	raw, err := r.store.Get(ctx, job.NetcdfPath)
	if err != nil {
		return nil, err
	}
	var dataset model.TrajectoryDataset
	if err := json.Unmarshal(raw, &dataset); err != nil {
		return nil, apperrors.Analysis("analysis failed: malformed raw trajectory artifact", err)
	}
	return &dataset, nil
}

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
		Stage: "results_processor", Transition: "failed",
		Result: metrics.ResultError, Duration: time.Since(start),
		Err: errors.New(reason),
	})
}

func (r *Runner) ack(ctx context.Context, delivery *core.Delivery) {
	if err := r.results.Ack(ctx, delivery); err != nil {
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
