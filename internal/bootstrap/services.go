package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/driftline/driftline/config"
	"github.com/driftline/driftline/internal/adapters/driftworker"
	"github.com/driftline/driftline/internal/adapters/resultsproc"
	"github.com/driftline/driftline/internal/data"
	"github.com/driftline/driftline/internal/forcing"
	"github.com/driftline/driftline/internal/observability/statsd"
	"github.com/driftline/driftline/internal/queue"
	"github.com/driftline/driftline/internal/simulation"
	"github.com/driftline/driftline/internal/storage"
)

// PipelineDeps groups infrastructure handles the pipeline is built from.
type PipelineDeps struct {
	Config       *config.AppConfig
	DB           *sql.DB
	RedisClient  redis.UniversalClient
	ObjectClient *minio.Client
	Logger       *slog.Logger
}

// Pipeline holds the wired runners and the shared adapters behind them.
// Runners for disabled service modes stay nil.
type Pipeline struct {
	Worker    *driftworker.Runner
	Processor *resultsproc.Runner

	Jobs    *queue.RedisQueue
	Results *queue.RedisQueue
	Store   *storage.MinioStore

	MetricsSink *statsd.Client
}

// buildMetricsSink configures the StatsD client when metrics are enabled.
// Emission failures never block the pipeline, so a dial error degrades to
// no metrics rather than aborting startup.
func buildMetricsSink(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  "driftline",
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

// NewPipeline wires repositories, queues, clients, and runners for the
// enabled service modes.
func NewPipeline(deps *PipelineDeps) (*Pipeline, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("pipeline dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	enabled, err := cfg.GetEnabledServices()
	if err != nil {
		return nil, fmt.Errorf("determine enabled services: %w", err)
	}

	p := &Pipeline{
		Jobs:        queue.NewRedisQueue(deps.RedisClient, cfg.Queues.JobQueue, logger),
		Results:     queue.NewRedisQueue(deps.RedisClient, cfg.Queues.ResultsQueue, logger),
		Store:       storage.NewMinioStore(deps.ObjectClient, cfg.ObjectStore.ResultsBucket, logger),
		MetricsSink: buildMetricsSink(cfg.Observability.Metrics, logger),
	}

	missions := data.NewMissionRepo(deps.DB, data.RepoConfig{Logger: logger})
	resultRepo := data.NewResultRepo(deps.DB)

	if enabled[config.ServiceModeDriftWorker] {
		worker, err := driftworker.NewRunner(driftworker.RunnerOptions{
			Logger:     logger,
			Queue:      cfg.Queues,
			Worker:     cfg.Worker,
			Engine:     cfg.Simulation,
			Jobs:       p.Jobs,
			Results:    p.Results,
			Missions:   missions,
			ResultRepo: resultRepo,
			Store:      p.Store,
			Forcing:    forcing.NewClient(cfg.Forcing, cfg.ObjectStore.DataBucket, logger),
			Simulator:  simulation.NewEngine(cfg.Simulation, logger),
			Metrics:    p.MetricsSink,
		})
		if err != nil {
			return nil, fmt.Errorf("build drift worker: %w", err)
		}
		p.Worker = worker
	}

	if enabled[config.ServiceModeResultsProcessor] {
		processor, err := resultsproc.NewRunner(resultsproc.RunnerOptions{
			Logger:     logger,
			Queue:      cfg.Queues,
			Processor:  cfg.Processor,
			Surface:    cfg.Surface,
			Results:    p.Results,
			Missions:   missions,
			Store:      p.Store,
			ResultRepo: resultRepo,
			Metrics:    p.MetricsSink,
		})
		if err != nil {
			return nil, fmt.Errorf("build results processor: %w", err)
		}
		p.Processor = processor
	}

	return p, nil
}

// pipelineService describes a startable background runner.
type pipelineService struct {
	name string
	run  func(context.Context) error
}

func (p *Pipeline) services() []pipelineService {
	var services []pipelineService
	if p.Worker != nil {
		services = append(services, pipelineService{name: "drift worker", run: p.Worker.Run})
	}
	if p.Processor != nil {
		services = append(services, pipelineService{name: "results processor", run: p.Processor.Run})
	}
	return services
}

// RunServicesWithShutdown prepares shared infrastructure, starts the enabled
// runners, and blocks until a shutdown signal arrives or a runner fails.
func RunServicesWithShutdown(ctx context.Context, p *Pipeline, logger *slog.Logger) error {
	if p == nil {
		return errors.New("pipeline is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Store.EnsureBucket(signalCtx); err != nil {
		return fmt.Errorf("ensure artifact bucket: %w", err)
	}

	services := p.services()
	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	group, gctx := errgroup.WithContext(signalCtx)
	for _, svc := range services {
		group.Go(func() error {
			logger.InfoContext(gctx, "service started", "service", svc.name)
			if err := svc.run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			logger.InfoContext(ctx, "service stopped", "service", svc.name)
			return nil
		})
	}

	err := group.Wait()

	if p.MetricsSink != nil {
		if closeErr := p.MetricsSink.Close(); closeErr != nil {
			logger.Warn("close statsd client failed", "error", closeErr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
