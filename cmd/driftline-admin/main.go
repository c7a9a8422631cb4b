// Command driftline-admin is the operational CLI for the mission pipeline:
// migrations, manual mission submission, mission status inspection, and
// orphaned-claim recovery.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/driftline/driftline/config"
	"github.com/driftline/driftline/internal/bootstrap"
	"github.com/driftline/driftline/internal/data"
	"github.com/driftline/driftline/internal/domain/leeway"
	"github.com/driftline/driftline/internal/domain/model"
	"github.com/driftline/driftline/internal/queue"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"submit": {
			name:        "submit",
			description: "Create a mission and enqueue its drift job",
			run:         runSubmit,
		},
		"status": {
			name:        "status",
			description: "Show mission status, result summary, and queue depths",
			run:         runStatus,
		},
		"recover": {
			name:        "recover",
			description: "Requeue orphaned claims left by crashed consumers",
			run:         runRecover,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: driftline-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands()[name]
		if err := writef(os.Stdout, "  %-12s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

type submitOptions struct {
	Latitude      float64
	Longitude     float64
	StartTime     time.Time
	DurationHours int
	NumParticles  int
	ObjectType    int
	Backtracking  bool
}

type statusOptions struct {
	MissionID string
}

type recoverOptions struct {
	Yes bool
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")

	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runSubmit(cmdCtx *commandContext, args []string) error {
	opts, err := parseSubmitFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	db, redisClient, err := connectInfra(cmdCtx.Logger, &cmdCtx.Config)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx.Logger, db, redisClient)

	missionID := uuid.NewString()
	job := model.DriftJob{
		MissionID: missionID,
		Params: model.DriftJobParams{
			Latitude:      opts.Latitude,
			Longitude:     opts.Longitude,
			StartTime:     opts.StartTime,
			DurationHours: opts.DurationHours,
			NumParticles:  opts.NumParticles,
			ObjectType:    opts.ObjectType,
			Backtracking:  opts.Backtracking,
		},
	}
	job.ApplyDefaults(
		cmdCtx.Config.Worker.DefaultParticles,
		cmdCtx.Config.Worker.DefaultDurationHours,
		cmdCtx.Config.Worker.DefaultObjectClass)
	if validateErr := job.Validate(); validateErr != nil {
		return validateErr
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode drift job: %w", err)
	}

	missions := data.NewMissionRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})
	if createErr := missions.Create(ctx, missionID); createErr != nil {
		return createErr
	}

	jobs := queue.NewRedisQueue(redisClient, cmdCtx.Config.Queues.JobQueue, cmdCtx.Logger)
	if enqueueErr := jobs.Enqueue(ctx, payload); enqueueErr != nil {
		return enqueueErr
	}

	objectName, _ := leeway.Name(job.Params.ObjectType)
	cmdCtx.Logger.Info("mission submitted",
		"mission_id", missionID,
		"latitude", job.Params.Latitude,
		"longitude", job.Params.Longitude,
		"particles", job.Params.NumParticles,
		"duration_hours", job.Params.DurationHours,
		"object_class", objectName)

	if err := writef(os.Stdout, "%s\n", missionID); err != nil {
		return fmt.Errorf("print mission id: %w", err)
	}
	return nil
}

func runStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatusFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	db, redisClient, err := connectInfra(cmdCtx.Logger, &cmdCtx.Config)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx.Logger, db, redisClient)

	missions := data.NewMissionRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})
	mission, err := missions.Get(ctx, opts.MissionID)
	if err != nil {
		return err
	}

	result, err := data.NewResultRepo(db).Get(ctx, opts.MissionID)
	if err != nil && !errors.Is(err, data.ErrResultNotFound) {
		return err
	}

	if printErr := printMissionStatus(mission, result); printErr != nil {
		return printErr
	}

	return printQueueDepths(ctx, cmdCtx, redisClient)
}

func printMissionStatus(mission *model.Mission, result *model.MissionResult) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "Mission\t%s\n", mission.ID); err != nil {
		return fmt.Errorf("write mission id: %w", err)
	}
	if err := writef(w, "Status\t%s\n", mission.Status); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if mission.ErrorMessage != nil {
		if err := writef(w, "Error\t%s\n", *mission.ErrorMessage); err != nil {
			return fmt.Errorf("write error message: %w", err)
		}
	}
	if err := writef(w, "Created\t%s\n", mission.CreatedAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write created at: %w", err)
	}
	if mission.CompletedAt != nil {
		if err := writef(w, "Completed\t%s\n", mission.CompletedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("write completed at: %w", err)
		}
	}
	if result != nil {
		if err := writeResultRows(w, result); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush status: %w", err)
	}
	return nil
}

func writeResultRows(w io.Writer, result *model.MissionResult) error {
	if result.CentroidLat != nil && result.CentroidLon != nil {
		if err := writef(w, "Centroid\t%.5f, %.5f\n", *result.CentroidLat, *result.CentroidLon); err != nil {
			return fmt.Errorf("write centroid: %w", err)
		}
	}
	if result.ParticleCount != nil {
		stranded := 0
		if result.StrandedCount != nil {
			stranded = *result.StrandedCount
		}
		if err := writef(w, "Particles\t%d (%d stranded)\n", *result.ParticleCount, stranded); err != nil {
			return fmt.Errorf("write particles: %w", err)
		}
	}
	if result.ComputationTimeSeconds != nil {
		if err := writef(w, "Computed in\t%.1fs\n", *result.ComputationTimeSeconds); err != nil {
			return fmt.Errorf("write computation time: %w", err)
		}
	}
	artifacts := []struct {
		label string
		path  *string
	}{
		{"Raw", result.NetcdfPath},
		{"GeoJSON", result.GeojsonPath},
		{"Heatmap", result.HeatmapPath},
		{"Report", result.PdfReportPath},
	}
	for _, a := range artifacts {
		if a.path == nil {
			continue
		}
		if err := writef(w, "%s\t%s\n", a.label, *a.path); err != nil {
			return fmt.Errorf("write artifact %s: %w", a.label, err)
		}
	}
	return nil
}

func printQueueDepths(ctx context.Context, cmdCtx *commandContext, redisClient redis.UniversalClient) error {
	if err := writef(os.Stdout, "\nQueues\n"); err != nil {
		return fmt.Errorf("write queue header: %w", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "Queue\tPending\tProcessing\n"); err != nil {
		return fmt.Errorf("write queue table header: %w", err)
	}
	for _, name := range []string{cmdCtx.Config.Queues.JobQueue, cmdCtx.Config.Queues.ResultsQueue} {
		q := queue.NewRedisQueue(redisClient, name, cmdCtx.Logger)
		pending, processing, err := q.Depth(ctx)
		if err != nil {
			return err
		}
		if err := writef(w, "%s\t%d\t%d\n", name, pending, processing); err != nil {
			return fmt.Errorf("write queue depth row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush queue depths: %w", err)
	}
	return nil
}

func runRecover(cmdCtx *commandContext, args []string) error {
	opts, err := parseRecoverFlags(args)
	if err != nil {
		return err
	}
	if !opts.Yes {
		return errors.New(
			"recover requeues in-flight claims and must only run when no worker or processor is live; re-run with --yes to confirm")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	db, redisClient, err := connectInfra(cmdCtx.Logger, &cmdCtx.Config)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx.Logger, db, redisClient)

	for _, name := range []string{cmdCtx.Config.Queues.JobQueue, cmdCtx.Config.Queues.ResultsQueue} {
		q := queue.NewRedisQueue(redisClient, name, cmdCtx.Logger)
		recovered, recoverErr := q.RecoverOrphans(ctx)
		if recoverErr != nil {
			return recoverErr
		}
		if err := writef(os.Stdout, "%s: requeued %d orphaned claims\n", name, recovered); err != nil {
			return fmt.Errorf("print recover summary: %w", err)
		}
	}
	return nil
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{
		Timeout: defaultMigrationTimeout,
	}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}

	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseSubmitFlags(args []string) (submitOptions, error) {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts submitOptions
	var startStr string
	fs.Float64Var(&opts.Latitude, "lat", 0, "Last known latitude in decimal degrees (required)")
	fs.Float64Var(&opts.Longitude, "lon", 0, "Last known longitude in decimal degrees (required)")
	fs.StringVar(&startStr, "start", "", "Incident time in RFC 3339 (default: now)")
	fs.IntVar(&opts.DurationHours, "duration", 0, "Forecast duration in hours (default: configured)")
	fs.IntVar(&opts.NumParticles, "particles", 0, "Particle count (default: configured)")
	fs.IntVar(&opts.ObjectType, "object-type", 0, "Leeway object class (default: configured)")
	fs.BoolVar(&opts.Backtracking, "backtracking", false, "Simulate backward in time from the start position")

	if err := fs.Parse(args); err != nil {
		return submitOptions{}, err
	}

	seen := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	if !seen["lat"] || !seen["lon"] {
		return submitOptions{}, errors.New("--lat and --lon are required")
	}

	if startStr == "" {
		opts.StartTime = time.Now().UTC().Truncate(time.Second)
	} else {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return submitOptions{}, fmt.Errorf("--start must be RFC 3339: %w", err)
		}
		opts.StartTime = start
	}

	return opts, nil
}

func parseStatusFlags(args []string) (statusOptions, error) {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts statusOptions
	fs.StringVar(&opts.MissionID, "mission-id", "", "Mission ID to inspect (required)")

	if err := fs.Parse(args); err != nil {
		return statusOptions{}, err
	}

	// Allow the mission ID as a bare positional argument too.
	if opts.MissionID == "" && fs.NArg() == 1 {
		opts.MissionID = fs.Arg(0)
	}
	opts.MissionID = strings.TrimSpace(opts.MissionID)
	if opts.MissionID == "" {
		return statusOptions{}, errors.New("--mission-id is required")
	}
	if _, err := uuid.Parse(opts.MissionID); err != nil {
		return statusOptions{}, errors.New("--mission-id must be a valid UUID")
	}

	return opts, nil
}

func parseRecoverFlags(args []string) (recoverOptions, error) {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts recoverOptions
	fs.BoolVar(&opts.Yes, "yes", false, "Confirm that no pipeline consumer is currently running")

	if err := fs.Parse(args); err != nil {
		return recoverOptions{}, err
	}

	return opts, nil
}

//nolint:ireturn // returning redis.UniversalClient keeps sentinel support flexible.
func connectInfra(logger *slog.Logger, cfg *config.AppConfig) (*sql.DB, redis.UniversalClient, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cfg.Postgres,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.Warn("close database after redis connect failure", "error", cerr)
		}
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	return db, redisClient, nil
}

func closeInfra(logger *slog.Logger, db *sql.DB, redisClient redis.UniversalClient) {
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Warn("db close failed", "error", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close failed", "error", err)
		}
	}
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
