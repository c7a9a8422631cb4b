package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeDriftWorker runs the drift simulation worker.
	ServiceModeDriftWorker ServiceMode = "drift-worker"
	// ServiceModeResultsProcessor runs the results processor (probability surface engine).
	ServiceModeResultsProcessor ServiceMode = "results-processor"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeDriftWorker,
		ServiceModeResultsProcessor,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeDriftWorker, ServiceModeResultsProcessor:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: drift-worker, results-processor)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// QueueConfig contains Redis queue names and claim behavior shared by
// the drift worker and results processor.
type QueueConfig struct {
	// JobQueue carries mission job messages from the API layer.
	JobQueue string `env:"QUEUE_NAME" envDefault:"drift_jobs"`

	// ResultsQueue carries results job messages from the worker to the processor.
	ResultsQueue string `env:"RESULTS_QUEUE_NAME" envDefault:"drift_results"`

	// PollInterval bounds each blocking dequeue call.
	PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`

	// ReconnectBackoff is the pause before re-polling after a transient queue error.
	ReconnectBackoff time.Duration `env:"QUEUE_RECONNECT_BACKOFF" envDefault:"2s"`
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueueConfig) Sanitize() {
	if strings.TrimSpace(q.JobQueue) == "" {
		q.JobQueue = "drift_jobs"
	}
	if strings.TrimSpace(q.ResultsQueue) == "" {
		q.ResultsQueue = "drift_results"
	}
	if q.PollInterval < time.Second {
		q.PollInterval = time.Second
	}
	if q.ReconnectBackoff < 100*time.Millisecond {
		q.ReconnectBackoff = 100 * time.Millisecond
	}
}

// WorkerConfig contains drift worker service configuration.
type WorkerConfig struct {
	// Concurrency is the number of worker goroutines, each running a
	// single-threaded poll loop.
	Concurrency int `env:"MAX_CONCURRENT_JOBS" envDefault:"2"`

	// SpatialBufferDegrees pads the forcing data request around the seed position.
	SpatialBufferDegrees float64 `env:"SPATIAL_BUFFER_DEGREES" envDefault:"2.0"`

	// DefaultParticles is used when a job omits the particle count.
	DefaultParticles int `env:"DEFAULT_NUM_PARTICLES" envDefault:"1000"`

	// DefaultDurationHours is used when a job omits the forecast duration.
	DefaultDurationHours int `env:"DEFAULT_DURATION_HOURS" envDefault:"24"`

	// DefaultObjectClass is the leeway object class used when a job omits one.
	DefaultObjectClass int `env:"DEFAULT_OBJECT_TYPE" envDefault:"1"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.SpatialBufferDegrees <= 0 {
		w.SpatialBufferDegrees = 2.0
	}
	if w.DefaultParticles < 1 {
		w.DefaultParticles = 1000
	}
	if w.DefaultDurationHours < 1 {
		w.DefaultDurationHours = 24
	}
	if w.DefaultObjectClass < 1 {
		w.DefaultObjectClass = 1
	}
}

// ProcessorConfig contains results processor service configuration.
type ProcessorConfig struct {
	// Concurrency is the number of processor goroutines.
	Concurrency int `env:"MAX_CONCURRENT_RESULTS" envDefault:"1"`
}

// Sanitize applies guardrails to processor configuration values.
func (p *ProcessorConfig) Sanitize() {
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
}

// SimulationConfig contains simulation engine invocation configuration.
type SimulationConfig struct {
	// EngineURL is the base URL of the drift simulation engine service.
	EngineURL string `env:"ENGINE_URL" envDefault:"http://drift-engine:8100"`

	// Timeout bounds a single engine invocation.
	Timeout time.Duration `env:"SIMULATION_TIMEOUT" envDefault:"10m"`

	// TimeStepSeconds is the simulation integration step.
	TimeStepSeconds int `env:"SIMULATION_TIME_STEP" envDefault:"3600"`

	// OutputIntervalSeconds is the trajectory output sampling interval.
	OutputIntervalSeconds int `env:"SIMULATION_OUTPUT_INTERVAL" envDefault:"3600"`

	// SeedRadiusM is the initial particle scatter radius in meters.
	SeedRadiusM int `env:"SIMULATION_SEED_RADIUS" envDefault:"100"`
}

// Sanitize applies guardrails to simulation configuration values.
func (s *SimulationConfig) Sanitize() {
	if s.Timeout < time.Minute {
		s.Timeout = time.Minute
	}
	if s.TimeStepSeconds < 1 {
		s.TimeStepSeconds = 3600
	}
	if s.OutputIntervalSeconds < 1 {
		s.OutputIntervalSeconds = 3600
	}
	if s.SeedRadiusM < 1 {
		s.SeedRadiusM = 100
	}
}

// ForcingConfig contains forcing data provider configuration.
type ForcingConfig struct {
	// DataServiceURL is the base URL of the environmental data service.
	DataServiceURL string `env:"DATA_SERVICE_URL" envDefault:"http://data-service:8000"`

	// Timeout bounds a forcing data request.
	Timeout time.Duration `env:"DATA_SERVICE_TIMEOUT" envDefault:"120s"`
}

// Sanitize applies guardrails to forcing configuration values.
func (f *ForcingConfig) Sanitize() {
	if f.Timeout < time.Second {
		f.Timeout = time.Second
	}
}

// SurfaceConfig contains probability surface configuration.
type SurfaceConfig struct {
	// GridResolution is the number of cells per axis of the density grid.
	GridResolution int `env:"GRID_RESOLUTION" envDefault:"100"`

	// SmoothingSigma is the Gaussian smoothing kernel width in cells.
	SmoothingSigma float64 `env:"GRID_SMOOTHING_SIGMA" envDefault:"1.5"`

	// PaddingDegrees pads the grid bounding box around the final positions.
	PaddingDegrees float64 `env:"GRID_PADDING_DEGREES" envDefault:"0.05"`

	// MaxTrajectorySamples bounds the number of trajectories emitted for visualization.
	MaxTrajectorySamples int `env:"MAX_TRAJECTORY_SAMPLES" envDefault:"100"`
}

// Sanitize applies guardrails to surface configuration values.
func (s *SurfaceConfig) Sanitize() {
	if s.GridResolution < 10 {
		s.GridResolution = 100
	}
	if s.SmoothingSigma <= 0 {
		s.SmoothingSigma = 1.5
	}
	if s.PaddingDegrees < 0 {
		s.PaddingDegrees = 0.05
	}
	if s.MaxTrajectorySamples < 1 {
		s.MaxTrajectorySamples = 100
	}
}
