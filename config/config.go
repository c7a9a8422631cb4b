package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Postgres, Redis, and object store configuration
//   - services.go: Service mode, worker, and processor configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database and infrastructure configuration
	Postgres    DBConfig    `envPrefix:"DB_"`
	Redis       RedisConfig `envPrefix:"REDIS_"`
	ObjectStore S3Config    `envPrefix:"S3_"`

	// Service mode configuration. Comma-separated list of services to run
	// in this process: drift-worker, results-processor.
	Services string `env:"SERVICES" envDefault:"drift-worker,results-processor"`

	// Queue configuration shared by the worker and processor
	Queues QueueConfig

	// Drift worker configuration
	Worker WorkerConfig

	// Results processor configuration
	Processor ProcessorConfig

	// Simulation engine invocation configuration
	Simulation SimulationConfig

	// Forcing data provider configuration
	Forcing ForcingConfig

	// Probability surface configuration
	Surface SurfaceConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Queues.Sanitize()
	c.Worker.Sanitize()
	c.Processor.Sanitize()
	c.Simulation.Sanitize()
	c.Forcing.Sanitize()
	c.Surface.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and ENVIRONMENT variables. ENVIRONMENT is
// checked as a fallback since the compose files set it for every service.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		envName := strings.ToLower(os.Getenv("ENVIRONMENT"))
		c.IsDev = envName == "development" || envName == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsDriftWorkerEnabled returns true if the drift worker service is enabled.
func (c *AppConfig) IsDriftWorkerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeDriftWorker]
}

// IsResultsProcessorEnabled returns true if the results processor service is enabled.
func (c *AppConfig) IsResultsProcessorEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeResultsProcessor]
}
