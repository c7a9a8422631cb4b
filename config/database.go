package config

// DBConfig contains PostgreSQL mission store configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"driftline"`
	Password string `env:"PASSWORD" envDefault:"driftline"`
	Name     string `env:"NAME"     envDefault:"driftline"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis job queue configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
}

// S3Config contains object store (MinIO/S3) configuration for the
// artifact store and the forcing data bucket.
type S3Config struct {
	Endpoint  string `env:"ENDPOINT"       envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"     envDefault:"minioadmin"`
	SecretKey string `env:"SECRET_KEY"     envDefault:"minioadmin"`
	UseSSL    bool   `env:"USE_SSL"        envDefault:"false"`

	// ResultsBucket holds raw trajectory output and derived products.
	ResultsBucket string `env:"RESULTS_BUCKET" envDefault:"driftline-results"`
	// DataBucket holds environmental forcing data staged by the data service.
	DataBucket string `env:"DATA_BUCKET" envDefault:"driftline-data"`
}
