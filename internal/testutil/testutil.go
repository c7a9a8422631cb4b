// Package testutil provides helpers for integration tests that need a real
// Postgres or Redis instance. Tests skip cleanly when no instance is
// reachable so the unit suite stays runnable everywhere.
package testutil

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	// Import pgx driver for database/sql compatibility in tests.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/driftline/driftline/internal/migrate"
)

// TestDBConfig holds configuration for the test database.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DefaultTestDBConfig returns the test database configuration, overridable
// via TEST_DB_* environment variables.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "driftline"),
		Password: envOr("TEST_DB_PASSWORD", "driftline"),
		DBName:   envOr("TEST_DB_NAME", "driftline_test"),
	}
}

// SkipIfNoTestDB opens the test database, applies migrations, and truncates
// pipeline tables. The test is skipped when the database is unreachable.
func SkipIfNoTestDB(t *testing.T) *sql.DB {
	t.Helper()

	cfg := DefaultTestDBConfig()
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, cfg.Port),
		Path:     "/" + cfg.DBName,
		RawQuery: "sslmode=disable",
	}

	db, err := sql.Open("pgx", u.String())
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Skipf("test database unreachable: %v", err)
	}

	if err := migrate.Run(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE missions, mission_results CASCADE`); err != nil {
		_ = db.Close()
		t.Fatalf("truncate test tables: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// SkipIfNoTestRedis returns a Redis client against the test instance,
// overridable via TEST_REDIS_ADDR. The test is skipped when unreachable.
func SkipIfNoTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: envOr("TEST_REDIS_ADDR", "localhost:6379"),
		DB:   15, // keep test keys away from any local dev data
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("test redis unreachable: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })
	return client
}

// NewMissionID returns a fresh mission UUID for tests.
func NewMissionID() string {
	return uuid.NewString()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
