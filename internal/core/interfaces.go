// Package core defines the ports between the pipeline runners and their
// infrastructure adapters. Runners accept these interfaces; adapters in
// internal/data, internal/queue, internal/storage, internal/forcing, and
// internal/simulation return concrete implementations.
package core

import (
	"context"
	"time"

	"github.com/driftline/driftline/internal/domain/model"
)

// Delivery is one claimed queue message. The payload stays opaque until the
// consumer parses it; Token identifies the claim for acknowledgment.
type Delivery struct {
	Payload []byte
	Token   string
}

// JobQueue is a durable, ordered, at-least-once delivery channel. Dequeue
// blocks up to timeout and returns (nil, nil) when no message arrived —
// queue-empty is not an error. A claimed message is redelivered after a
// crash unless Ack is called.
type JobQueue interface {
	Enqueue(ctx context.Context, payload []byte) error
	Dequeue(ctx context.Context, timeout time.Duration) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
}

// MissionRepository drives the mission status state machine. All transitions
// are idempotent; terminal statuses are never overwritten.
type MissionRepository interface {
	GetStatus(ctx context.Context, missionID string) (model.MissionStatus, error)
	MarkProcessing(ctx context.Context, missionID string) error
	MarkCompleted(ctx context.Context, missionID string) error
	MarkFailed(ctx context.Context, missionID, reason string) error
}

// ResultRepository owns the mission_results row.
type ResultRepository interface {
	// SeedRaw records the raw trajectory reference once the artifact is durable.
	SeedRaw(ctx context.Context, missionID, netcdfPath string, particleCount int) error
	// PublishSummary writes the derived fields in a single update.
	PublishSummary(ctx context.Context, result *model.MissionResult) error
	Get(ctx context.Context, missionID string) (*model.MissionResult, error)
}

// ObjectStore is keyed artifact storage.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// ForcingProvider supplies gridded environmental fields for a window.
// Missing layers are returned as nil entries, not errors.
type ForcingProvider interface {
	Fetch(ctx context.Context, req model.ForcingRequest) (model.ForcingBundle, error)
}

// SimulationEngine is the black-box drift model behind its invocation contract.
type SimulationEngine interface {
	Run(ctx context.Context, req model.SimulationRequest) (*model.TrajectoryDataset, error)
}
