// Package queue implements the mission job queues on Redis lists.
//
// Producers RPUSH onto the pending list and consumers claim with BLMOVE into
// a per-queue processing list, giving FIFO order with at-least-once delivery:
// a message only leaves the processing list on Ack, so anything a crashed
// consumer left behind can be drained back onto the pending list.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driftline/driftline/internal/core"
)

// RedisQueue is a core.JobQueue backed by a Redis list pair.
type RedisQueue struct {
	client redis.UniversalClient
	name   string
	logger *slog.Logger
}

var _ core.JobQueue = (*RedisQueue)(nil)

// NewRedisQueue creates a queue over the named Redis list.
func NewRedisQueue(client redis.UniversalClient, name string, logger *slog.Logger) *RedisQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisQueue{client: client, name: name, logger: logger}
}

// Name returns the pending list key.
func (q *RedisQueue) Name() string { return q.name }

func (q *RedisQueue) processingKey() string { return q.name + ":processing" }

// Enqueue appends a message to the tail of the pending list.
func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) error {
	if err := q.client.RPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("enqueue to %s: %w", q.name, err)
	}
	return nil
}

// Dequeue claims the head of the pending list, parking it on the processing
// list until Ack. Returns (nil, nil) when the timeout elapses with the queue
// empty.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*core.Delivery, error) {
	payload, err := q.client.BLMove(ctx, q.name, q.processingKey(), "LEFT", "RIGHT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue from %s: %w", q.name, err)
	}
	return &core.Delivery{Payload: []byte(payload), Token: payload}, nil
}

// Ack removes a claimed message from the processing list. Acking the same
// delivery twice is harmless; LREM of an absent element is a no-op.
func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	if d == nil {
		return nil
	}
	if err := q.client.LRem(ctx, q.processingKey(), 1, d.Token).Err(); err != nil {
		return fmt.Errorf("ack on %s: %w", q.name, err)
	}
	return nil
}

// Delivery aliases the core type so callers inside this package read cleanly.
type Delivery = core.Delivery

// RecoverOrphans drains the processing list back onto the head of the pending
// list and returns the number of messages requeued. Run this at startup, or
// from the admin recover command, when no consumer of this queue is live;
// moving entries while a consumer holds them would duplicate deliveries
// beyond the usual redelivery window.
func (q *RedisQueue) RecoverOrphans(ctx context.Context) (int, error) {
	recovered := 0
	for {
		// Tail of processing back to head of pending keeps the original order.
		err := q.client.LMove(ctx, q.processingKey(), q.name, "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			return recovered, nil
		}
		if err != nil {
			return recovered, fmt.Errorf("recover orphans on %s: %w", q.name, err)
		}
		recovered++
	}
}

// Depth returns the pending and processing list lengths, for the admin
// status command.
func (q *RedisQueue) Depth(ctx context.Context) (pending, processing int64, err error) {
	pending, err = q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("queue depth on %s: %w", q.name, err)
	}
	processing, err = q.client.LLen(ctx, q.processingKey()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("queue depth on %s: %w", q.name, err)
	}
	return pending, processing, nil
}
