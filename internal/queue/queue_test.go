package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/testutil"
)

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	client := testutil.SkipIfNoTestRedis(t)

	name := fmt.Sprintf("driftline:test:%s:%d", t.Name(), time.Now().UnixNano())
	q := NewRedisQueue(client, name, nil)
	t.Cleanup(func() {
		client.Del(context.Background(), q.Name(), q.processingKey())
	})
	return q
}

func TestQueueFIFOAndAck(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, []byte("first")))
	require.NoError(t, q.Enqueue(ctx, []byte("second")))

	d1, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d1)
	assert.Equal(t, "first", string(d1.Payload))

	d2, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d2)
	assert.Equal(t, "second", string(d2.Payload))

	require.NoError(t, q.Ack(ctx, d1))
	require.NoError(t, q.Ack(ctx, d2))
	// Double ack is harmless.
	require.NoError(t, q.Ack(ctx, d2))

	pending, processing, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, processing)
}

func TestDequeueTimeoutReturnsNil(t *testing.T) {
	q := newTestQueue(t)

	d, err := q.Dequeue(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestRecoverOrphans(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	for _, payload := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, []byte(payload)))
	}

	// Claim two without acking, simulating a crashed consumer.
	for i := 0; i < 2; i++ {
		d, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, d)
	}

	recovered, err := q.RecoverOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)

	// Recovered messages come back ahead of the untouched tail, in order.
	var order []string
	for i := 0; i < 3; i++ {
		d, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, d)
		order = append(order, string(d.Payload))
		require.NoError(t, q.Ack(ctx, d))
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}
