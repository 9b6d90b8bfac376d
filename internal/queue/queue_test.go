package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, "test"), rdb
}

type testPayload struct {
	Value string `json:"value"`
}

func TestEnqueueAndClaim(t *testing.T) {
	ctx := context.Background()
	q, rdb := newTestQueue(t)

	id, err := q.Enqueue(ctx, testPayload{Value: "hello"}, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	task, err := claim(ctx, rdb, "test")
	require.NoError(t, err)
	require.NotNil(t, task)

	assert.Equal(t, id, task.ID)
	assert.Equal(t, 1, task.Attempt)
	assert.Equal(t, PriorityDefault, task.Priority)
	assert.JSONEq(t, `{"value":"hello"}`, string(task.Payload))
}

func TestClaimEmptyQueue(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestQueue(t)

	task, err := claim(ctx, rdb, "test")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestPriorityOrdering(t *testing.T) {
	ctx := context.Background()
	q, rdb := newTestQueue(t)

	low1, err := q.Enqueue(ctx, testPayload{Value: "low-1"}, Options{Priority: PriorityDefault})
	require.NoError(t, err)
	low2, err := q.Enqueue(ctx, testPayload{Value: "low-2"}, Options{Priority: PriorityDefault})
	require.NoError(t, err)
	high, err := q.Enqueue(ctx, testPayload{Value: "high"}, Options{Priority: PriorityHigh})
	require.NoError(t, err)

	// High priority dequeues first even though it was enqueued last;
	// same-priority tasks stay FIFO.
	var order []string
	for i := 0; i < 3; i++ {
		task, err := claim(ctx, rdb, "test")
		require.NoError(t, err)
		require.NotNil(t, task)
		order = append(order, task.ID)
	}
	assert.Equal(t, []string{high, low1, low2}, order)
}

func TestClaimIncrementsAttempt(t *testing.T) {
	ctx := context.Background()
	q, rdb := newTestQueue(t)

	id, err := q.Enqueue(ctx, testPayload{Value: "x"}, Options{})
	require.NoError(t, err)

	task, err := claim(ctx, rdb, "test")
	require.NoError(t, err)
	assert.Equal(t, 1, task.Attempt)

	// Park and promote to simulate a retry cycle.
	require.NoError(t, reschedule(ctx, rdb, "test", id, time.Now().Add(-time.Second)))
	promoted, err := promoteDue(ctx, rdb, "test", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	task, err = claim(ctx, rdb, "test")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, 2, task.Attempt)
}

func TestPromoteSkipsFutureTasks(t *testing.T) {
	ctx := context.Background()
	q, rdb := newTestQueue(t)

	id, err := q.Enqueue(ctx, testPayload{Value: "x"}, Options{})
	require.NoError(t, err)

	task, err := claim(ctx, rdb, "test")
	require.NoError(t, err)
	require.Equal(t, id, task.ID)

	require.NoError(t, reschedule(ctx, rdb, "test", id, time.Now().Add(time.Hour)))

	promoted, err := promoteDue(ctx, rdb, "test", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, promoted)

	task, err = claim(ctx, rdb, "test")
	require.NoError(t, err)
	assert.Nil(t, task, "delayed task must not be claimable before its ready-at")
}

func TestRemoveDeletesTaskData(t *testing.T) {
	ctx := context.Background()
	q, rdb := newTestQueue(t)

	id, err := q.Enqueue(ctx, testPayload{Value: "x"}, Options{})
	require.NoError(t, err)

	task, err := claim(ctx, rdb, "test")
	require.NoError(t, err)
	require.Equal(t, id, task.ID)

	require.NoError(t, remove(ctx, rdb, "test", id))

	exists, err := rdb.Exists(ctx, keyTask("test", id)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestDepthCountsReadyAndDelayed(t *testing.T) {
	ctx := context.Background()
	q, rdb := newTestQueue(t)

	_, err := q.Enqueue(ctx, testPayload{Value: "a"}, Options{})
	require.NoError(t, err)
	idB, err := q.Enqueue(ctx, testPayload{Value: "b"}, Options{})
	require.NoError(t, err)

	// Move one to the delayed set; depth should still see both.
	require.NoError(t, rdb.ZRem(ctx, keyReady("test"), idB).Err())
	require.NoError(t, reschedule(ctx, rdb, "test", idB, time.Now().Add(time.Minute)))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

func TestClaimTracksActiveTask(t *testing.T) {
	ctx := context.Background()
	q, rdb := newTestQueue(t)

	id, err := q.Enqueue(ctx, testPayload{Value: "x"}, Options{})
	require.NoError(t, err)

	task, err := claim(ctx, rdb, "test")
	require.NoError(t, err)
	require.Equal(t, id, task.ID)

	// A claimed task moves from ready into active; it is never outside both.
	_, err = rdb.ZScore(ctx, keyActive("test"), id).Result()
	require.NoError(t, err, "claimed task must be tracked in the active set")
	ready, err := rdb.ZCard(ctx, keyReady("test")).Result()
	require.NoError(t, err)
	assert.Zero(t, ready)
}

func TestReclaimStalledTask(t *testing.T) {
	ctx := context.Background()
	q, rdb := newTestQueue(t)

	id, err := q.Enqueue(ctx, testPayload{Value: "x"}, Options{})
	require.NoError(t, err)

	task, err := claim(ctx, rdb, "test")
	require.NoError(t, err)
	require.Equal(t, 1, task.Attempt)

	// The claiming consumer dies without settling. Reclaiming everything
	// claimed up to now returns the task to the ready set.
	reclaimed, err := reclaimStalled(ctx, rdb, "test", time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	task, err = claim(ctx, rdb, "test")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, id, task.ID)
	assert.Equal(t, 2, task.Attempt)
}

func TestReclaimLeavesFreshClaims(t *testing.T) {
	ctx := context.Background()
	q, rdb := newTestQueue(t)

	_, err := q.Enqueue(ctx, testPayload{Value: "x"}, Options{})
	require.NoError(t, err)
	_, err = claim(ctx, rdb, "test")
	require.NoError(t, err)

	reclaimed, err := reclaimStalled(ctx, rdb, "test", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Zero(t, reclaimed, "a task claimed after the cutoff must stay with its consumer")
}

func TestRetryPolicyDelays(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 3*time.Second, policy.Delay(1))
	assert.Equal(t, 6*time.Second, policy.Delay(2))
	assert.Equal(t, 12*time.Second, policy.Delay(3))
	assert.Equal(t, 24*time.Second, policy.Delay(4))

	assert.False(t, policy.Exhausted(4))
	assert.True(t, policy.Exhausted(5))
}
