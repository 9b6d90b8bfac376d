// Package queue implements a durable, at-least-once Redis task queue with
// priority ordering and exponential-backoff retry. Producers enqueue JSON
// payloads; each task is delivered to exactly one consumer invocation at a
// time, and completed tasks are removed from the backing store.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Well-known queue names.
const (
	NotificationsQueue = "notifications"
	ExportsQueue       = "exports"
)

// Priorities: numerically lower dequeues first. Payment and refund
// notifications jump the line under contention.
const (
	PriorityHigh    = 1
	PriorityDefault = 2
)

// Task is a single unit of queued work.
type Task struct {
	ID       string
	Queue    string
	Payload  json.RawMessage
	Priority int
	Attempt  int // 1-based, set while the task is being handled
}

// Options control enqueue behavior.
type Options struct {
	Priority int
}

// Queue is the producer handle for one named queue.
type Queue struct {
	rdb  *redis.Client
	name string
}

func New(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

func (q *Queue) Name() string { return q.name }

// Redis key layout, per queue:
//   queue:{name}:seq        INCR counter, FIFO tiebreak within a priority
//   queue:{name}:ready      ZSET taskID -> priority<<40 | seq
//   queue:{name}:delayed    ZSET taskID -> ready-at unix ms
//   queue:{name}:active     ZSET taskID -> claimed-at unix ms
//   queue:{name}:task:{id}  HASH payload, priority, attempts
//
// A task is always in exactly one of ready, delayed, or active, so a consumer
// crash can never strand it: the promoter returns stale active entries to
// ready.
func keySeq(name string) string      { return "queue:" + name + ":seq" }
func keyReady(name string) string    { return "queue:" + name + ":ready" }
func keyDelayed(name string) string  { return "queue:" + name + ":delayed" }
func keyActive(name string) string   { return "queue:" + name + ":active" }
func keyTask(name, id string) string { return "queue:" + name + ":task:" + id }

// readyScore orders by priority first, then FIFO. Sequence numbers stay well
// below 2^40 so the combined score is exact in a float64.
func readyScore(priority int, seq int64) float64 {
	return float64(priority)*math.Pow(2, 40) + float64(seq)
}

// Enqueue stores payload durably and makes it claimable. Returns the task id.
func (q *Queue) Enqueue(ctx context.Context, payload interface{}, opts Options) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal task payload: %w", err)
	}

	priority := opts.Priority
	if priority <= 0 {
		priority = PriorityDefault
	}

	id := uuid.NewString()
	seq, err := q.rdb.Incr(ctx, keySeq(q.name)).Result()
	if err != nil {
		return "", fmt.Errorf("allocate task sequence: %w", err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, keyTask(q.name, id), map[string]interface{}{
		"payload":    string(data),
		"priority":   priority,
		"attempts":   0,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.ZAdd(ctx, keyReady(q.name), redis.Z{
		Score:  readyScore(priority, seq),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}

	return id, nil
}

// claimScript moves the lowest-scored ready task into the active set in one
// atomic step, so no two consumers can claim the same task and a crash mid
// claim cannot leave the task outside every set.
var claimScript = redis.NewScript(`
local popped = redis.call('ZPOPMIN', KEYS[1], 1)
if #popped == 0 then
	return false
end
redis.call('ZADD', KEYS[2], ARGV[1], popped[1])
return popped[1]
`)

// claim takes ownership of the lowest-scored ready task and loads its data.
// Returns nil with no error when the queue is empty.
func claim(ctx context.Context, rdb *redis.Client, name string) (*Task, error) {
	res, err := claimScript.Run(ctx, rdb,
		[]string{keyReady(name), keyActive(name)},
		time.Now().UnixMilli(),
	).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop ready task: %w", err)
	}

	id, _ := res.(string)
	fields, err := rdb.HGetAll(ctx, keyTask(name, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}
	if len(fields) == 0 {
		// Task data expired or was removed out from under us; nothing to run.
		rdb.ZRem(ctx, keyActive(name), id)
		return nil, nil
	}

	attempt, err := rdb.HIncrBy(ctx, keyTask(name, id), "attempts", 1).Result()
	if err != nil {
		return nil, fmt.Errorf("bump task attempt %s: %w", id, err)
	}

	priority := PriorityDefault
	fmt.Sscanf(fields["priority"], "%d", &priority)

	return &Task{
		ID:       id,
		Queue:    name,
		Payload:  json.RawMessage(fields["payload"]),
		Priority: priority,
		Attempt:  int(attempt),
	}, nil
}

// remove deletes all trace of a task (completion or terminal drop).
func remove(ctx context.Context, rdb *redis.Client, name, id string) error {
	pipe := rdb.TxPipeline()
	pipe.ZRem(ctx, keyActive(name), id)
	pipe.ZRem(ctx, keyDelayed(name), id)
	pipe.Del(ctx, keyTask(name, id))
	_, err := pipe.Exec(ctx)
	return err
}

// reschedule parks a failed task in the delayed set until readyAt.
func reschedule(ctx context.Context, rdb *redis.Client, name, id string, readyAt time.Time) error {
	pipe := rdb.TxPipeline()
	pipe.ZRem(ctx, keyActive(name), id)
	pipe.ZAdd(ctx, keyDelayed(name), redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: id,
	})
	_, err := pipe.Exec(ctx)
	return err
}

// promoteDue moves tasks whose delay has elapsed back into the ready set,
// preserving their stored priority. Returns how many were promoted.
func promoteDue(ctx context.Context, rdb *redis.Client, name string, now time.Time) (int, error) {
	ids, err := rdb.ZRangeByScore(ctx, keyDelayed(name), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: 100,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan delayed tasks: %w", err)
	}

	promoted := 0
	for _, id := range ids {
		removed, err := rdb.ZRem(ctx, keyDelayed(name), id).Result()
		if err != nil || removed == 0 {
			continue // another instance promoted it first
		}
		if err := pushReady(ctx, rdb, name, id); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// reclaimStalled returns tasks claimed before cutoff to the ready set. This
// is the safety net for consumers that died between claiming and settling.
func reclaimStalled(ctx context.Context, rdb *redis.Client, name string, cutoff time.Time) (int, error) {
	ids, err := rdb.ZRangeByScore(ctx, keyActive(name), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", cutoff.UnixMilli()),
		Count: 100,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan active tasks: %w", err)
	}

	reclaimed := 0
	for _, id := range ids {
		removed, err := rdb.ZRem(ctx, keyActive(name), id).Result()
		if err != nil || removed == 0 {
			continue // settled or reclaimed by another instance
		}
		if err := pushReady(ctx, rdb, name, id); err != nil {
			return reclaimed, err
		}
		reclaimed++
	}
	return reclaimed, nil
}

// pushReady re-adds an existing task to the ready set with a fresh sequence
// number, preserving its stored priority.
func pushReady(ctx context.Context, rdb *redis.Client, name, id string) error {
	priority := PriorityDefault
	if p, err := rdb.HGet(ctx, keyTask(name, id), "priority").Int(); err == nil {
		priority = p
	}
	seq, err := rdb.Incr(ctx, keySeq(name)).Result()
	if err != nil {
		return err
	}
	return rdb.ZAdd(ctx, keyReady(name), redis.Z{
		Score:  readyScore(priority, seq),
		Member: id,
	}).Err()
}

// Depth returns the number of ready plus delayed tasks, for reporting.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	ready, err := q.rdb.ZCard(ctx, keyReady(q.name)).Result()
	if err != nil {
		return 0, err
	}
	delayed, err := q.rdb.ZCard(ctx, keyDelayed(q.name)).Result()
	if err != nil {
		return 0, err
	}
	return ready + delayed, nil
}
