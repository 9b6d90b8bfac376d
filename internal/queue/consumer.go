package queue

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/common/metrics"
	"finserv-workers/internal/common/observability"
	"finserv-workers/internal/common/validation"
)

// Handler processes one claimed task. Returning a non-nil error triggers the
// consumer's retry policy unless the error is marked non-retryable.
type Handler interface {
	Handle(ctx context.Context, task *Task) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task *Task) error

func (f HandlerFunc) Handle(ctx context.Context, task *Task) error {
	return f(ctx, task)
}

// ConsumerConfig wires a consumer loop to one named queue.
type ConsumerConfig struct {
	Queue        string
	Handler      Handler
	Policy       RetryPolicy
	Concurrency  int
	TaskTimeout  time.Duration
	PollInterval time.Duration

	// ReclaimAfter is how long a claimed task may sit unsettled before the
	// promoter assumes its consumer died and returns it to the ready set.
	// Must exceed TaskTimeout or a slow task can run twice.
	ReclaimAfter time.Duration
}

// settleTimeout bounds the Redis writes that record a task's outcome. These
// run on a context detached from the worker's, so a shutdown mid-task still
// settles instead of stranding the task.
const settleTimeout = 5 * time.Second

// Consumer runs long-lived worker goroutines that claim, execute, and settle
// tasks, plus a promoter that returns due delayed tasks to the ready set.
type Consumer struct {
	rdb    *redis.Client
	cfg    ConsumerConfig
	logger logger.Logger
	obs    *observability.Observability
}

func NewConsumer(rdb *redis.Client, cfg ConsumerConfig, log logger.Logger, obs *observability.Observability) *Consumer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	if cfg.ReclaimAfter <= 0 {
		cfg.ReclaimAfter = 2 * cfg.TaskTimeout
	}
	return &Consumer{
		rdb:    rdb,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"queue": cfg.Queue}),
		obs:    obs,
	}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("consumer started", map[string]interface{}{
		"concurrency": c.cfg.Concurrency,
		"maxAttempts": c.cfg.Policy.MaxAttempts,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.promoteLoop(ctx)
	}()

	for i := 0; i < c.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.workLoop(ctx)
		}()
	}

	wg.Wait()
	c.logger.Info("consumer stopped", nil)
}

func (c *Consumer) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := promoteDue(ctx, c.rdb, c.cfg.Queue, now); err != nil && ctx.Err() == nil {
				c.logger.Warn("promoting delayed tasks failed", map[string]interface{}{
					"error": err.Error(),
				})
			}

			reclaimed, err := reclaimStalled(ctx, c.rdb, c.cfg.Queue, now.Add(-c.cfg.ReclaimAfter))
			if err != nil && ctx.Err() == nil {
				c.logger.Warn("reclaiming stalled tasks failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			if reclaimed > 0 {
				metrics.QueueTasksReclaimed.WithLabelValues(c.cfg.Queue).Add(float64(reclaimed))
				c.logger.Warn("reclaimed stalled tasks", map[string]interface{}{
					"count": reclaimed,
				})
			}
		}
	}
}

func (c *Consumer) workLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := claim(ctx, c.rdb, c.cfg.Queue)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("claim failed", map[string]interface{}{"error": err.Error()})
			sleepCtx(ctx, c.cfg.PollInterval)
			continue
		}
		if task == nil {
			sleepCtx(ctx, c.cfg.PollInterval)
			continue
		}

		c.process(ctx, task)
	}
}

func (c *Consumer) process(ctx context.Context, task *Task) {
	log := c.logger.WithFields(map[string]interface{}{
		"taskId":  task.ID,
		"attempt": task.Attempt,
	})

	if err := validation.ValidateTaskPayload(task.Queue, task.Payload); err != nil {
		log.Error("dropping task with invalid payload", map[string]interface{}{
			"error": err.Error(),
		})
		c.settle(ctx, task, stderrors.NewPayloadValidationError(task.Queue, err.Error()))
		return
	}

	metrics.QueueTasksActive.WithLabelValues(task.Queue).Inc()
	start := time.Now()

	taskCtx, cancel := context.WithTimeout(ctx, c.cfg.TaskTimeout)
	err := c.cfg.Handler.Handle(taskCtx, task)
	cancel()

	duration := time.Since(start)
	metrics.QueueTasksActive.WithLabelValues(task.Queue).Dec()

	status := "ok"
	if err != nil {
		status = "error"
	}
	if c.obs != nil {
		c.obs.RecordTaskProcessed(ctx, task.Queue, status)
		c.obs.RecordTaskDuration(ctx, task.Queue, duration, status)
	}
	metrics.QueueTaskDuration.WithLabelValues(task.Queue).Observe(duration.Seconds())

	c.settle(ctx, task, err)
}

// settle removes a finished task, or parks it for retry when the handler
// failed with a retryable error and attempts remain. It runs on a context
// detached from the worker's: the claimed task must land back in a set even
// when ctx was cancelled by shutdown mid-handling.
func (c *Consumer) settle(ctx context.Context, task *Task, err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	log := c.logger.WithFields(map[string]interface{}{
		"taskId":  task.ID,
		"attempt": task.Attempt,
	})

	if err == nil {
		metrics.QueueTasksCompleted.WithLabelValues(task.Queue).Inc()
		if rmErr := remove(ctx, c.rdb, task.Queue, task.ID); rmErr != nil {
			log.Warn("removing completed task failed", map[string]interface{}{
				"error": rmErr.Error(),
			})
		}
		return
	}

	code := string(stderrors.CodeOf(err))
	metrics.QueueTasksFailed.WithLabelValues(task.Queue, code).Inc()

	if !stderrors.IsRetryable(err) || c.cfg.Policy.Exhausted(task.Attempt) {
		log.Error("task failed terminally", map[string]interface{}{
			"error":     err.Error(),
			"errorCode": code,
		})
		if rmErr := remove(ctx, c.rdb, task.Queue, task.ID); rmErr != nil {
			log.Warn("removing failed task failed", map[string]interface{}{
				"error": rmErr.Error(),
			})
		}
		return
	}

	delay := c.cfg.Policy.Delay(task.Attempt)
	readyAt := time.Now().Add(delay)
	log.Warn("task failed, scheduling retry", map[string]interface{}{
		"error":     err.Error(),
		"errorCode": code,
		"retryIn":   delay.String(),
	})
	if rsErr := reschedule(ctx, c.rdb, task.Queue, task.ID, readyAt); rsErr != nil {
		log.Error("rescheduling task failed", map[string]interface{}{
			"error": rsErr.Error(),
		})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
