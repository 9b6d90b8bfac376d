package queue

import "time"

// RetryPolicy is the explicit backoff schedule applied by a consumer. It is
// passed in by the composition root, never defaulted inside the queue.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  int
}

// Delay returns how long to wait before the given attempt re-runs.
// attempt is 1-based: Delay(1) schedules the second execution.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= time.Duration(p.Multiplier)
	}
	return d
}

// Exhausted reports whether attempt has hit the policy ceiling.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

// DefaultRetryPolicy mirrors the queue settings used in production:
// 5 attempts, 3s base delay, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   3 * time.Second,
		Multiplier:  2,
	}
}
