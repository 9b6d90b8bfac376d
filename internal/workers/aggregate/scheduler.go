package aggregate

import (
	"context"
	"fmt"
	"time"

	"finserv-workers/internal/common/logger"
)

// Scheduler runs the aggregation once per day at a fixed local-UTC wall time,
// snapshotting the previous day. Failures are logged and retried at the next
// tick; the upsert makes reruns safe.
type Scheduler struct {
	service *Service
	runAt   string // "HH:MM"
	logger  logger.Logger
}

func NewScheduler(service *Service, runAt string, log logger.Logger) *Scheduler {
	return &Scheduler{
		service: service,
		runAt:   runAt,
		logger:  log.WithFields(map[string]interface{}{"worker": "aggregate"}),
	}
}

// Run blocks until ctx is cancelled, firing once per day.
func (s *Scheduler) Run(ctx context.Context) {
	hour, minute, err := parseRunAt(s.runAt)
	if err != nil {
		s.logger.Error("invalid aggregation schedule, scheduler disabled", map[string]interface{}{
			"runAt": s.runAt,
			"error": err.Error(),
		})
		return
	}

	s.logger.Info("aggregation scheduler started", map[string]interface{}{
		"runAt": s.runAt,
	})

	for {
		next := nextRun(time.Now().UTC(), hour, minute)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("aggregation scheduler stopped", nil)
			return
		case <-timer.C:
		}

		yesterday := time.Now().UTC().Add(-24 * time.Hour)
		if err := s.service.AggregateForDate(ctx, yesterday); err != nil && ctx.Err() == nil {
			s.logger.WithError(err).Error("daily aggregation failed", map[string]interface{}{
				"date": yesterday.Format("2006-01-02"),
			})
		}
	}
}

func parseRunAt(v string) (hour, minute int, err error) {
	if _, err = fmt.Sscanf(v, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("parse run-at %q: %w", v, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("run-at %q out of range", v)
	}
	return hour, minute, nil
}

// nextRun returns the next occurrence of hour:minute strictly after now.
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
