// Package aggregate computes the daily metrics snapshot: cumulative and
// per-day totals for users, service requests, and captured revenue, plus the
// pending-KYC backlog. One row per calendar day, idempotent on rerun.
package aggregate

import (
	"context"
	"database/sql"
	"time"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/models"
)

type metricsStore interface {
	UpsertDaily(ctx context.Context, m *models.DailyMetrics) error
}

type Service struct {
	db     *sql.DB
	store  metricsStore
	logger logger.Logger
}

func NewService(db *sql.DB, store metricsStore, log logger.Logger) *Service {
	return &Service{
		db:     db,
		store:  store,
		logger: log.WithFields(map[string]interface{}{"worker": "aggregate"}),
	}
}

// AggregateForDate recomputes and upserts the snapshot for one calendar day.
// "New" counters cover [date 00:00, date+1d 00:00) UTC; totals are cumulative
// through the end of that window.
func (s *Service) AggregateForDate(ctx context.Context, date time.Time) error {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	m := &models.DailyMetrics{Date: dayStart.Format("2006-01-02")}

	query := `SELECT
		(SELECT COUNT(*) FROM users WHERE created_at < $2),
		(SELECT COUNT(*) FROM users WHERE created_at >= $1 AND created_at < $2),
		(SELECT COUNT(*) FROM service_requests WHERE created_at < $2),
		(SELECT COUNT(*) FROM service_requests WHERE created_at >= $1 AND created_at < $2),
		(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'captured' AND created_at < $2),
		(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'captured' AND created_at >= $1 AND created_at < $2),
		(SELECT COUNT(*) FROM users WHERE kyc_status = 'pending')`

	err := s.db.QueryRowContext(ctx, query, dayStart, dayEnd).Scan(
		&m.TotalUsers, &m.NewUsers,
		&m.TotalRequests, &m.NewRequests,
		&m.TotalRevenue, &m.NewRevenue,
		&m.PendingKYC,
	)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("aggregate_daily", err)
	}

	if err := s.store.UpsertDaily(ctx, m); err != nil {
		return err
	}

	s.logger.Info("daily metrics aggregated", map[string]interface{}{
		"date":        m.Date,
		"newUsers":    m.NewUsers,
		"newRequests": m.NewRequests,
		"newRevenue":  m.NewRevenue,
	})
	return nil
}
