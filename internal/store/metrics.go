package store

import (
	"context"
	"database/sql"
	"errors"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/models"
)

// MetricsStore holds the daily aggregated snapshots.
type MetricsStore struct {
	db *sql.DB
}

func NewMetricsStore(db *sql.DB) *MetricsStore {
	return &MetricsStore{db: db}
}

// UpsertDaily writes or replaces the snapshot for one calendar day.
func (s *MetricsStore) UpsertDaily(ctx context.Context, m *models.DailyMetrics) error {
	query := `INSERT INTO daily_metrics
		(date, total_users, new_users, total_requests, new_requests, total_revenue, new_revenue, pending_kyc)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (date) DO UPDATE SET
			total_users = EXCLUDED.total_users,
			new_users = EXCLUDED.new_users,
			total_requests = EXCLUDED.total_requests,
			new_requests = EXCLUDED.new_requests,
			total_revenue = EXCLUDED.total_revenue,
			new_revenue = EXCLUDED.new_revenue,
			pending_kyc = EXCLUDED.pending_kyc`
	_, err := s.db.ExecContext(ctx, query,
		m.Date, m.TotalUsers, m.NewUsers, m.TotalRequests, m.NewRequests,
		m.TotalRevenue, m.NewRevenue, m.PendingKYC,
	)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("metrics_upsert", err)
	}
	return nil
}

// LatestSnapshot returns the most recent daily snapshot, or nil when the
// aggregation job has never run.
func (s *MetricsStore) LatestSnapshot(ctx context.Context) (*models.DailyMetrics, error) {
	query := `SELECT date, total_users, new_users, total_requests, new_requests,
		total_revenue, new_revenue, pending_kyc
		FROM daily_metrics ORDER BY date DESC LIMIT 1`
	var m models.DailyMetrics
	err := s.db.QueryRowContext(ctx, query).Scan(
		&m.Date, &m.TotalUsers, &m.NewUsers, &m.TotalRequests, &m.NewRequests,
		&m.TotalRevenue, &m.NewRevenue, &m.PendingKYC,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, stderrors.NewQueryExecutionFailedError("metrics_latest", err)
	}
	return &m, nil
}
