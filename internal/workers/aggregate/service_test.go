package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/models"
)

type fakeMetricsStore struct {
	upserts []*models.DailyMetrics
}

func (f *fakeMetricsStore) UpsertDaily(_ context.Context, m *models.DailyMetrics) error {
	f.upserts = append(f.upserts, m)
	return nil
}

func TestAggregateForDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	date := time.Date(2025, 6, 15, 13, 45, 0, 0, time.UTC)
	dayStart := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	mock.ExpectQuery("SELECT").
		WithArgs(dayStart, dayEnd).
		WillReturnRows(sqlmock.NewRows([]string{
			"total_users", "new_users", "total_requests", "new_requests",
			"total_revenue", "new_revenue", "pending_kyc",
		}).AddRow(1200, 14, 5400, 61, 250000.50, 4200.0, 37))

	store := &fakeMetricsStore{}
	svc := NewService(db, store, logger.NewTestLogger(t))

	require.NoError(t, svc.AggregateForDate(context.Background(), date))

	require.Len(t, store.upserts, 1)
	m := store.upserts[0]
	assert.Equal(t, "2025-06-15", m.Date)
	assert.Equal(t, 1200, m.TotalUsers)
	assert.Equal(t, 14, m.NewUsers)
	assert.Equal(t, 61, m.NewRequests)
	assert.InDelta(t, 4200.0, m.NewRevenue, 0.001)
	assert.Equal(t, 37, m.PendingKYC)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseRunAt(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{in: "00:30", hour: 0, minute: 30},
		{in: "23:59", hour: 23, minute: 59},
		{in: "7:05", hour: 7, minute: 5},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			hour, minute, err := parseRunAt(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, hour)
			assert.Equal(t, tt.minute, minute)
		})
	}
}

func TestNextRun(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	// Later today.
	next := nextRun(now, 23, 30)
	assert.Equal(t, time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC), next)

	// Already passed: tomorrow.
	next = nextRun(now, 0, 30)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 30, 0, 0, time.UTC), next)

	// Exactly now: strictly after, so tomorrow.
	next = nextRun(now, 10, 0)
	assert.Equal(t, time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC), next)
}
