package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/models"
)

type ExportStore struct {
	db *sql.DB
}

func NewExportStore(db *sql.DB) *ExportStore {
	return &ExportStore{db: db}
}

const exportColumns = `id, requested_by, type, filters, format, storage_key,
	status, error, created_at, completed_at`

// Create inserts a new queued export job.
func (s *ExportStore) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Format == "" {
		job.Format = models.FormatCSV
	}
	job.Status = models.ExportQueued
	job.CreatedAt = time.Now().UTC()

	filters, err := json.Marshal(job.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}

	query := `INSERT INTO export_jobs
		(id, requested_by, type, filters, format, storage_key, status, error, created_at)
		VALUES ($1,$2,$3,$4,$5,'',$6,'',$7)`
	_, err = s.db.ExecContext(ctx, query,
		job.ID, nullable(job.RequestedBy), job.Type, filters, job.Format, job.Status, job.CreatedAt,
	)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("export_create", err)
	}
	return nil
}

// GetByID loads one export job; absence is a JOB_NOT_FOUND error.
func (s *ExportStore) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	query := `SELECT ` + exportColumns + ` FROM export_jobs WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, id)

	var job models.ExportJob
	var requestedBy, storageKey, errText sql.NullString
	var filters []byte
	var completedAt sql.NullTime
	err := row.Scan(
		&job.ID, &requestedBy, &job.Type, &filters, &job.Format,
		&storageKey, &job.Status, &errText, &job.CreatedAt, &completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stderrors.NewJobNotFoundError("export_job", id)
		}
		return nil, stderrors.NewQueryExecutionFailedError("export_get", err)
	}

	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &job.Filters); err != nil {
			return nil, fmt.Errorf("unmarshal filters: %w", err)
		}
	}
	job.RequestedBy = requestedBy.String
	job.StorageKey = storageKey.String
	job.Error = errText.String
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

// MarkCompleted is the only path that sets a storage key, preserving the
// invariant that a key is present iff status is completed.
func (s *ExportStore) MarkCompleted(ctx context.Context, id, storageKey string) error {
	query := `UPDATE export_jobs
		SET storage_key = $2, status = 'completed', completed_at = $3
		WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, storageKey, time.Now().UTC()); err != nil {
		return stderrors.NewQueryExecutionFailedError("export_mark_completed", err)
	}
	return nil
}

// MarkFailed records the failure reason; storage key stays empty.
func (s *ExportStore) MarkFailed(ctx context.Context, id, errText string) error {
	query := `UPDATE export_jobs SET status = 'failed', error = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, errText); err != nil {
		return stderrors.NewQueryExecutionFailedError("export_mark_failed", err)
	}
	return nil
}
