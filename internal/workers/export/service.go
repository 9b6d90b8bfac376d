package export

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/common/metrics"
	"finserv-workers/internal/models"
	"finserv-workers/internal/queue"
)

// exportStore is the slice of the store the materializer needs.
type exportStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	MarkCompleted(ctx context.Context, id, storageKey string) error
	MarkFailed(ctx context.Context, id, errText string) error
}

// objectStorage is the upload/presign boundary.
type objectStorage interface {
	UploadObject(ctx context.Context, bucket, key string, body io.Reader) error
	GetPresignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

type taskEnqueuer interface {
	Enqueue(ctx context.Context, payload interface{}, opts queue.Options) (string, error)
}

type auditWriter interface {
	Append(ctx context.Context, e *models.AuditLogEntry) error
}

// Service materializes report exports: query, serialize to a scratch file,
// upload, and settle the job record. It is also the producer API for
// enqueueing exports and minting download URLs.
type Service struct {
	jobs    exportStore
	db      *sql.DB
	storage objectStorage
	audit   auditWriter
	queue   taskEnqueuer
	config  *Config
	logger  logger.Logger
}

func NewService(jobs exportStore, db *sql.DB, storage objectStorage, audit auditWriter, q taskEnqueuer, cfg *Config, log logger.Logger) *Service {
	return &Service{
		jobs:    jobs,
		db:      db,
		storage: storage,
		audit:   audit,
		queue:   q,
		config:  cfg,
		logger:  log.WithFields(map[string]interface{}{"service": "exports"}),
	}
}

// EnqueueExport creates the job record and its queue task.
func (s *Service) EnqueueExport(ctx context.Context, req EnqueueRequest) (*models.ExportJob, error) {
	if !req.Type.Valid() {
		return nil, stderrors.NewInvalidExportTypeError(string(req.Type))
	}

	job := &models.ExportJob{
		RequestedBy: req.RequestedBy,
		Type:        req.Type,
		Filters:     req.Filters,
		Format:      req.Format,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	taskID, err := s.queue.Enqueue(ctx, TaskPayload{
		JobID:       job.ID,
		Type:        job.Type,
		Filters:     job.Filters,
		Format:      job.Format,
		RequestedBy: job.RequestedBy,
	}, queue.Options{})
	if err != nil {
		return nil, err
	}

	s.logger.Info("export enqueued", map[string]interface{}{
		"jobId":  job.ID,
		"taskId": taskID,
		"type":   string(job.Type),
	})
	return job, nil
}

// PresignTTL exposes the configured download-link lifetime.
func (s *Service) PresignTTL() time.Duration {
	return s.config.PresignTTL
}

// GetJob loads one export job for status polling.
func (s *Service) GetJob(ctx context.Context, id string) (*models.ExportJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// PresignedURL returns a time-limited download URL, or "" when the job has
// no storage key yet (not completed). A read-time convenience, not part of
// the worker state machine.
func (s *Service) PresignedURL(ctx context.Context, job *models.ExportJob) (string, error) {
	if job == nil || job.StorageKey == "" {
		return "", nil
	}
	return s.storage.GetPresignedURL(ctx, s.config.Bucket, job.StorageKey, s.config.PresignTTL)
}

// Process runs one export job to completion. Any failure between query and
// upload marks the job failed and returns the error for queue-level retry;
// a missing job record is fatal and never retried.
func (s *Service) Process(ctx context.Context, p TaskPayload) error {
	job, err := s.jobs.GetByID(ctx, p.JobID)
	if err != nil {
		return err
	}

	log := s.logger.WithFields(map[string]interface{}{
		"jobId":  job.ID,
		"type":   string(job.Type),
		"format": string(job.Format),
	})

	storageKey, err := s.materialize(ctx, job)
	if err != nil {
		if markErr := s.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			log.WithError(markErr).Error("persisting export failure failed", nil)
		}
		log.WithError(err).Error("export failed", nil)
		return err
	}

	if err := s.jobs.MarkCompleted(ctx, job.ID, storageKey); err != nil {
		return err
	}
	metrics.ExportsCompleted.WithLabelValues(string(job.Type)).Inc()
	s.writeAudit(ctx, job, storageKey)

	log.Info("export completed", map[string]interface{}{
		"storageKey": storageKey,
	})
	return nil
}

func (s *Service) materialize(ctx context.Context, job *models.ExportJob) (string, error) {
	rep, err := s.queryReport(ctx, job.Type, job.Filters)
	if err != nil {
		return "", err
	}

	// Per-job filename: concurrent exports on one machine must not collide.
	scratch := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s.%s", job.Type, job.ID, job.Format.Ext()))
	defer os.Remove(scratch) // best effort, never propagated

	if job.Format == models.FormatXLSX {
		err = writeXLSX(scratch, string(job.Type), rep)
	} else {
		err = writeCSV(scratch, rep)
	}
	if err != nil {
		return "", fmt.Errorf("serialize report: %w", err)
	}

	f, err := os.Open(scratch)
	if err != nil {
		return "", fmt.Errorf("open scratch file: %w", err)
	}
	defer f.Close()

	storageKey := fmt.Sprintf("exports/%s/%s-%d.%s", job.Type, job.ID, time.Now().UnixMilli(), job.Format.Ext())
	if err := s.storage.UploadObject(ctx, s.config.Bucket, storageKey, f); err != nil {
		return "", stderrors.NewStorageUploadError(storageKey, err)
	}
	return storageKey, nil
}

// queryReport fetches and stringifies the rows for one report type. A report
// with zero matching rows still has its header.
func (s *Service) queryReport(ctx context.Context, t models.ExportType, f models.ExportFilters) (*report, error) {
	var (
		columns []string
		query   string
	)

	switch t {
	case models.ExportRequests:
		columns = []string{"id", "service_id", "user_id", "user_name", "status", "created_at", "notes"}
		query = `SELECT r.id, r.service_id, r.user_id, COALESCE(u.full_name, ''), r.status, r.created_at, COALESCE(r.notes, '')
			FROM service_requests r
			LEFT JOIN users u ON u.id = r.user_id`
	case models.ExportPayments:
		columns = []string{"id", "user_id", "amount", "currency", "status", "provider", "created_at"}
		query = `SELECT p.id, p.user_id, p.amount, p.currency, p.status, p.provider, p.created_at
			FROM payments p`
	case models.ExportKYC:
		columns = []string{"id", "full_name", "email", "phone", "kyc_status", "created_at"}
		query = `SELECT u.id, u.full_name, u.email, COALESCE(u.phone, ''), u.kyc_status, u.created_at
			FROM users u`
	default:
		return nil, stderrors.NewInvalidExportTypeError(string(t))
	}

	where, args := buildFilters(t, f)
	rows, err := s.db.QueryContext(ctx, query+where+" ORDER BY 1", args...)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("export_"+string(t), err)
	}
	defer rows.Close()

	rep := &report{Columns: columns}
	for rows.Next() {
		raw := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("export_scan", err)
		}
		rec := make([]string, len(columns))
		for i, v := range raw {
			rec[i] = formatValue(v)
		}
		rep.Rows = append(rep.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("export_rows", err)
	}
	return rep, nil
}

// buildFilters maps the filter set onto the right columns for each type.
func buildFilters(t models.ExportType, f models.ExportFilters) (string, []interface{}) {
	statusCol := "status"
	createdCol := "created_at"
	switch t {
	case models.ExportRequests:
		statusCol, createdCol = "r.status", "r.created_at"
	case models.ExportPayments:
		statusCol, createdCol = "p.status", "p.created_at"
	case models.ExportKYC:
		statusCol, createdCol = "u.kyc_status", "u.created_at"
	}

	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND %s = $%d", statusCol, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.From != nil {
		where += fmt.Sprintf(" AND %s >= $%d", createdCol, idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where += fmt.Sprintf(" AND %s <= $%d", createdCol, idx)
		args = append(args, *f.To)
		idx++
	}
	return where, args
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

func writeCSV(path string, rep *report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rep.Columns); err != nil {
		return err
	}
	for _, row := range rep.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeXLSX(path, sheet string, rep *report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	header := make([]interface{}, len(rep.Columns))
	for i, c := range rep.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rep.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := make([]interface{}, len(row))
		for j, v := range row {
			vals[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func (s *Service) writeAudit(ctx context.Context, job *models.ExportJob, storageKey string) {
	entry := &models.AuditLogEntry{
		ActorID:    job.RequestedBy,
		ActorRole:  "system",
		Action:     models.ActionExportCompleted,
		TargetType: "export_job",
		TargetID:   job.ID,
		After: map[string]interface{}{
			"storageKey": storageKey,
			"type":       string(job.Type),
			"format":     string(job.Format),
		},
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.WithError(err).Warn("audit write failed", map[string]interface{}{
			"jobId": job.ID,
		})
	}
}
