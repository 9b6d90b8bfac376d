package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/models"
)

func TestTemplateGetActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM templates").
		WithArgs("welcome", "en_IN").
		WillReturnRows(sqlmock.NewRows([]string{
			"key", "locale", "subject_template", "body_template", "is_active", "created_at", "updated_at",
		}).AddRow("welcome", "en_IN", "Hi {{name}}", "Hello {{name}}", true, now, now))

	s := NewTemplateStore(db)
	tpl, err := s.GetActive(context.Background(), "welcome", "en_IN")
	require.NoError(t, err)
	assert.Equal(t, "Hi {{name}}", tpl.SubjectTemplate)
	assert.True(t, tpl.IsActive)
}

func TestTemplateGetActiveDefaultsLocale(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT .+ FROM templates").
		WithArgs("welcome", models.DefaultLocale).
		WillReturnRows(sqlmock.NewRows([]string{
			"key", "locale", "subject_template", "body_template", "is_active", "created_at", "updated_at",
		}))

	s := NewTemplateStore(db)
	_, err = s.GetActive(context.Background(), "welcome", "")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeTemplateNotFound, stderrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateDeactivateMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE templates SET is_active = FALSE").
		WithArgs("nope", "en_IN", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewTemplateStore(db)
	err = s.Deactivate(context.Background(), "nope", "en_IN")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeTemplateNotFound, stderrors.CodeOf(err))
}

func TestExportCreateAndGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO export_jobs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewExportStore(db)
	job := &models.ExportJob{Type: models.ExportPayments}
	require.NoError(t, s.Create(context.Background(), job))

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.FormatCSV, job.Format, "format defaults to csv")
	assert.Equal(t, models.ExportQueued, job.Status)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM export_jobs WHERE id").
		WithArgs(job.ID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "requested_by", "type", "filters", "format", "storage_key",
			"status", "error", "created_at", "completed_at",
		}).AddRow(job.ID, "admin-1", "payments", []byte(`{"status":"captured"}`), "csv",
			"exports/payments/x.csv", "completed", "", now, now))

	loaded, err := s.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "captured", loaded.Filters.Status)
	assert.Equal(t, "exports/payments/x.csv", loaded.StorageKey)
	require.NotNil(t, loaded.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewAuditStore(db)
	entry := &models.AuditLogEntry{
		ActorRole:  "system",
		Action:     models.ActionSendNotification,
		TargetType: "notification",
		TargetID:   "n-1",
		After:      map[string]interface{}{"channel": "email"},
	}
	require.NoError(t, s.Append(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
