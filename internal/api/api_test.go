package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/models"
	"finserv-workers/internal/queue"
	"finserv-workers/internal/store"
	"finserv-workers/internal/template"
	"finserv-workers/internal/workers/export"
	"finserv-workers/internal/workers/notification"
)

// Fakes backing the real services under the router.

type fakeNotifStore struct {
	existing *models.Notification
}

func (f *fakeNotifStore) Create(_ context.Context, n *models.Notification) error {
	n.ID = "n-1"
	return nil
}

func (f *fakeNotifStore) GetByID(_ context.Context, id string) (*models.Notification, error) {
	return nil, stderrors.NewJobNotFoundError("notification", id)
}

func (f *fakeNotifStore) FindActiveByIdempotencyKey(_ context.Context, _, _ string, _ models.Recipient) (*models.Notification, error) {
	return f.existing, nil
}

func (f *fakeNotifStore) ResetForResend(_ context.Context, _ string) error { return nil }

func (f *fakeNotifStore) List(_ context.Context, _ store.ListFilter) ([]models.Notification, int, error) {
	return nil, 0, nil
}

type fakeTemplates struct{}

func (fakeTemplates) Upsert(_ context.Context, _ *models.Template) error      { return nil }
func (fakeTemplates) Deactivate(_ context.Context, _, _ string) error         { return nil }
func (fakeTemplates) List(_ context.Context) ([]models.Template, error)       { return nil, nil }
func (fakeTemplates) GetActive(_ context.Context, key, locale string) (*models.Template, error) {
	if key != "welcome" {
		return nil, stderrors.NewTemplateNotFoundError(key, locale)
	}
	return &models.Template{
		Key: key, Locale: locale,
		SubjectTemplate: "Hi {{name}}",
		BodyTemplate:    "Hello {{name}}",
		IsActive:        true,
	}, nil
}

type fakeAudit struct{}

func (fakeAudit) Append(_ context.Context, _ *models.AuditLogEntry) error { return nil }

type fakeEnqueuer struct{}

func (fakeEnqueuer) Enqueue(_ context.Context, _ interface{}, _ queue.Options) (string, error) {
	return "task-1", nil
}

type fakeExportStore struct {
	job *models.ExportJob
}

func (f *fakeExportStore) Create(_ context.Context, job *models.ExportJob) error {
	job.ID = "job-1"
	job.Status = models.ExportQueued
	return nil
}

func (f *fakeExportStore) GetByID(_ context.Context, id string) (*models.ExportJob, error) {
	if f.job == nil {
		return nil, stderrors.NewJobNotFoundError("export_job", id)
	}
	return f.job, nil
}

func (f *fakeExportStore) MarkCompleted(_ context.Context, _, _ string) error { return nil }
func (f *fakeExportStore) MarkFailed(_ context.Context, _, _ string) error    { return nil }

type fakeStorage struct{}

func (fakeStorage) UploadObject(_ context.Context, _, _ string, _ io.Reader) error { return nil }
func (fakeStorage) GetPresignedURL(_ context.Context, _, _ string, _ time.Duration) (string, error) {
	return "https://example.com/signed", nil
}

func newTestRouter(t *testing.T, notifStore *fakeNotifStore, exportStore *fakeExportStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	templates := fakeTemplates{}
	renderer := template.NewRenderer(templates)
	log := logger.NewTestLogger(t)

	notifService := notification.NewService(notifStore, templates, fakeAudit{}, renderer, fakeEnqueuer{}, log)
	exportService := export.NewService(exportStore, nil, fakeStorage{}, fakeAudit{}, fakeEnqueuer{},
		export.LoadConfig("test-bucket", 0, 0), log)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectQuery("SELECT .+ FROM daily_metrics").
		WillReturnRows(sqlmock.NewRows([]string{
			"date", "total_users", "new_users", "total_requests", "new_requests",
			"total_revenue", "new_revenue", "pending_kyc",
		}))

	return SetupRouter(&Dependencies{
		Notifications: notifService,
		Exports:       exportService,
		Metrics:       store.NewMetricsStore(db),
		Logger:        log,
	})
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t, &fakeNotifStore{}, &fakeExportStore{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCreateNotification(t *testing.T) {
	r := newTestRouter(t, &fakeNotifStore{}, &fakeExportStore{})

	body := `{"channel":"email","templateKey":"welcome","recipient":{"email":"a@example.com"},"payload":{"name":"Asha"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"notificationId":"n-1"`)
	assert.Contains(t, w.Body.String(), `"taskId":"task-1"`)
}

func TestCreateNotificationDuplicate(t *testing.T) {
	r := newTestRouter(t, &fakeNotifStore{
		existing: &models.Notification{ID: "n-existing", Status: models.NotificationSent},
	}, &fakeExportStore{})

	body := `{"channel":"email","templateKey":"welcome","recipient":{"email":"a@example.com"},"idempotencyKey":"idem-1"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "duplicates return 200, not 201")
	assert.Contains(t, w.Body.String(), `"duplicate":true`)
}

func TestCreateNotificationUnknownTemplate(t *testing.T) {
	r := newTestRouter(t, &fakeNotifStore{}, &fakeExportStore{})

	body := `{"channel":"email","templateKey":"missing","recipient":{"email":"a@example.com"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "TEMPLATE_NOT_FOUND")
}

func TestPreviewTemplate(t *testing.T) {
	r := newTestRouter(t, &fakeNotifStore{}, &fakeExportStore{})

	body := `{"templateKey":"welcome","payload":{"name":"Asha"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates/preview", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hi Asha")
	assert.Contains(t, w.Body.String(), "Hello Asha")
}

func TestDownloadExport(t *testing.T) {
	t.Run("not ready", func(t *testing.T) {
		r := newTestRouter(t, &fakeNotifStore{}, &fakeExportStore{
			job: &models.ExportJob{ID: "job-1", Status: models.ExportQueued},
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/exports/job-1/download", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("completed", func(t *testing.T) {
		r := newTestRouter(t, &fakeNotifStore{}, &fakeExportStore{
			job: &models.ExportJob{
				ID:         "job-1",
				Status:     models.ExportCompleted,
				StorageKey: "exports/payments/job-1-1.csv",
			},
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/exports/job-1/download", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "https://example.com/signed")
	})

	t.Run("unknown job", func(t *testing.T) {
		r := newTestRouter(t, &fakeNotifStore{}, &fakeExportStore{})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/exports/missing/download", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAnalyticsOverviewEmpty(t *testing.T) {
	r := newTestRouter(t, &fakeNotifStore{}, &fakeExportStore{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/overview", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"snapshot":null`)
}
