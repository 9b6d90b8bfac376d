package notification

import (
	"context"
	"strings"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/models"
	"finserv-workers/internal/queue"
	"finserv-workers/internal/store"
	"finserv-workers/internal/template"
)

// taskEnqueuer is the producer side of the notifications queue.
type taskEnqueuer interface {
	Enqueue(ctx context.Context, payload interface{}, opts queue.Options) (string, error)
}

// notificationStore is the producer's slice of the store.
type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	FindActiveByIdempotencyKey(ctx context.Context, key, templateKey string, recipient models.Recipient) (*models.Notification, error)
	ResetForResend(ctx context.Context, id string) error
	List(ctx context.Context, f store.ListFilter) ([]models.Notification, int, error)
}

type templateStore interface {
	Upsert(ctx context.Context, t *models.Template) error
	Deactivate(ctx context.Context, key, locale string) error
	List(ctx context.Context) ([]models.Template, error)
}

// Service is the producer-facing API over the notification pipeline: it
// creates job records, enqueues tasks, and manages templates. The worker
// side never calls it.
type Service struct {
	jobs      notificationStore
	templates templateStore
	audit     auditWriter
	renderer  *template.Renderer
	queue     taskEnqueuer
	logger    logger.Logger
}

func NewService(jobs notificationStore, templates templateStore, audit auditWriter, r *template.Renderer, q taskEnqueuer, log logger.Logger) *Service {
	return &Service{
		jobs:      jobs,
		templates: templates,
		audit:     audit,
		renderer:  r,
		queue:     q,
		logger:    log.WithFields(map[string]interface{}{"service": "notifications"}),
	}
}

// Preview renders a template without creating a job.
func (s *Service) Preview(ctx context.Context, templateKey, locale string, payload map[string]interface{}) (*template.Rendered, error) {
	return s.renderer.Render(ctx, templateKey, locale, payload)
}

// Enqueue creates a notification job and its queue task. When an idempotency
// key matches an existing job in {queued, sending, sent} for the same
// template and recipient, the existing job is returned and nothing new is
// created or enqueued.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*EnqueueResult, error) {
	if !req.Channel.Valid() {
		return nil, stderrors.NewPayloadValidationError(TaskType, "unknown channel "+string(req.Channel))
	}
	if req.Locale == "" {
		req.Locale = models.DefaultLocale
	}

	if req.IdempotencyKey != "" {
		existing, err := s.jobs.FindActiveByIdempotencyKey(ctx, req.IdempotencyKey, req.TemplateKey, req.Recipient)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &EnqueueResult{NotificationID: existing.ID, Duplicate: true}, nil
		}
	}

	// Render up front so jobs with missing templates or broken placeholders
	// are rejected at enqueue time, and the stored record carries the text
	// that will be sent.
	rendered, err := s.renderer.Render(ctx, req.TemplateKey, req.Locale, req.Payload)
	if err != nil {
		return nil, err
	}

	n := &models.Notification{
		Channel:        req.Channel,
		TemplateKey:    req.TemplateKey,
		Locale:         req.Locale,
		Recipient:      req.Recipient,
		Payload:        req.Payload,
		Subject:        rendered.Subject,
		Body:           rendered.Body,
		IdempotencyKey: req.IdempotencyKey,
		CreatedBy:      req.CreatedBy,
	}
	if err := s.jobs.Create(ctx, n); err != nil {
		return nil, err
	}

	taskID, err := s.enqueueTask(ctx, n)
	if err != nil {
		return nil, err
	}

	s.logger.Info("notification enqueued", map[string]interface{}{
		"notificationId": n.ID,
		"taskId":         taskID,
		"channel":        string(n.Channel),
	})
	return &EnqueueResult{NotificationID: n.ID, TaskID: taskID}, nil
}

// Resend puts a job back on the queue. The persisted retry counter is kept,
// so manual resends stay within the overall budget.
func (s *Service) Resend(ctx context.Context, id, actorID string) (string, error) {
	n, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	if err := s.jobs.ResetForResend(ctx, id); err != nil {
		return "", err
	}
	n.CreatedBy = actorID

	taskID, err := s.enqueueTask(ctx, n)
	if err != nil {
		return "", err
	}
	s.logger.Info("notification resent", map[string]interface{}{
		"notificationId": id,
		"taskId":         taskID,
	})
	return taskID, nil
}

// List returns a filtered page of notifications. With maskPII set, recipient
// contact details are masked for non-privileged callers.
func (s *Service) List(ctx context.Context, f store.ListFilter, maskPII bool) ([]models.Notification, int, error) {
	items, total, err := s.jobs.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	if maskPII {
		for i := range items {
			items[i].Recipient.Email = maskString(items[i].Recipient.Email)
			items[i].Recipient.Phone = maskString(items[i].Recipient.Phone)
		}
	}
	return items, total, nil
}

// UpsertTemplate writes a template and invalidates the compile cache so the
// new text takes effect immediately.
func (s *Service) UpsertTemplate(ctx context.Context, t *models.Template, actorID string) error {
	if err := s.templates.Upsert(ctx, t); err != nil {
		return err
	}
	s.renderer.Invalidate(t.Key, t.Locale)
	s.writeTemplateAudit(ctx, models.ActionTemplateUpserted, t.Key, t.Locale, actorID)
	return nil
}

// DeactivateTemplate soft-disables a template and invalidates its cache
// entries.
func (s *Service) DeactivateTemplate(ctx context.Context, key, locale, actorID string) error {
	if err := s.templates.Deactivate(ctx, key, locale); err != nil {
		return err
	}
	s.renderer.Invalidate(key, locale)
	s.writeTemplateAudit(ctx, models.ActionTemplateDeactivated, key, locale, actorID)
	return nil
}

// ListTemplates returns every template, active and inactive.
func (s *Service) ListTemplates(ctx context.Context) ([]models.Template, error) {
	return s.templates.List(ctx)
}

func (s *Service) enqueueTask(ctx context.Context, n *models.Notification) (string, error) {
	priority := queue.PriorityDefault
	if highPriorityTemplates[n.TemplateKey] {
		priority = queue.PriorityHigh
	}
	return s.queue.Enqueue(ctx, TaskPayload{
		Channel:        n.Channel,
		TemplateKey:    n.TemplateKey,
		Locale:         n.Locale,
		Recipient:      n.Recipient,
		Payload:        n.Payload,
		NotificationID: n.ID,
		CreatedBy:      n.CreatedBy,
		IdempotencyKey: n.IdempotencyKey,
	}, queue.Options{Priority: priority})
}

func (s *Service) writeTemplateAudit(ctx context.Context, action, key, locale, actorID string) {
	entry := &models.AuditLogEntry{
		ActorID:    actorID,
		ActorRole:  "admin",
		Action:     action,
		TargetType: "template",
		TargetID:   key + ":" + locale,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.WithError(err).Warn("audit write failed", map[string]interface{}{
			"action": action,
		})
	}
}

// maskString hides the middle of a contact value, keeping just enough to
// recognize it. Emails keep their domain.
func maskString(v string) string {
	if v == "" {
		return ""
	}
	if at := strings.IndexByte(v, '@'); at > 0 {
		return maskString(v[:at]) + v[at:]
	}
	if len(v) <= 2 {
		return strings.Repeat("*", len(v))
	}
	return v[:1] + strings.Repeat("*", len(v)-2) + v[len(v)-1:]
}
