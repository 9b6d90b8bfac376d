package notification

import (
	"context"
	"encoding/json"
	"fmt"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/common/metrics"
	"finserv-workers/internal/channels"
	"finserv-workers/internal/models"
	"finserv-workers/internal/queue"
	"finserv-workers/internal/template"
)

const TaskType = queue.NotificationsQueue

// jobStore is the slice of the notification store the handler mutates.
type jobStore interface {
	MarkSending(ctx context.Context, id, subject, body string) error
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, lastError string) error
	RecordFailure(ctx context.Context, id, lastError string) (int, bool, error)
}

// auditWriter is append-only; failures are logged, never propagated.
type auditWriter interface {
	Append(ctx context.Context, e *models.AuditLogEntry) error
}

type renderer interface {
	Render(ctx context.Context, key, locale string, payload map[string]interface{}) (*template.Rendered, error)
}

// Handler drives one notification job through
// queued -> sending -> {sent, failed}.
type Handler struct {
	jobs     jobStore
	audit    auditWriter
	renderer renderer
	email    channels.Sender
	sms      channels.Sender
	whatsapp channels.Sender
	logger   logger.Logger
}

func NewHandler(jobs jobStore, audit auditWriter, r renderer, email, sms, whatsapp channels.Sender, log logger.Logger) *Handler {
	return &Handler{
		jobs:     jobs,
		audit:    audit,
		renderer: r,
		email:    email,
		sms:      sms,
		whatsapp: whatsapp,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(ctx context.Context, task *queue.Task) error {
	var p TaskPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return stderrors.NewPayloadValidationError(TaskType, err.Error())
	}

	log := h.logger.WithFields(map[string]interface{}{
		"notificationId": p.NotificationID,
		"channel":        string(p.Channel),
		"templateKey":    p.TemplateKey,
	})

	rendered, err := h.renderer.Render(ctx, p.TemplateKey, p.Locale, p.Payload)
	if err != nil {
		log.WithError(err).Error("render failed", nil)
		if markErr := h.jobs.MarkFailed(ctx, p.NotificationID, err.Error()); markErr != nil {
			log.WithError(markErr).Error("persisting render failure failed", nil)
		}
		return err
	}

	if err := h.jobs.MarkSending(ctx, p.NotificationID, rendered.Subject, rendered.Body); err != nil {
		return err
	}

	sender, err := h.senderFor(p.Channel)
	if err != nil {
		// Unknown channel is a producer bug; never retried.
		if markErr := h.jobs.MarkFailed(ctx, p.NotificationID, err.Error()); markErr != nil {
			log.WithError(markErr).Error("persisting channel failure failed", nil)
		}
		return err
	}

	msg := channels.Message{Subject: rendered.Subject, Body: rendered.Body}
	result, sendErr := sender.Send(ctx, p.Recipient, msg)

	switch {
	case sendErr == nil && result.OK:
		if err := h.jobs.MarkSent(ctx, p.NotificationID); err != nil {
			return err
		}
		metrics.NotificationsSent.WithLabelValues(string(p.Channel)).Inc()
		h.writeAudit(ctx, &p, models.ActionSendNotification, map[string]interface{}{
			"channel":    string(p.Channel),
			"providerId": result.ProviderID,
		})
		log.Info("notification sent", map[string]interface{}{
			"providerId": result.ProviderID,
		})
		return nil

	case sendErr == nil && !result.OK:
		// Structured non-success: terminal, not counted against the retry
		// budget. The provider will not appear mid-flight.
		reason := result.Reason
		if reason == "" {
			reason = "send_rejected"
		}
		if err := h.jobs.MarkFailed(ctx, p.NotificationID, reason); err != nil {
			return err
		}
		h.writeAudit(ctx, &p, models.ActionSendNotificationFailed, map[string]interface{}{
			"reason":  reason,
			"prefill": result.Prefill,
		})
		log.Warn("notification not delivered", map[string]interface{}{
			"reason": reason,
		})
		return nil

	default:
		retries, terminal, recErr := h.jobs.RecordFailure(ctx, p.NotificationID, sendErr.Error())
		if recErr != nil {
			log.WithError(recErr).Error("persisting send failure failed", nil)
		}
		h.writeAudit(ctx, &p, models.ActionSendNotificationFailed, map[string]interface{}{
			"error":   sendErr.Error(),
			"retries": retries,
		})
		if terminal {
			log.Error("notification failed permanently", map[string]interface{}{
				"retries": retries,
			})
			return nil // persisted ceiling hit; do not ask the queue to retry
		}
		log.WithError(sendErr).Warn("send attempt failed", map[string]interface{}{
			"retries": retries,
		})
		return sendErr
	}
}

// senderFor is the exhaustive channel dispatch.
func (h *Handler) senderFor(c models.Channel) (channels.Sender, error) {
	switch c {
	case models.ChannelEmail:
		return h.email, nil
	case models.ChannelSMS:
		return h.sms, nil
	case models.ChannelWhatsApp:
		return h.whatsapp, nil
	default:
		return nil, stderrors.NewPayloadValidationError(TaskType, fmt.Sprintf("unknown channel %q", c))
	}
}

func (h *Handler) writeAudit(ctx context.Context, p *TaskPayload, action string, details map[string]interface{}) {
	entry := &models.AuditLogEntry{
		ActorID:    p.CreatedBy,
		ActorRole:  "system",
		Action:     action,
		TargetType: "notification",
		TargetID:   p.NotificationID,
		After:      details,
	}
	if err := h.audit.Append(ctx, entry); err != nil {
		h.logger.WithError(err).Warn("audit write failed", map[string]interface{}{
			"action":         action,
			"notificationId": p.NotificationID,
		})
	}
}
