package notification

import (
	"finserv-workers/internal/models"
)

// TaskPayload is the flat queue payload for one notification send.
type TaskPayload struct {
	Channel        models.Channel         `json:"channel"`
	TemplateKey    string                 `json:"templateKey"`
	Locale         string                 `json:"locale,omitempty"`
	Recipient      models.Recipient       `json:"recipient"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	NotificationID string                 `json:"notificationId"`
	CreatedBy      string                 `json:"createdBy,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey,omitempty"`
}

// EnqueueRequest is the producer-side input for creating a notification job.
type EnqueueRequest struct {
	Channel        models.Channel         `json:"channel"`
	TemplateKey    string                 `json:"templateKey"`
	Locale         string                 `json:"locale,omitempty"`
	Recipient      models.Recipient       `json:"recipient"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey,omitempty"`
	CreatedBy      string                 `json:"createdBy,omitempty"`
}

// EnqueueResult reports the stored job and queue task. Duplicate means an
// idempotency key matched an existing live job and nothing new was created.
type EnqueueResult struct {
	NotificationID string `json:"notificationId"`
	TaskID         string `json:"taskId,omitempty"`
	Duplicate      bool   `json:"duplicate,omitempty"`
}

// highPriorityTemplates jump the queue under contention.
var highPriorityTemplates = map[string]bool{
	"payment_success":  true,
	"refund_processed": true,
}
