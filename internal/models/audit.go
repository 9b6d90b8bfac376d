package models

import "time"

// AuditLogEntry is append-only; rows are never updated after creation.
type AuditLogEntry struct {
	ID         string                 `json:"id"`
	ActorID    string                 `json:"actorId,omitempty"`
	ActorRole  string                 `json:"actorRole"`
	Action     string                 `json:"action"`
	TargetType string                 `json:"targetType"`
	TargetID   string                 `json:"targetId"`
	Before     map[string]interface{} `json:"before,omitempty"`
	After      map[string]interface{} `json:"after,omitempty"`
	Remarks    string                 `json:"remarks,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// Audit actions written by the notification pipeline.
const (
	ActionSendNotification       = "send_notification"
	ActionSendNotificationFailed = "send_notification_failed"
	ActionExportCompleted        = "export_completed"
	ActionTemplateUpserted       = "template_upserted"
	ActionTemplateDeactivated    = "template_deactivated"
)
