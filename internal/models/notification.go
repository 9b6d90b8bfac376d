package models

import "time"

// Channel is a notification delivery medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp:
		return true
	}
	return false
}

// NotificationStatus only advances queued -> sending -> {sent, failed}.
// A manual resend resets a failed job to queued without clearing retries.
type NotificationStatus string

const (
	NotificationQueued  NotificationStatus = "queued"
	NotificationSending NotificationStatus = "sending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// MaxNotificationRetries is the persisted retry ceiling. The queue keeps its
// own in-process attempt counter; a job is done when either ceiling is hit.
const MaxNotificationRetries = 5

// Recipient describes who a notification targets. Which field is required
// depends on the channel.
type Recipient struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
}

type Notification struct {
	ID             string                 `json:"id"`
	Channel        Channel                `json:"channel"`
	TemplateKey    string                 `json:"templateKey"`
	Locale         string                 `json:"locale"`
	Recipient      Recipient              `json:"recipient"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	Subject        string                 `json:"subject,omitempty"`
	Body           string                 `json:"body,omitempty"`
	Status         NotificationStatus     `json:"status"`
	Retries        int                    `json:"retries"`
	LastError      string                 `json:"lastError,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey,omitempty"`
	CreatedBy      string                 `json:"createdBy,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}
