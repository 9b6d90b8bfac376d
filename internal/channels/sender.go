// Package channels contains the delivery boundaries for each notification
// medium. Senders perform a single I/O attempt and report a structured
// result; retry policy lives in the queue, never here.
package channels

import (
	"context"

	"finserv-workers/internal/models"
)

// Message is a rendered notification ready for dispatch.
type Message struct {
	Subject string
	Body    string
}

// Result is the outcome of one send attempt.
//
// OK=false with a Reason and nil error is a terminal non-retryable
// non-success (e.g. the provider is not configured); an actual error return
// is transient and eligible for queue-level retry.
type Result struct {
	OK         bool            `json:"ok"`
	ProviderID string          `json:"providerId,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Prefill    *PrefillMessage `json:"prefill,omitempty"`
}

// PrefillMessage carries an unconfigured WhatsApp payload for manual or
// external sending.
type PrefillMessage struct {
	ToPhone string `json:"toPhone"`
	Text    string `json:"text"`
}

// ReasonNotConfigured marks a sender with no provider credentials.
const ReasonNotConfigured = "not_configured"

// Sender delivers one rendered message to one recipient.
type Sender interface {
	Send(ctx context.Context, recipient models.Recipient, msg Message) (Result, error)
}
