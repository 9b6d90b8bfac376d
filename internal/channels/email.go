package channels

import (
	"context"
	"fmt"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/models"
)

// sesAPI is the slice of the SES client used by the email sender.
type sesAPI interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) (string, error)
}

// EmailSender delivers subject + HTML body via SES. With no client
// configured it logs a simulated send and reports success, which keeps
// non-production environments flowing without a mail provider.
type EmailSender struct {
	client sesAPI
	logger logger.Logger
}

func NewEmailSender(client sesAPI, log logger.Logger) *EmailSender {
	return &EmailSender{
		client: client,
		logger: log.WithFields(map[string]interface{}{"channel": "email"}),
	}
}

func (s *EmailSender) Send(ctx context.Context, recipient models.Recipient, msg Message) (Result, error) {
	if recipient.Email == "" {
		return Result{OK: false, Reason: "missing_email"}, nil
	}

	if s.client == nil {
		s.logger.Info("email transport not configured, simulating send", map[string]interface{}{
			"to":      recipient.Email,
			"subject": msg.Subject,
		})
		return Result{OK: true, ProviderID: fmt.Sprintf("simulated-%s", recipient.Email)}, nil
	}

	providerID, err := s.client.SendEmail(ctx, recipient.Email, msg.Subject, msg.Body)
	if err != nil {
		return Result{OK: false}, stderrors.NewProviderError("email", err)
	}
	return Result{OK: true, ProviderID: providerID}, nil
}
