package channels

import (
	"context"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/models"
)

// snsAPI is the slice of the SNS client used by the SMS sender.
type snsAPI interface {
	PublishSMS(ctx context.Context, phone, message string) (string, error)
}

// SMSSender delivers the rendered body via SNS. With no client configured it
// reports a terminal not_configured result rather than an error: callers
// must not burn retries on a provider that will never appear mid-flight.
type SMSSender struct {
	client snsAPI
	logger logger.Logger
}

func NewSMSSender(client snsAPI, log logger.Logger) *SMSSender {
	return &SMSSender{
		client: client,
		logger: log.WithFields(map[string]interface{}{"channel": "sms"}),
	}
}

func (s *SMSSender) Send(ctx context.Context, recipient models.Recipient, msg Message) (Result, error) {
	if recipient.Phone == "" {
		return Result{OK: false, Reason: "missing_phone"}, nil
	}

	if s.client == nil {
		return Result{OK: false, Reason: ReasonNotConfigured}, nil
	}

	providerID, err := s.client.PublishSMS(ctx, recipient.Phone, msg.Body)
	if err != nil {
		return Result{OK: false}, stderrors.NewProviderError("sms", err)
	}
	return Result{OK: true, ProviderID: providerID}, nil
}
