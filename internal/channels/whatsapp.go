package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	stderrors "finserv-workers/internal/common/errors"
	commonhttp "finserv-workers/internal/common/http"
	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/models"
)

// WhatsAppSender posts messages to a Cloud-API style endpoint. Without
// credentials it returns the prefilled payload so the message can be sent
// manually or through an external tool, instead of failing.
type WhatsAppSender struct {
	httpClient *commonhttp.Client
	apiURL     string
	apiToken   string
	logger     logger.Logger
}

func NewWhatsAppSender(httpClient *commonhttp.Client, apiURL, apiToken string, log logger.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		httpClient: httpClient,
		apiURL:     apiURL,
		apiToken:   apiToken,
		logger:     log.WithFields(map[string]interface{}{"channel": "whatsapp"}),
	}
}

func (s *WhatsAppSender) configured() bool {
	return s.apiURL != "" && s.apiToken != ""
}

func (s *WhatsAppSender) Send(ctx context.Context, recipient models.Recipient, msg Message) (Result, error) {
	if recipient.Phone == "" {
		return Result{OK: false, Reason: "missing_phone"}, nil
	}

	if !s.configured() {
		return Result{
			OK:     false,
			Reason: ReasonNotConfigured,
			Prefill: &PrefillMessage{
				ToPhone: recipient.Phone,
				Text:    msg.Body,
			},
		}, nil
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipient.Phone,
		"type":              "text",
		"text":              map[string]string{"body": msg.Body},
	})
	if err != nil {
		return Result{OK: false}, fmt.Errorf("marshal whatsapp request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return Result{OK: false}, fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return Result{OK: false}, stderrors.NewProviderError("whatsapp", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{OK: false}, stderrors.NewProviderError("whatsapp",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var parsed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		s.logger.Warn("could not decode whatsapp response", map[string]interface{}{
			"error": err.Error(),
		})
	}

	providerID := ""
	if len(parsed.Messages) > 0 {
		providerID = parsed.Messages[0].ID
	}
	return Result{OK: true, ProviderID: providerID}, nil
}
