package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNotificationPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "valid",
			payload: `{"channel":"email","templateKey":"welcome","recipient":{"email":"a@b.com"},"notificationId":"n-1"}`,
		},
		{
			name:    "unknown channel",
			payload: `{"channel":"fax","templateKey":"welcome","recipient":{},"notificationId":"n-1"}`,
			wantErr: true,
		},
		{
			name:    "missing notificationId",
			payload: `{"channel":"sms","templateKey":"welcome","recipient":{}}`,
			wantErr: true,
		},
		{
			name:    "empty templateKey",
			payload: `{"channel":"sms","templateKey":"","recipient":{},"notificationId":"n-1"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			payload: `{nope`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTaskPayload("notifications", []byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateExportPayload(t *testing.T) {
	valid := `{"jobId":"j-1","type":"payments","format":"csv"}`
	assert.NoError(t, ValidateTaskPayload("exports", []byte(valid)))

	badType := `{"jobId":"j-1","type":"ledger","format":"csv"}`
	assert.Error(t, ValidateTaskPayload("exports", []byte(badType)))

	badFormat := `{"jobId":"j-1","type":"payments","format":"pdf"}`
	assert.Error(t, ValidateTaskPayload("exports", []byte(badFormat)))
}

func TestUnknownQueueAcceptsAnything(t *testing.T) {
	assert.NoError(t, ValidateTaskPayload("other", []byte(`{"whatever":true}`)))
}
