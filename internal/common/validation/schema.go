// Package validation checks queue task payloads against JSON Schemas before
// they reach a worker. A payload that fails validation is a producer bug and
// is dropped without retry.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const notificationTaskSchema = `{
	"type": "object",
	"required": ["channel", "templateKey", "recipient", "notificationId"],
	"properties": {
		"channel":        {"type": "string", "enum": ["email", "sms", "whatsapp"]},
		"templateKey":    {"type": "string", "minLength": 1},
		"locale":         {"type": "string"},
		"recipient":      {"type": "object"},
		"payload":        {"type": "object"},
		"notificationId": {"type": "string", "minLength": 1},
		"createdBy":      {"type": "string"},
		"idempotencyKey": {"type": "string"}
	}
}`

const exportTaskSchema = `{
	"type": "object",
	"required": ["jobId", "type", "format"],
	"properties": {
		"jobId":       {"type": "string", "minLength": 1},
		"type":        {"type": "string", "enum": ["requests", "payments", "kyc"]},
		"filters":     {"type": "object"},
		"format":      {"type": "string", "enum": ["csv", "xlsx"]},
		"requestedBy": {"type": "string"}
	}
}`

var taskSchemas = map[string]*gojsonschema.Schema{}

func init() {
	for name, raw := range map[string]string{
		"notifications": notificationTaskSchema,
		"exports":       exportTaskSchema,
	} {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			panic(fmt.Sprintf("invalid task schema %q: %v", name, err))
		}
		taskSchemas[name] = schema
	}
}

// ValidateTaskPayload validates a raw JSON task payload for the named queue.
// Queues without a registered schema accept any payload.
func ValidateTaskPayload(queue string, payload []byte) error {
	schema, ok := taskSchemas[queue]
	if !ok {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
