package export

import (
	"context"
	"encoding/json"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/queue"
)

// TaskType is the queue this handler consumes.
const TaskType = queue.ExportsQueue

// Handler adapts the export service to the queue consumer contract.
type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log.WithFields(map[string]interface{}{"worker": TaskType}),
	}
}

func (h *Handler) Handle(ctx context.Context, task *queue.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return stderrors.NewPayloadValidationError(TaskType, err.Error())
	}

	h.logger.Info("processing export", map[string]interface{}{
		"taskId":  task.ID,
		"jobId":   payload.JobID,
		"type":    string(payload.Type),
		"attempt": task.Attempt,
	})
	return h.service.Process(ctx, payload)
}
