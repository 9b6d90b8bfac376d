package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"finserv-workers/internal/store"
	"finserv-workers/internal/workers/notification"
)

// CreateNotification handles POST /api/v1/notifications.
func (h *handlers) CreateNotification(c *gin.Context) {
	var req notification.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("X-Idempotency-Key")
	}

	result, err := h.notifications.Enqueue(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// ListNotifications handles GET /api/v1/notifications. Recipient contact
// details are masked in list responses.
func (h *handlers) ListNotifications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	filter := store.ListFilter{
		Status:      c.Query("status"),
		Channel:     c.Query("channel"),
		TemplateKey: c.Query("templateKey"),
		Page:        page,
		Limit:       limit,
	}

	items, total, err := h.notifications.List(c.Request.Context(), filter, true)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// ResendNotification handles POST /api/v1/notifications/:id/resend.
func (h *handlers) ResendNotification(c *gin.Context) {
	id := c.Param("id")
	actor := c.GetHeader("X-Actor-Id")

	taskID, err := h.notifications.Resend(c.Request.Context(), id, actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notificationId": id,
		"taskId":         taskID,
	})
}
