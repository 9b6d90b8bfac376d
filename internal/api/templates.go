package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finserv-workers/internal/models"
)

// ListTemplates handles GET /api/v1/templates.
func (h *handlers) ListTemplates(c *gin.Context) {
	templates, err := h.notifications.ListTemplates(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": templates})
}

// UpsertTemplate handles PUT /api/v1/templates.
func (h *handlers) UpsertTemplate(c *gin.Context) {
	var t models.Template
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if t.Key == "" || t.BodyTemplate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key and bodyTemplate are required"})
		return
	}
	if t.Locale == "" {
		t.Locale = models.DefaultLocale
	}

	if err := h.notifications.UpsertTemplate(c.Request.Context(), &t, c.GetHeader("X-Actor-Id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// DeactivateTemplate handles DELETE /api/v1/templates/:key.
func (h *handlers) DeactivateTemplate(c *gin.Context) {
	key := c.Param("key")
	locale := c.DefaultQuery("locale", models.DefaultLocale)

	if err := h.notifications.DeactivateTemplate(c.Request.Context(), key, locale, c.GetHeader("X-Actor-Id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type previewRequest struct {
	TemplateKey string                 `json:"templateKey"`
	Locale      string                 `json:"locale,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}

// PreviewTemplate handles POST /api/v1/templates/preview. Renders without
// creating a job or touching any channel.
func (h *handlers) PreviewTemplate(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.TemplateKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "templateKey is required"})
		return
	}

	rendered, err := h.notifications.Preview(c.Request.Context(), req.TemplateKey, req.Locale, req.Payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rendered)
}
