package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finserv-workers/internal/models"
	"finserv-workers/internal/workers/export"
)

// CreateExport handles POST /api/v1/exports.
func (h *handlers) CreateExport(c *gin.Context) {
	var req export.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Format == "" {
		req.Format = models.FormatCSV
	}
	if req.RequestedBy == "" {
		req.RequestedBy = c.GetHeader("X-Actor-Id")
	}

	job, err := h.exports.EnqueueExport(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// GetExport handles GET /api/v1/exports/:id.
func (h *handlers) GetExport(c *gin.Context) {
	job, err := h.exports.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// DownloadExport handles GET /api/v1/exports/:id/download. Completed jobs
// get a time-limited URL; anything else reports the current status.
func (h *handlers) DownloadExport(c *gin.Context) {
	job, err := h.exports.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	url, err := h.exports.PresignedURL(c.Request.Context(), job)
	if err != nil {
		writeError(c, err)
		return
	}
	if url == "" {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Export is not ready for download",
			"status": string(job.Status),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":       url,
		"expiresIn": int(h.exports.PresignTTL().Seconds()),
	})
}
