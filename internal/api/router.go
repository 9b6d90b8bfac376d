// Package api exposes the producer-side HTTP surface: enqueue and inspect
// notification jobs, manage templates, request report exports, and read the
// latest analytics snapshot. The workers themselves run out of process.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/store"
	"finserv-workers/internal/workers/export"
	"finserv-workers/internal/workers/notification"
)

// Dependencies carries everything the handlers need.
type Dependencies struct {
	Notifications *notification.Service
	Exports       *export.Service
	Metrics       *store.MetricsStore
	Logger        logger.Logger
}

// SetupRouter configures and returns the gin router with all routes.
func SetupRouter(deps *Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "finserv-workers",
		})
	})

	h := newHandlers(deps)

	v1 := r.Group("/api/v1")
	{
		notifications := v1.Group("/notifications")
		{
			notifications.POST("", h.CreateNotification)
			notifications.GET("", h.ListNotifications)
			notifications.POST("/:id/resend", h.ResendNotification)
		}

		templates := v1.Group("/templates")
		{
			templates.GET("", h.ListTemplates)
			templates.PUT("", h.UpsertTemplate)
			templates.DELETE("/:key", h.DeactivateTemplate)
			templates.POST("/preview", h.PreviewTemplate)
		}

		exports := v1.Group("/exports")
		{
			exports.POST("", h.CreateExport)
			exports.GET("/:id", h.GetExport)
			exports.GET("/:id/download", h.DownloadExport)
		}

		v1.GET("/analytics/overview", h.AnalyticsOverview)
	}

	return r
}

type handlers struct {
	notifications *notification.Service
	exports       *export.Service
	metrics       *store.MetricsStore
	logger        logger.Logger
}

func newHandlers(deps *Dependencies) *handlers {
	return &handlers{
		notifications: deps.Notifications,
		exports:       deps.Exports,
		metrics:       deps.Metrics,
		logger:        deps.Logger.WithFields(map[string]interface{}{"component": "api"}),
	}
}
