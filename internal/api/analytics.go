package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AnalyticsOverview handles GET /api/v1/analytics/overview, serving the most
// recent daily snapshot produced by the aggregation worker.
func (h *handlers) AnalyticsOverview(c *gin.Context) {
	snapshot, err := h.metrics.LatestSnapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusOK, gin.H{"snapshot": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": snapshot})
}
