package httpapi

import (
	"github.com/gin-gonic/gin"
)

func (h *Handler) addInsightRoutes(rg *gin.RouterGroup) {
	rg.GET("/insights", h.ListInsights)
	rg.POST("/insights/:id/dismiss", h.DismissInsight)
}

// ListInsights newest first; ?all=true includes dismissed entries.
func (h *Handler) ListInsights(c *gin.Context) {
	if h.deps.Insights == nil {
		unavailableRoute(c)
		return
	}
	ok(c, h.deps.Insights.Snapshot(c.Query("all") == "true"))
}

func (h *Handler) DismissInsight(c *gin.Context) {
	if h.deps.Insights == nil {
		unavailableRoute(c)
		return
	}
	if err := h.deps.Insights.Dismiss(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"id": c.Param("id"), "dismissed": true})
}
