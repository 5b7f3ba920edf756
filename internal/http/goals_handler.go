package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wellness-analytics/internal/models"
)

func (h *Handler) addGoalRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/goals")
	g.GET("", h.ListGoals)
	g.POST("", h.CreateGoal)
	g.GET("/:id", h.GetGoal)
	g.POST("/:id/progress", h.RecordGoalProgress)
	g.POST("/:id/deactivate", h.DeactivateGoal)
}

type createGoalRequest struct {
	MetricType   models.MetricType `json:"metric_type" binding:"required"`
	TargetValue  float64           `json:"target_value"`
	InitialValue float64           `json:"initial_value"`
	Timeframe    models.Timeframe  `json:"timeframe" binding:"required"`
	Deadline     *time.Time        `json:"deadline"`
}

type progressRequest struct {
	Value float64    `json:"value"`
	At    *time.Time `json:"at"`
}

func (h *Handler) ListGoals(c *gin.Context) {
	if h.deps.Goals == nil {
		unavailableRoute(c)
		return
	}
	all, err := h.deps.Goals.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if c.Query("active") == "true" {
		active := all[:0:0]
		for _, g := range all {
			if g.IsActive {
				active = append(active, g)
			}
		}
		all = active
	}
	if all == nil {
		all = []models.Goal{}
	}
	ok(c, all)
}

func (h *Handler) CreateGoal(c *gin.Context) {
	if h.deps.Goals == nil {
		unavailableRoute(c)
		return
	}
	var req createGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()
	id, err := h.deps.Goals.CreateGoal(ctx, req.MetricType, req.TargetValue, req.InitialValue, req.Timeframe, req.Deadline)
	if err != nil {
		failErr(c, err)
		return
	}
	g, err := h.deps.Goals.Get(ctx, id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, g)
}

func (h *Handler) GetGoal(c *gin.Context) {
	if h.deps.Goals == nil {
		unavailableRoute(c)
		return
	}
	g, err := h.deps.Goals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, g)
}

func (h *Handler) RecordGoalProgress(c *gin.Context) {
	if h.deps.Goals == nil {
		unavailableRoute(c)
		return
	}
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	at := h.now()
	if req.At != nil {
		at = *req.At
	}
	u, err := h.deps.Goals.RecordProgress(c.Request.Context(), c.Param("id"), req.Value, at)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, u)
}

func (h *Handler) DeactivateGoal(c *gin.Context) {
	if h.deps.Goals == nil {
		unavailableRoute(c)
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.deps.Goals.Deactivate(ctx, id); err != nil {
		failErr(c, err)
		return
	}
	g, err := h.deps.Goals.Get(ctx, id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, g)
}
