package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wellness-analytics/internal/analytics"
	"wellness-analytics/internal/models"
)

const defaultStabilityDays = 7

func (h *Handler) addAnalyticsRoutes(rg *gin.RouterGroup) {
	rg.GET("/trends", h.GetTrends)
	rg.GET("/trends/:metric", h.GetTrend)
	rg.GET("/correlations", h.GetCorrelations)
	rg.GET("/correlations/:a/:b", h.GetCorrelation)
	rg.GET("/stability", h.GetStability)
}

// trend serves the cached result unless fresh is requested or the cache misses.
func (h *Handler) trend(c *gin.Context, m models.MetricType, p models.Period) models.TrendResult {
	if h.deps.TrendCache != nil && c.Query("fresh") != "true" {
		cached, err := h.deps.TrendCache.Get(c.Request.Context(), m, p)
		if err == nil && cached != nil {
			return *cached
		}
	}
	return h.deps.Trends.AnalyzeTrend(c.Request.Context(), m, p)
}

func (h *Handler) GetTrend(c *gin.Context) {
	if h.deps.Trends == nil {
		unavailableRoute(c)
		return
	}
	m, valid := metricParam(c, "metric")
	if !valid {
		return
	}
	p, valid := queryPeriod(c)
	if !valid {
		return
	}
	ok(c, h.trend(c, m, p))
}

func (h *Handler) GetTrends(c *gin.Context) {
	if h.deps.Trends == nil {
		unavailableRoute(c)
		return
	}
	p, valid := queryPeriod(c)
	if !valid {
		return
	}
	out := make([]models.TrendResult, 0, len(models.AllMetricTypes))
	for _, m := range models.AllMetricTypes {
		if m == models.MetricEmotion {
			continue
		}
		out = append(out, h.trend(c, m, p))
	}
	ok(c, out)
}

func (h *Handler) GetCorrelations(c *gin.Context) {
	if h.deps.Correlations == nil {
		unavailableRoute(c)
		return
	}
	set, err := h.deps.Correlations.Latest(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if set.Correlations == nil {
		set.Correlations = []models.Correlation{}
	}
	ok(c, set)
}

// GetCorrelation computes one pair on demand. A null result means no meaningful correlation.
func (h *Handler) GetCorrelation(c *gin.Context) {
	if h.deps.Correlator == nil {
		unavailableRoute(c)
		return
	}
	a, valid := metricParam(c, "a")
	if !valid {
		return
	}
	b, valid := metricParam(c, "b")
	if !valid {
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(analytics.DefaultCorrelationWindowDays)))
	if err != nil || days <= 0 {
		fail(c, http.StatusBadRequest, "days must be a positive integer")
		return
	}
	corr, err := h.deps.Correlator.Correlate(c.Request.Context(), a, b, days)
	if err != nil {
		h.logger.Warn("On-demand correlation failed",
			zap.String("metric_a", string(a)),
			zap.String("metric_b", string(b)),
			zap.Error(err),
		)
		corr = nil
	}
	ok(c, corr)
}

func (h *Handler) GetStability(c *gin.Context) {
	if h.deps.Stability == nil {
		unavailableRoute(c)
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(defaultStabilityDays)))
	if err != nil || days <= 0 {
		fail(c, http.StatusBadRequest, "days must be a positive integer")
		return
	}
	ok(c, h.deps.Stability.Evaluate(c.Request.Context(), days))
}
