package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wellness-analytics/internal/models"
)

func (h *Handler) addSampleRoutes(rg *gin.RouterGroup) {
	rg.POST("/samples", h.PostSample)
	rg.POST("/samples/batch", h.PostSampleBatch)
	rg.POST("/emotions", h.PostEmotion)
	rg.GET("/samples/:metric", h.GetSamples)
}

func (h *Handler) PostSample(c *gin.Context) {
	if h.deps.Ingestor == nil {
		unavailableRoute(c)
		return
	}
	var s models.MetricSample
	if err := c.ShouldBindJSON(&s); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if s.Source == "" {
		s.Source = models.SourceManual
	}
	res, err := h.deps.Ingestor.Ingest(c.Request.Context(), s)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, res)
}

func (h *Handler) PostSampleBatch(c *gin.Context) {
	if h.deps.Ingestor == nil {
		unavailableRoute(c)
		return
	}
	var samples []models.MetricSample
	if err := c.ShouldBindJSON(&samples); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	ok(c, h.deps.Ingestor.IngestBatch(c.Request.Context(), samples))
}

func (h *Handler) PostEmotion(c *gin.Context) {
	if h.deps.Ingestor == nil {
		unavailableRoute(c)
		return
	}
	var e models.EmotionSample
	if err := c.ShouldBindJSON(&e); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = h.now()
	}
	res, err := h.deps.Ingestor.IngestEmotion(c.Request.Context(), e)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, res)
}

func (h *Handler) GetSamples(c *gin.Context) {
	if h.deps.Samples == nil {
		unavailableRoute(c)
		return
	}
	m, valid := metricParam(c, "metric")
	if !valid {
		return
	}
	since, valid := h.querySince(c, 7*24*time.Hour)
	if !valid {
		return
	}
	series, err := h.deps.Samples.Query(c.Request.Context(), m, since)
	if err != nil {
		failErr(c, err)
		return
	}
	if series == nil {
		series = models.TimeSeries{}
	}
	ok(c, series)
}
