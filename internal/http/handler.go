package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wellness-analytics/internal/escalation"
	"wellness-analytics/internal/goals"
	"wellness-analytics/internal/ingest"
	"wellness-analytics/internal/models"
)

type SampleIngestor interface {
	Ingest(ctx context.Context, sample models.MetricSample) (ingest.Result, error)
	IngestBatch(ctx context.Context, samples []models.MetricSample) ingest.BatchResult
	IngestEmotion(ctx context.Context, e models.EmotionSample) (ingest.Result, error)
}

type SampleReader interface {
	Query(ctx context.Context, metricType models.MetricType, since time.Time) (models.TimeSeries, error)
}

type TrendAnalyzer interface {
	AnalyzeTrend(ctx context.Context, metricType models.MetricType, period models.Period) models.TrendResult
}

type TrendCache interface {
	Get(ctx context.Context, metricType models.MetricType, period models.Period) (*models.TrendResult, error)
}

type Correlator interface {
	Correlate(ctx context.Context, a, b models.MetricType, windowDays int) (*models.Correlation, error)
}

type CorrelationReader interface {
	Latest(ctx context.Context) (models.CorrelationSet, error)
}

type StabilityEvaluator interface {
	Evaluate(ctx context.Context, windowDays int) models.StabilityScore
}

type GoalService interface {
	CreateGoal(ctx context.Context, metricType models.MetricType, target, initial float64, timeframe models.Timeframe, deadline *time.Time) (string, error)
	RecordProgress(ctx context.Context, goalID string, currentValue float64, at time.Time) (goals.ProgressUpdate, error)
	Deactivate(ctx context.Context, goalID string) error
	Get(ctx context.Context, goalID string) (*models.Goal, error)
	List(ctx context.Context) ([]models.Goal, error)
}

type InsightLog interface {
	Snapshot(includeDismissed bool) []models.Insight
	Dismiss(ctx context.Context, id string) error
}

type CheckInSubmitter interface {
	SubmitCheckIn(ctx context.Context, c models.CheckIn) (escalation.CheckInResult, error)
	HandleVitals(ctx context.Context, v models.VitalSigns) []models.Alert
}

type CheckInReader interface {
	Get(ctx context.Context, id string) (*models.CheckIn, error)
	List(ctx context.Context, since time.Time) ([]models.CheckIn, error)
}

type CaregiverStore interface {
	Save(ctx context.Context, c models.Caregiver) error
	Get(ctx context.Context, id string) (*models.Caregiver, error)
	List(ctx context.Context) ([]models.Caregiver, error)
}

type ReportBuilder interface {
	Build(ctx context.Context, caregiverID string, period models.Period) ([]byte, error)
}

// StatusFunc returns a JSON-able snapshot of a background component.
type StatusFunc func() interface{}

// Deps collaborators of Handler. Nil entries disable their routes' backing
// and those routes answer 503.
type Deps struct {
	Ingestor     SampleIngestor
	Samples      SampleReader
	Trends       TrendAnalyzer
	TrendCache   TrendCache
	Correlator   Correlator
	Correlations CorrelationReader
	Stability    StabilityEvaluator
	Goals        GoalService
	Insights     InsightLog
	CheckIns     CheckInSubmitter
	CheckInLog   CheckInReader
	Caregivers   CaregiverStore
	Reports      ReportBuilder
	Status       map[string]StatusFunc
}

type Handler struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{deps: deps, logger: logger, now: time.Now}
}

func (h *Handler) Health(c *gin.Context) {
	ok(c, gin.H{"status": "ok"})
}

func (h *Handler) addStatusRoutes(rg *gin.RouterGroup) {
	rg.GET("/status", func(c *gin.Context) {
		out := make(map[string]interface{}, len(h.deps.Status))
		for name, fn := range h.deps.Status {
			out[name] = fn()
		}
		ok(c, out)
	})
}

func unavailableRoute(c *gin.Context) {
	fail(c, http.StatusServiceUnavailable, "component not configured")
}

// queryPeriod reads ?period=, defaulting to 7d.
func queryPeriod(c *gin.Context) (models.Period, bool) {
	raw := c.DefaultQuery("period", string(models.Period7d))
	p, valid := models.ParsePeriod(raw)
	if !valid {
		fail(c, http.StatusBadRequest, "unknown period "+raw)
	}
	return p, valid
}

func metricParam(c *gin.Context, name string) (models.MetricType, bool) {
	m := models.MetricType(c.Param(name))
	if !m.IsKnown() {
		fail(c, http.StatusBadRequest, "unknown metric type "+string(m))
		return "", false
	}
	return m, true
}

// querySince reads ?since= as RFC3339 or falls back to def before now.
func (h *Handler) querySince(c *gin.Context, def time.Duration) (time.Time, bool) {
	raw := c.Query("since")
	if raw == "" {
		return h.now().Add(-def), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid since: "+err.Error())
		return time.Time{}, false
	}
	return t, true
}
