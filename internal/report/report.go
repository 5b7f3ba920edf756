package report

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"wellness-analytics/internal/escalation"
	"wellness-analytics/internal/models"
)

const (
	SheetTrends   = "Trends"
	SheetInsights = "Insights"
	SheetCheckIns = "Check-ins"

	timeLayout = "2006-01-02 15:04:05"
)

var (
	trendHeader   = []string{"Metric", "Period", "Direction", "Change %", "Confidence", "Samples", "Mean", "Last", "Recommendations"}
	insightHeader = []string{"Time", "Title", "Description", "Kind", "Priority", "Category", "Actionable"}
	checkInHeader = []string{"Time", "Type", "Overall Score", "Flagged", "Caregiver Notified", "Reasons"}
)

// Data everything a caregiver report shows.
type Data struct {
	Trends      []models.TrendResult
	Insights    []models.Insight
	CheckIns    []models.CheckIn
	GeneratedAt time.Time
}

// BuildCaregiverReport renders Data as an xlsx workbook.
// The caregiver must hold the daily_reports permission.
func BuildCaregiverReport(c models.Caregiver, d Data) ([]byte, error) {
	if !escalation.IsPermitted(c, models.AlertTypeDailyReports) {
		return nil, fmt.Errorf("caregiver %s may not receive reports: %w", c.ID, models.ErrPermissionDenied)
	}

	f := excelize.NewFile()

	trendRows := make([][]interface{}, 0, len(d.Trends))
	for _, t := range d.Trends {
		trendRows = append(trendRows, []interface{}{
			string(t.MetricType), string(t.Period), string(t.Direction),
			round1(t.PercentChange), round1(t.Confidence), t.SampleCount,
			round1(t.MeanValue), round1(t.LastValue), strings.Join(t.Recommendations, "; "),
		})
	}
	insightRows := make([][]interface{}, 0, len(d.Insights))
	for _, in := range d.Insights {
		insightRows = append(insightRows, []interface{}{
			in.Timestamp.Format(timeLayout), in.Title, in.Description,
			string(in.Kind), string(in.Priority), string(in.Category), yesNo(in.Actionable),
		})
	}
	checkInRows := make([][]interface{}, 0, len(d.CheckIns))
	for _, ci := range d.CheckIns {
		checkInRows = append(checkInRows, []interface{}{
			ci.Timestamp.Format(timeLayout), string(ci.Type), ci.OverallScore,
			yesNo(ci.Flagged), yesNo(ci.CaregiverNotified), strings.Join(ci.FlagReasons, "; "),
		})
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]interface{}
	}{
		{SheetTrends, trendHeader, trendRows},
		{SheetInsights, insightHeader, insightRows},
		{SheetCheckIns, checkInHeader, checkInRows},
	}
	for i, s := range sheets {
		idx, err := f.NewSheet(s.name)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := writeSheet(f, s.name, s.header, s.rows); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.DeleteSheet("Sheet1")

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Wellness report for " + c.Name,
		Created: d.GeneratedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set document properties: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close report: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]interface{}) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// TrendSource, InsightSource, CheckInSource and CaregiverSource feed a Reporter.
type TrendSource interface {
	AnalyzeTrend(ctx context.Context, metricType models.MetricType, period models.Period) models.TrendResult
}

type InsightSource interface {
	Snapshot(includeDismissed bool) []models.Insight
}

type CheckInSource interface {
	List(ctx context.Context, since time.Time) ([]models.CheckIn, error)
}

type CaregiverSource interface {
	Get(ctx context.Context, id string) (*models.Caregiver, error)
}

// Reporter collects current analytics and builds the report for one caregiver.
type Reporter struct {
	trends     TrendSource
	insights   InsightSource
	checkIns   CheckInSource
	caregivers CaregiverSource
	logger     *zap.Logger
	now        func() time.Time
}

func NewReporter(trends TrendSource, insights InsightSource, checkIns CheckInSource, caregivers CaregiverSource, logger *zap.Logger) *Reporter {
	return &Reporter{
		trends:     trends,
		insights:   insights,
		checkIns:   checkIns,
		caregivers: caregivers,
		logger:     logger,
		now:        time.Now,
	}
}

// Build produces the report covering period for caregiverID.
func (r *Reporter) Build(ctx context.Context, caregiverID string, period models.Period) ([]byte, error) {
	c, err := r.caregivers.Get(ctx, caregiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to load caregiver %s: %w", caregiverID, err)
	}
	if !escalation.IsPermitted(*c, models.AlertTypeDailyReports) {
		return nil, fmt.Errorf("caregiver %s may not receive reports: %w", caregiverID, models.ErrPermissionDenied)
	}

	now := r.now()
	d := Data{GeneratedAt: now}
	for _, m := range models.AllMetricTypes {
		if m == models.MetricEmotion {
			continue
		}
		t := r.trends.AnalyzeTrend(ctx, m, period)
		if t.Direction == models.DirectionInsufficientData {
			continue
		}
		d.Trends = append(d.Trends, t)
	}

	since := now.Add(-period.Duration())
	for _, in := range r.insights.Snapshot(false) {
		if !in.Timestamp.Before(since) {
			d.Insights = append(d.Insights, in)
		}
	}

	checkIns, err := r.checkIns.List(ctx, since)
	if err != nil {
		r.logger.Warn("Report built without check-ins", zap.String("caregiver_id", caregiverID), zap.Error(err))
	} else {
		d.CheckIns = checkIns
	}

	out, err := BuildCaregiverReport(*c, d)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Caregiver report built",
		zap.String("caregiver_id", caregiverID),
		zap.String("period", string(period)),
		zap.Int("trends", len(d.Trends)),
		zap.Int("insights", len(d.Insights)),
		zap.Int("check_ins", len(d.CheckIns)),
	)
	return out, nil
}
