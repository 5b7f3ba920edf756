package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wellness-analytics/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) addCareRoutes(rg *gin.RouterGroup) {
	rg.POST("/checkins", h.SubmitCheckIn)
	rg.GET("/checkins", h.ListCheckIns)
	rg.GET("/checkins/:id", h.GetCheckIn)
	rg.POST("/vitals", h.PostVitals)

	rg.GET("/caregivers", h.ListCaregivers)
	rg.PUT("/caregivers/:id", h.SaveCaregiver)
	rg.GET("/caregivers/:id", h.GetCaregiver)
	rg.GET("/caregivers/:id/report", h.DownloadReport)
}

func (h *Handler) SubmitCheckIn(c *gin.Context) {
	if h.deps.CheckIns == nil {
		unavailableRoute(c)
		return
	}
	var in models.CheckIn
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.deps.CheckIns.SubmitCheckIn(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, res)
}

func (h *Handler) ListCheckIns(c *gin.Context) {
	if h.deps.CheckInLog == nil {
		unavailableRoute(c)
		return
	}
	since, valid := h.querySince(c, 30*24*time.Hour)
	if !valid {
		return
	}
	list, err := h.deps.CheckInLog.List(c.Request.Context(), since)
	if err != nil {
		failErr(c, err)
		return
	}
	if list == nil {
		list = []models.CheckIn{}
	}
	ok(c, list)
}

func (h *Handler) GetCheckIn(c *gin.Context) {
	if h.deps.CheckInLog == nil {
		unavailableRoute(c)
		return
	}
	ci, err := h.deps.CheckInLog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, ci)
}

// PostVitals evaluates a vital-sign set and escalates each critical concern.
func (h *Handler) PostVitals(c *gin.Context) {
	if h.deps.CheckIns == nil {
		unavailableRoute(c)
		return
	}
	var v models.VitalSigns
	if err := c.ShouldBindJSON(&v); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = h.now()
	}
	alerts := h.deps.CheckIns.HandleVitals(c.Request.Context(), v)
	if alerts == nil {
		alerts = []models.Alert{}
	}
	ok(c, alerts)
}

func (h *Handler) ListCaregivers(c *gin.Context) {
	if h.deps.Caregivers == nil {
		unavailableRoute(c)
		return
	}
	list, err := h.deps.Caregivers.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if list == nil {
		list = []models.Caregiver{}
	}
	ok(c, list)
}

func (h *Handler) SaveCaregiver(c *gin.Context) {
	if h.deps.Caregivers == nil {
		unavailableRoute(c)
		return
	}
	var cg models.Caregiver
	if err := c.ShouldBindJSON(&cg); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	cg.ID = c.Param("id")
	for i := range cg.Permissions {
		cg.Permissions[i].CaregiverID = cg.ID
	}
	if err := h.deps.Caregivers.Save(c.Request.Context(), cg); err != nil {
		failErr(c, err)
		return
	}
	ok(c, cg)
}

func (h *Handler) GetCaregiver(c *gin.Context) {
	if h.deps.Caregivers == nil {
		unavailableRoute(c)
		return
	}
	cg, err := h.deps.Caregivers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, cg)
}

func (h *Handler) DownloadReport(c *gin.Context) {
	if h.deps.Reports == nil {
		unavailableRoute(c)
		return
	}
	p, valid := queryPeriod(c)
	if !valid {
		return
	}
	id := c.Param("id")
	data, err := h.deps.Reports.Build(c.Request.Context(), id, p)
	if err != nil {
		failErr(c, err)
		return
	}
	name := fmt.Sprintf("wellness_report_%s_%s.xlsx", id, h.now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, data)
}
