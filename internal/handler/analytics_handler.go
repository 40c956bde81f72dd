package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/response"
)

type analyticsService interface {
	Report(ctx context.Context, actor models.ActorRef, filter models.AnalyticsFilter) (*models.AnalyticsReport, bool, error)
	SystemMetrics() models.AnalyticsSystemMetrics
}

// AnalyticsHandler exposes grading analytics to staff.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Report godoc
// @Summary Grading analytics
// @Description Admins get platform-wide figures, faculty figures for the courses they teach
// @Tags Analytics
// @Produce json
// @Param startDate query string false "YYYY-MM-DD"
// @Param endDate query string false "YYYY-MM-DD"
// @Param department query string false "Course department"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/analytics [get]
func (h *AnalyticsHandler) Report(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	from, err := parseDateQuery(c, "startDate")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateQuery(c, "endDate")
	if err != nil {
		response.Error(c, err)
		return
	}
	if to != nil {
		// inclusive end date
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}

	start := time.Now()
	filter := models.AnalyticsFilter{From: from, To: to, Department: strings.TrimSpace(c.Query("department"))}
	report, hit, err := h.analytics.Report(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, report, hit, start)
}

// System godoc
// @Summary Request and cache instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.analytics.SystemMetrics(), nil)
}
