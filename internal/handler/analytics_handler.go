package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khurram-Shahid09/CourseMat/internal/middleware"
	"github.com/khurram-Shahid09/CourseMat/internal/models"
	"github.com/khurram-Shahid09/CourseMat/internal/service"
	appErrors "github.com/khurram-Shahid09/CourseMat/pkg/errors"
	"github.com/khurram-Shahid09/CourseMat/pkg/response"
)

// AnalyticsHandler exposes aggregated reporting endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Overview godoc
// @Summary Institute-wide counters and fee figures
// @Tags Analytics
// @Produce json
// @Param course_id query string false "Restrict to one course"
// @Param batch_id query string false "Restrict to one batch"
// @Param date_from query string false "Enrollments from (RFC3339)"
// @Param date_to query string false "Enrollments until (RFC3339)"
// @Success 200 {object} response.Envelope
// @Router /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	filter, err := parseAnalyticsFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	overview, cacheHit, err := h.analytics.Overview(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, overview, nil, meta)
}

// TopCourses godoc
// @Summary Courses ranked by enrollment count
// @Tags Analytics
// @Produce json
// @Param limit query int false "Number of courses"
// @Success 200 {object} response.Envelope
// @Router /analytics/top-courses [get]
func (h *AnalyticsHandler) TopCourses(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	courses, cacheHit, err := h.analytics.TopCourses(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, courses, nil)
}

// TopTeachers godoc
// @Summary Teachers ranked by active student count
// @Tags Analytics
// @Produce json
// @Param limit query int false "Number of teachers"
// @Success 200 {object} response.Envelope
// @Router /analytics/top-teachers [get]
func (h *AnalyticsHandler) TopTeachers(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	teachers, cacheHit, err := h.analytics.TopTeachers(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, teachers, nil)
}

// System godoc
// @Summary Instrumentation metrics snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	response.JSON(c, http.StatusOK, h.analytics.SystemMetrics(), nil)
}

func parseAnalyticsFilter(c *gin.Context) (models.AnalyticsFilter, error) {
	filter := models.AnalyticsFilter{
		CourseID: c.Query("course_id"),
		BatchID:  c.Query("batch_id"),
	}
	if raw := c.Query("date_from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date_from parameter")
		}
		filter.DateFrom = &parsed
	}
	if raw := c.Query("date_to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date_to parameter")
		}
		filter.DateTo = &parsed
	}
	return filter, nil
}
