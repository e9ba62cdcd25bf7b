package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
)

const trendMonths = 6

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	Overview(ctx context.Context, filter models.AnalyticsFilter) (*models.AnalyticsOverview, error)
	MonthlyTrend(ctx context.Context, months int, filter models.AnalyticsFilter) ([]models.MonthlyPoint, error)
	TopCourses(ctx context.Context, limit int) ([]models.CourseEnrollmentCount, error)
	TopTeachers(ctx context.Context, limit int) ([]models.TeacherStudentCount, error)
	RecentEnrollments(ctx context.Context, limit int) ([]models.EnrollmentDetail, error)
}

// AnalyticsService provides read-optimised institute aggregates with cache
// integration. All figures derive from live rows, nothing is precomputed.
type AnalyticsService struct {
	repo     AnalyticsRepository
	cache    *CacheService
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// Overview returns institute-wide counters, fee figures and the enrollment
// trend for the trailing months. The boolean indicates whether data originated
// from cache.
func (s *AnalyticsService) Overview(ctx context.Context, filter models.AnalyticsFilter) (*models.AnalyticsOverview, bool, error) {
	cacheKey := makeAnalyticsCacheKey("overview", filter.CourseID, filter.BatchID, formatTime(filter.DateFrom), formatTime(filter.DateTo))
	var cached models.AnalyticsOverview
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get overview cache: %w", err)
		} else if hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	overview, err := s.repo.Overview(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	trend, err := s.repo.MonthlyTrend(ctx, trendMonths, filter)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_overview", time.Since(start))
	}
	overview.MonthlyTrend = trend
	overview.GeneratedAt = time.Now().UTC()

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, overview, s.cacheTTL); err != nil && s.logger != nil {
			s.logger.Warn("cache overview", zap.Error(err))
		}
	}
	return overview, false, nil
}

// TopCourses ranks courses by enrollment volume.
func (s *AnalyticsService) TopCourses(ctx context.Context, limit int) ([]models.CourseEnrollmentCount, bool, error) {
	cacheKey := makeAnalyticsCacheKey("top-courses", fmt.Sprintf("%d", limit))
	var cached []models.CourseEnrollmentCount
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get top courses cache: %w", err)
		} else if hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	courses, err := s.repo.TopCourses(ctx, limit)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_top_courses", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, courses, s.cacheTTL); err != nil && s.logger != nil {
			s.logger.Warn("cache top courses", zap.Error(err))
		}
	}
	return courses, false, nil
}

// TopTeachers ranks teachers by distinct students taught.
func (s *AnalyticsService) TopTeachers(ctx context.Context, limit int) ([]models.TeacherStudentCount, bool, error) {
	cacheKey := makeAnalyticsCacheKey("top-teachers", fmt.Sprintf("%d", limit))
	var cached []models.TeacherStudentCount
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get top teachers cache: %w", err)
		} else if hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	teachers, err := s.repo.TopTeachers(ctx, limit)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_top_teachers", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, teachers, s.cacheTTL); err != nil && s.logger != nil {
			s.logger.Warn("cache top teachers", zap.Error(err))
		}
	}
	return teachers, false, nil
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	if s.metrics == nil {
		return models.AnalyticsSystemMetrics{}
	}
	return s.metrics.Snapshot()
}

func makeAnalyticsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("analytics")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
