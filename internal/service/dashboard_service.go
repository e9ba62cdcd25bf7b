package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
)

const dashboardCacheKey = "dash:summary"

type overviewProvider interface {
	Overview(ctx context.Context, filter models.AnalyticsFilter) (*models.AnalyticsOverview, bool, error)
	TopCourses(ctx context.Context, limit int) ([]models.CourseEnrollmentCount, bool, error)
	TopTeachers(ctx context.Context, limit int) ([]models.TeacherStudentCount, bool, error)
}

type recentEnrollmentLister interface {
	RecentEnrollments(ctx context.Context, limit int) ([]models.EnrollmentDetail, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL          time.Duration
	TopLimit          int
	RecentEnrollments int
}

// DashboardService composes the admin landing page payload from the analytics
// aggregates and the latest enrollment activity.
type DashboardService struct {
	analytics overviewProvider
	recent    recentEnrollmentLister
	cache     *CacheService
	logger    *zap.Logger
	cfg       DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(analytics overviewProvider, recent recentEnrollmentLister, cache *CacheService, cfg DashboardServiceConfig, logger *zap.Logger) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TopLimit <= 0 {
		cfg.TopLimit = 5
	}
	if cfg.RecentEnrollments <= 0 {
		cfg.RecentEnrollments = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{analytics: analytics, recent: recent, cache: cache, logger: logger, cfg: cfg}
}

// Summary returns the dashboard payload and indicates cache utilisation.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	if s.cache != nil {
		var cached models.DashboardSummary
		hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err != nil {
			return nil, false, err
		}
		if hit {
			return &cached, true, nil
		}
	}

	summary, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context) (*models.DashboardSummary, error) {
	overview, _, err := s.analytics.Overview(ctx, models.AnalyticsFilter{})
	if err != nil {
		return nil, err
	}
	topCourses, _, err := s.analytics.TopCourses(ctx, s.cfg.TopLimit)
	if err != nil {
		return nil, err
	}
	topTeachers, _, err := s.analytics.TopTeachers(ctx, s.cfg.TopLimit)
	if err != nil {
		return nil, err
	}
	recent, err := s.recent.RecentEnrollments(ctx, s.cfg.RecentEnrollments)
	if err != nil {
		return nil, err
	}

	return &models.DashboardSummary{
		Overview:          *overview,
		RecentEnrollments: recent,
		TopCourses:        topCourses,
		TopTeachers:       topTeachers,
	}, nil
}
