package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
	appErrors "github.com/khurram-Shahid09/CourseMat/pkg/errors"
)

type mockAnalyticsRepo struct {
	overview    *models.AnalyticsOverview
	trend       []models.MonthlyPoint
	topCourses  []models.CourseEnrollmentCount
	topTeachers []models.TeacherStudentCount
	recent      []models.EnrollmentDetail

	overviewCalls int
	overviewErr   error
}

func (m *mockAnalyticsRepo) Overview(_ context.Context, _ models.AnalyticsFilter) (*models.AnalyticsOverview, error) {
	m.overviewCalls++
	if m.overviewErr != nil {
		return nil, m.overviewErr
	}
	cp := *m.overview
	return &cp, nil
}

func (m *mockAnalyticsRepo) MonthlyTrend(_ context.Context, _ int, _ models.AnalyticsFilter) ([]models.MonthlyPoint, error) {
	return m.trend, nil
}

func (m *mockAnalyticsRepo) TopCourses(_ context.Context, _ int) ([]models.CourseEnrollmentCount, error) {
	return m.topCourses, nil
}

func (m *mockAnalyticsRepo) TopTeachers(_ context.Context, _ int) ([]models.TeacherStudentCount, error) {
	return m.topTeachers, nil
}

func (m *mockAnalyticsRepo) RecentEnrollments(_ context.Context, _ int) ([]models.EnrollmentDetail, error) {
	return m.recent, nil
}

type stubCacheRepo struct {
	store map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	return nil
}

func TestAnalyticsServiceOverviewCaching(t *testing.T) {
	repo := &mockAnalyticsRepo{
		overview: &models.AnalyticsOverview{TotalStudents: 42, FeeCollected: 12000},
		trend:    []models.MonthlyPoint{{Month: "2026-08", Enrollments: 7, FeeCollected: 3000}},
	}
	cacheRepo := &stubCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewAnalyticsService(repo, cacheSvc, nil, time.Minute, zap.NewNop())

	ctx := context.Background()
	result, cacheHit, err := svc.Overview(ctx, models.AnalyticsFilter{})
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 1, repo.overviewCalls)
	assert.Equal(t, 42, result.TotalStudents)
	require.Len(t, result.MonthlyTrend, 1)

	cached, cacheHit2, err := svc.Overview(ctx, models.AnalyticsFilter{})
	require.NoError(t, err)
	assert.True(t, cacheHit2)
	assert.Equal(t, 1, repo.overviewCalls)
	assert.Equal(t, result.TotalStudents, cached.TotalStudents)
}

func TestAnalyticsServiceOverviewFilterCacheKeys(t *testing.T) {
	repo := &mockAnalyticsRepo{overview: &models.AnalyticsOverview{}}
	cacheSvc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewAnalyticsService(repo, cacheSvc, nil, time.Minute, zap.NewNop())

	ctx := context.Background()
	_, _, err := svc.Overview(ctx, models.AnalyticsFilter{})
	require.NoError(t, err)
	_, _, err = svc.Overview(ctx, models.AnalyticsFilter{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.overviewCalls)
}

func TestAnalyticsServiceOverviewErrorPassthrough(t *testing.T) {
	repo := &mockAnalyticsRepo{overviewErr: assert.AnError}
	cacheSvc := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	svc := NewAnalyticsService(repo, cacheSvc, nil, time.Minute, zap.NewNop())

	_, _, err := svc.Overview(context.Background(), models.AnalyticsFilter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAnalyticsServiceTopCourses(t *testing.T) {
	repo := &mockAnalyticsRepo{topCourses: []models.CourseEnrollmentCount{{CourseID: "c1", Enrollments: 9}}}
	cacheSvc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewAnalyticsService(repo, cacheSvc, nil, time.Minute, zap.NewNop())

	courses, hit, err := svc.TopCourses(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, courses, 1)
	assert.Equal(t, "c1", courses[0].CourseID)

	_, hit, err = svc.TopCourses(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, hit)
}
