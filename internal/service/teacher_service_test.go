package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
	appErrors "github.com/khurram-Shahid09/CourseMat/pkg/errors"
)

type mockTeacherRepo struct {
	teachers map[string]*models.TeacherDetail
	emails   map[string]string
	lastCode string
	created  []*models.Teacher
}

func newMockTeacherRepo() *mockTeacherRepo {
	return &mockTeacherRepo{
		teachers: make(map[string]*models.TeacherDetail),
		emails:   make(map[string]string),
	}
}

func (m *mockTeacherRepo) List(_ context.Context, _ models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	out := make([]models.TeacherDetail, 0, len(m.teachers))
	for _, t := range m.teachers {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (m *mockTeacherRepo) FindByID(_ context.Context, id string) (*models.TeacherDetail, error) {
	t, ok := m.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (m *mockTeacherRepo) FindByUserID(_ context.Context, userID string) (*models.Teacher, error) {
	for _, t := range m.teachers {
		if t.UserID != nil && *t.UserID == userID {
			teacher := t.Teacher
			return &teacher, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) LastTeacherCode(_ context.Context) (string, error) {
	return m.lastCode, nil
}

func (m *mockTeacherRepo) ExistsByEmail(_ context.Context, email string, excludeID string) (bool, error) {
	id, ok := m.emails[email]
	return ok && id != excludeID, nil
}

func (m *mockTeacherRepo) Create(_ context.Context, teacher *models.Teacher) error {
	teacher.ID = fmt.Sprintf("teacher-%d", len(m.created)+1)
	m.created = append(m.created, teacher)
	m.lastCode = teacher.TeacherCode
	return nil
}

func (m *mockTeacherRepo) Update(_ context.Context, teacher *models.Teacher) error {
	m.teachers[teacher.ID] = &models.TeacherDetail{Teacher: *teacher}
	return nil
}

func (m *mockTeacherRepo) Delete(_ context.Context, id string) error {
	delete(m.teachers, id)
	return nil
}

func TestTeacherServiceCreate(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.lastCode = "TEA-02"
	svc := NewTeacherService(repo, nil, nil)

	teacher, err := svc.Create(context.Background(), CreateTeacherRequest{FullName: "Grace Hopper", Email: "grace@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "TEA-03", teacher.TeacherCode)
}

func TestTeacherServiceCreateRejectsDuplicateEmail(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.emails["grace@example.com"] = "existing"
	svc := NewTeacherService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateTeacherRequest{FullName: "Grace", Email: "grace@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceCreateRejectsMalformedCourseIDs(t *testing.T) {
	svc := NewTeacherService(newMockTeacherRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateTeacherRequest{FullName: "Grace", Email: "grace@example.com", CourseIDs: []string{"not-a-uuid"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceUpdateReplacesQualifications(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.teachers["id1"] = &models.TeacherDetail{Teacher: models.Teacher{ID: "id1", TeacherCode: "TEA-01", FullName: "Grace", Email: "grace@example.com", CourseIDs: []string{"3f1b4f0a-54aa-4e1b-9c3d-2f6d2a9f1b01"}}}
	svc := NewTeacherService(repo, nil, nil)

	next := []string{"8c2e74f3-11db-4c5a-9a70-59a1f8e2c402", "b4d9ad61-6fb0-4f2b-8c4e-7f3d9b6a1c03"}
	updated, err := svc.Update(context.Background(), "id1", UpdateTeacherRequest{FullName: "Grace", Email: "grace@example.com", CourseIDs: next})
	require.NoError(t, err)
	assert.Equal(t, next, updated.CourseIDs)
	assert.Equal(t, "TEA-01", updated.TeacherCode)
}

func TestTeacherServiceDeleteMissing(t *testing.T) {
	svc := NewTeacherService(newMockTeacherRepo(), nil, nil)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
