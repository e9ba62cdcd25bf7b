package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
	appErrors "github.com/khurram-Shahid09/CourseMat/pkg/errors"
)

type mockStudentRepo struct {
	students      map[string]*models.StudentDetail
	emails        map[string]string
	lastRoll      string
	created       []*models.Student
	createErrs    []error
	deleteErr     error
	deletedID     string
	lastRollCalls int
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{
		students: make(map[string]*models.StudentDetail),
		emails:   make(map[string]string),
	}
}

func (m *mockStudentRepo) List(_ context.Context, _ models.StudentFilter) ([]models.StudentDetail, int, error) {
	out := make([]models.StudentDetail, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(_ context.Context, id string) (*models.StudentDetail, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (m *mockStudentRepo) FindByUserID(_ context.Context, userID string) (*models.Student, error) {
	for _, s := range m.students {
		if s.UserID != nil && *s.UserID == userID {
			student := s.Student
			return &student, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) LastRollNumber(_ context.Context) (string, error) {
	m.lastRollCalls++
	return m.lastRoll, nil
}

func (m *mockStudentRepo) ExistsByEmail(_ context.Context, email string, excludeID string) (bool, error) {
	id, ok := m.emails[email]
	return ok && id != excludeID, nil
}

func (m *mockStudentRepo) Create(_ context.Context, student *models.Student) error {
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	student.ID = fmt.Sprintf("student-%d", len(m.created)+1)
	m.created = append(m.created, student)
	m.lastRoll = student.RollNumber
	return nil
}

func (m *mockStudentRepo) Update(_ context.Context, student *models.Student) error {
	m.students[student.ID] = &models.StudentDetail{Student: *student}
	return nil
}

func (m *mockStudentRepo) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedID = id
	return nil
}

func TestStudentServiceCreateAssignsSequentialRollNumbers(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, nil)

	first, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Ada Lovelace", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "STU-01", first.RollNumber)

	second, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Alan Turing", Email: "alan@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "STU-02", second.RollNumber)
}

func TestStudentServiceCreateRetriesOnRollNumberCollision(t *testing.T) {
	repo := newMockStudentRepo()
	repo.lastRoll = "STU-07"
	repo.createErrs = []error{&pq.Error{Code: "23505"}}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "STU-08", student.RollNumber)
	assert.Equal(t, 2, repo.lastRollCalls)
}

func TestStudentServiceCreateRejectsDuplicateEmail(t *testing.T) {
	repo := newMockStudentRepo()
	repo.emails["ada@example.com"] = "existing"
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Ada", Email: "ada@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateValidatesPayload(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Ada", Email: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateKeepsAge(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, nil)

	age := 21
	student, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Ada", Email: "ada@example.com", Age: &age})
	require.NoError(t, err)
	require.NotNil(t, student.Age)
	assert.Equal(t, 21, *student.Age)

	bad := -3
	_, err = svc.Create(context.Background(), CreateStudentRequest{FullName: "Bob", Email: "bob@example.com", Age: &bad})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateKeepsRollNumber(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["id1"] = &models.StudentDetail{Student: models.Student{ID: "id1", RollNumber: "STU-03", FullName: "Old", Email: "old@example.com"}}
	svc := NewStudentService(repo, nil, nil)

	updated, err := svc.Update(context.Background(), "id1", UpdateStudentRequest{FullName: "New Name", Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "STU-03", updated.RollNumber)
	assert.Equal(t, "New Name", updated.FullName)
}

func TestStudentServiceUpdateMissing(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), nil, nil)

	_, err := svc.Update(context.Background(), "missing", UpdateStudentRequest{FullName: "A", Email: "a@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDeleteBlockedByEnrollments(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["id1"] = &models.StudentDetail{Student: models.Student{ID: "id1", RollNumber: "STU-01"}}
	repo.deleteErr = &pq.Error{Code: "23503"}
	svc := NewStudentService(repo, nil, nil)

	err := svc.Delete(context.Background(), "id1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDelete(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["id1"] = &models.StudentDetail{Student: models.Student{ID: "id1", RollNumber: "STU-01"}}
	svc := NewStudentService(repo, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "id1"))
	assert.Equal(t, "id1", repo.deletedID)
}
