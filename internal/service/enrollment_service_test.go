package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
	appErrors "github.com/khurram-Shahid09/CourseMat/pkg/errors"
)

const (
	testStudentID = "4c7e2a1d-8f6b-4d3a-9e5c-1a2b3c4d5e60"
	testBatchID   = "d2f8b6a4-3c1e-4f7a-8b9d-6e5c4a3b2f70"
)

type mockEnrollRepo struct {
	details      map[string]*models.EnrollmentDetail
	enrollments  map[string]*models.Enrollment
	courseCount  int
	inCourse     bool
	batchCount   int
	lastRoll     string
	created      *models.Enrollment
	installments []models.Installment
	statusSet    models.EnrollmentStatus
	paidSet      int64
	deletedID    string
}

func newMockEnrollRepo() *mockEnrollRepo {
	return &mockEnrollRepo{
		details:     make(map[string]*models.EnrollmentDetail),
		enrollments: make(map[string]*models.Enrollment),
	}
}

func (m *mockEnrollRepo) List(_ context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, d := range m.details {
		if filter.StudentID != "" && d.StudentID != filter.StudentID {
			continue
		}
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *mockEnrollRepo) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *e
	return &copy, nil
}

func (m *mockEnrollRepo) FindDetailByID(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: *e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollRepo) CountDistinctCourses(_ context.Context, _ string, _ string) (int, error) {
	return m.courseCount, nil
}

func (m *mockEnrollRepo) ExistsInCourse(_ context.Context, _ string, _ string, _ string) (bool, error) {
	return m.inCourse, nil
}

func (m *mockEnrollRepo) CountInBatch(_ context.Context, _ string, _ string) (int, error) {
	return m.batchCount, nil
}

func (m *mockEnrollRepo) Create(_ context.Context, enrollment *models.Enrollment, installments []models.Installment, nextRoll func(last string) string) error {
	enrollment.ID = fmt.Sprintf("enrollment-%d", len(m.enrollments)+1)
	enrollment.RollNumber = nextRoll(m.lastRoll)
	m.lastRoll = enrollment.RollNumber
	m.created = enrollment
	m.installments = installments
	copy := *enrollment
	m.enrollments[enrollment.ID] = &copy
	return nil
}

func (m *mockEnrollRepo) UpdateStatus(_ context.Context, id string, status models.EnrollmentStatus) error {
	m.statusSet = status
	if e, ok := m.enrollments[id]; ok {
		e.Status = status
	}
	return nil
}

func (m *mockEnrollRepo) UpdatePaidAmount(_ context.Context, id string, paid int64) error {
	m.paidSet = paid
	if e, ok := m.enrollments[id]; ok {
		e.PaidAmount = paid
	}
	return nil
}

func (m *mockEnrollRepo) Delete(_ context.Context, id string) error {
	m.deletedID = id
	delete(m.enrollments, id)
	return nil
}

func newEnrollmentFixture() (*EnrollmentService, *mockEnrollRepo) {
	repo := newMockEnrollRepo()
	batches := &mockBatchReader{batches: map[string]*models.BatchDetail{
		testBatchID: {
			Batch: models.Batch{
				ID:        testBatchID,
				CourseID:  testCourseID,
				BatchCode: "CRS-01-B1",
				StartDate: day(2026, time.January, 1),
				EndDate:   day(2026, time.March, 31),
				Fee:       1000,
			},
		},
	}}
	students := newMockStudentRepo()
	students.students[testStudentID] = &models.StudentDetail{Student: models.Student{ID: testStudentID, RollNumber: "STU-01"}}
	return NewEnrollmentService(repo, batches, students, nil, nil), repo
}

func TestEnrollmentServiceEnrollSnapshotsFeeAndRollNumber(t *testing.T) {
	svc, repo := newEnrollmentFixture()

	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: testStudentID, BatchID: testBatchID, FeeType: models.FeeTypeOneTime})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), detail.FeeAtEnrollment)
	assert.Equal(t, "CRS-01-B1-0001", detail.RollNumber)
	assert.Empty(t, repo.installments)
}

func TestEnrollmentServiceEnrollGeneratesInstallmentsAtomically(t *testing.T) {
	svc, repo := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: testStudentID, BatchID: testBatchID, FeeType: models.FeeTypeInstallment})
	require.NoError(t, err)
	require.Len(t, repo.installments, 3)
	var sum int64
	for _, inst := range repo.installments {
		sum += inst.Amount
	}
	assert.Equal(t, int64(1000), sum)
}

func TestEnrollmentServiceEnrollCustomFee(t *testing.T) {
	svc, repo := newEnrollmentFixture()
	custom := int64(750)

	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: testStudentID, BatchID: testBatchID, FeeType: models.FeeTypeCustom, CustomFee: &custom})
	require.NoError(t, err)
	assert.Equal(t, custom, detail.FeeAtEnrollment)
	assert.Equal(t, custom, repo.created.FeeAtEnrollment)
}

func TestEnrollmentServiceEnrollCustomFeeRequiresAmount(t *testing.T) {
	svc, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: testStudentID, BatchID: testBatchID, FeeType: models.FeeTypeCustom})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollCourseQuota(t *testing.T) {
	svc, repo := newEnrollmentFixture()
	repo.courseCount = models.MaxCoursesPerStudent

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: testStudentID, BatchID: testBatchID, FeeType: models.FeeTypeOneTime})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTooManyCourses.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollDuplicateCourse(t *testing.T) {
	svc, repo := newEnrollmentFixture()
	repo.inCourse = true

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: testStudentID, BatchID: testBatchID, FeeType: models.FeeTypeOneTime})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateCourse.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollBatchFull(t *testing.T) {
	svc, repo := newEnrollmentFixture()
	repo.batchCount = models.BatchCapacity

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: testStudentID, BatchID: testBatchID, FeeType: models.FeeTypeOneTime})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBatchFull.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceStatusTransitions(t *testing.T) {
	svc, repo := newEnrollmentFixture()
	repo.enrollments["e1"] = &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusEnrolled}

	detail, err := svc.UpdateStatus(context.Background(), "e1", UpdateEnrollmentStatusRequest{Status: models.EnrollmentStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, detail.Status)

	_, err = svc.UpdateStatus(context.Background(), "e1", UpdateEnrollmentStatusRequest{Status: models.EnrollmentStatusDropped})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidStatusChange.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRecordPayment(t *testing.T) {
	svc, repo := newEnrollmentFixture()
	repo.enrollments["e1"] = &models.Enrollment{ID: "e1", FeeType: models.FeeTypeOneTime, FeeAtEnrollment: 1000, PaidAmount: 200}

	detail, err := svc.RecordPayment(context.Background(), "e1", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(500), detail.PaidAmount)
}

func TestEnrollmentServiceRecordPaymentRejectsInstallmentMode(t *testing.T) {
	svc, repo := newEnrollmentFixture()
	repo.enrollments["e1"] = &models.Enrollment{ID: "e1", FeeType: models.FeeTypeInstallment, FeeAtEnrollment: 1000}

	_, err := svc.RecordPayment(context.Background(), "e1", 300)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceListScopesStudents(t *testing.T) {
	svc, repo := newEnrollmentFixture()
	repo.details["e1"] = &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e1", StudentID: "stu-1"}}
	repo.details["e2"] = &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e2", StudentID: "stu-2"}}

	out, _, err := svc.List(context.Background(), Actor{Role: models.RoleStudent, StudentID: "stu-1"}, models.EnrollmentFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "e1", out[0].ID)

	_, _, err = svc.List(context.Background(), Actor{Role: models.RoleStudent}, models.EnrollmentFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
