package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
	"github.com/khurram-Shahid09/CourseMat/internal/repository"
	appErrors "github.com/khurram-Shahid09/CourseMat/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	CountDistinctCourses(ctx context.Context, studentID string, excludeEnrollmentID string) (int, error)
	ExistsInCourse(ctx context.Context, studentID, courseID string, excludeEnrollmentID string) (bool, error)
	CountInBatch(ctx context.Context, batchID string, excludeEnrollmentID string) (int, error)
	Create(ctx context.Context, enrollment *models.Enrollment, installments []models.Installment, nextRoll func(last string) string) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	UpdatePaidAmount(ctx context.Context, id string, paid int64) error
	Delete(ctx context.Context, id string) error
}

type batchReader interface {
	FindByID(ctx context.Context, id string) (*models.BatchDetail, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// EnrollRequest holds payload for enrolling a student into a batch.
type EnrollRequest struct {
	StudentID  string         `json:"student_id" validate:"required,uuid4"`
	BatchID    string         `json:"batch_id" validate:"required,uuid4"`
	FeeType    models.FeeType `json:"fee_type" validate:"required,oneof=one_time installment custom"`
	CustomFee  *int64         `json:"custom_fee,omitempty" validate:"omitempty,min=0"`
	EnrolledOn *time.Time     `json:"enrolled_on,omitempty"`
}

// UpdateEnrollmentStatusRequest moves an enrollment through its lifecycle.
type UpdateEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=enrolled completed dropped"`
}

// EnrollmentService guards the enrollment rules: the distinct course quota,
// no duplicate course, and batch capacity.
type EnrollmentService struct {
	repo      enrollmentRepository
	batches   batchReader
	students  studentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentRepository, batches batchReader, students studentReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, batches: batches, students: students, validator: validate, logger: logger}
}

// List returns enrollments the actor may see. Students are always scoped to
// their own enrollments regardless of the requested filter.
func (s *EnrollmentService) List(ctx context.Context, actor Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if actor.Role == models.RoleStudent {
		if actor.StudentID == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "no student record linked to account")
		}
		filter.StudentID = actor.StudentID
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns one enrollment. Students may only read their own.
func (s *EnrollmentService) Get(ctx context.Context, actor Actor, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if actor.Role == models.RoleStudent && detail.StudentID != actor.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return detail, nil
}

// checkEligibility runs the enrollment rules in order against persisted
// state. excludeEnrollmentID removes one enrollment from consideration when
// re-validating an existing registration.
func (s *EnrollmentService) checkEligibility(ctx context.Context, studentID string, batch *models.BatchDetail, excludeEnrollmentID string) error {
	courses, err := s.repo.CountDistinctCourses(ctx, studentID, excludeEnrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}
	if courses >= models.MaxCoursesPerStudent {
		return appErrors.Clone(appErrors.ErrTooManyCourses, "")
	}

	duplicate, err := s.repo.ExistsInCourse(ctx, studentID, batch.CourseID, excludeEnrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course enrollment")
	}
	if duplicate {
		return appErrors.Clone(appErrors.ErrDuplicateCourse, "")
	}

	occupied, err := s.repo.CountInBatch(ctx, batch.ID, excludeEnrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count batch occupancy")
	}
	if occupied >= models.BatchCapacity {
		return appErrors.Clone(appErrors.ErrBatchFull, "")
	}
	return nil
}

// Enroll registers a student into a batch. The fee is snapshotted from the
// batch (or the custom amount), the roll number is assigned inside the same
// transaction as the insert, and installment-billed enrollments get their
// schedule created atomically with the enrollment row.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if req.FeeType == models.FeeTypeCustom && req.CustomFee == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "custom fee type requires a custom fee amount")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	batch, err := s.batches.FindByID(ctx, req.BatchID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}

	if err := s.checkEligibility(ctx, req.StudentID, batch, ""); err != nil {
		return nil, err
	}

	fee := batch.Fee
	if req.FeeType == models.FeeTypeCustom && req.CustomFee != nil {
		fee = *req.CustomFee
	}
	enrolledOn := time.Now().UTC().Truncate(24 * time.Hour)
	if req.EnrolledOn != nil {
		enrolledOn = *req.EnrolledOn
	}

	enrollment := &models.Enrollment{
		StudentID:       req.StudentID,
		BatchID:         req.BatchID,
		Status:          models.EnrollmentStatusEnrolled,
		FeeType:         req.FeeType,
		FeeAtEnrollment: fee,
		EnrolledOn:      enrolledOn,
	}
	var installments []models.Installment
	if req.FeeType == models.FeeTypeInstallment {
		installments = buildInstallmentSchedule(fee, batch.StartDate, batch.EndDate)
	}

	err = s.repo.Create(ctx, enrollment, installments, func(last string) string {
		return nextRollNumber(last, batch.BatchCode)
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBatchCapacity):
			return nil, appErrors.Clone(appErrors.ErrBatchFull, "")
		case errors.Is(err, repository.ErrCourseQuota):
			return nil, appErrors.Clone(appErrors.ErrTooManyCourses, "")
		case errors.Is(err, repository.ErrCourseDuplicate):
			return nil, appErrors.Clone(appErrors.ErrDuplicateCourse, "")
		case repository.IsUniqueViolation(err):
			return nil, appErrors.Clone(appErrors.ErrCodeConflict, "could not assign a unique roll number")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// UpdateStatus moves an enrollment through its lifecycle. Completed and
// dropped are terminal.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !enrollment.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatusChange, "")
	}
	if enrollment.Status != req.Status {
		if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
		}
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// RecordPayment adds a directly-recorded payment to a one-time or custom
// enrollment. Installment enrollments settle through their installments.
func (s *EnrollmentService) RecordPayment(ctx context.Context, id string, amount int64) (*models.EnrollmentDetail, error) {
	if amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment amount must be positive")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.FeeType == models.FeeTypeInstallment {
		return nil, appErrors.Clone(appErrors.ErrValidation, "installment enrollments are paid per installment")
	}
	if err := s.repo.UpdatePaidAmount(ctx, id, enrollment.PaidAmount+amount); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Delete removes an enrollment together with its installment schedule.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}
