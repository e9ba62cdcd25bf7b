package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
	"github.com/khurram-Shahid09/CourseMat/internal/repository"
	appErrors "github.com/khurram-Shahid09/CourseMat/pkg/errors"
)

type batchRepository interface {
	List(ctx context.Context, filter models.BatchFilter) ([]models.BatchDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.BatchDetail, error)
	ActiveNumbersByCourse(ctx context.Context, courseID string, excludeID string) ([]int, error)
	Create(ctx context.Context, batch *models.Batch) error
	Update(ctx context.Context, batch *models.Batch) error
	Delete(ctx context.Context, id string) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.TeacherDetail, error)
}

// CreateBatchRequest holds payload for creating batches.
type CreateBatchRequest struct {
	CourseID  string    `json:"course_id" validate:"required,uuid4"`
	TeacherID *string   `json:"teacher_id,omitempty" validate:"omitempty,uuid4"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Fee       int64     `json:"fee" validate:"required,min=0"`
}

// UpdateBatchRequest holds payload for updating batches. Course, number and
// code are fixed at creation.
type UpdateBatchRequest struct {
	TeacherID *string   `json:"teacher_id,omitempty" validate:"omitempty,uuid4"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Fee       int64     `json:"fee" validate:"required,min=0"`
}

// BatchService handles batch scheduling use-cases.
type BatchService struct {
	repo      batchRepository
	courses   courseReader
	teachers  teacherReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBatchService constructs the batch service.
func NewBatchService(repo batchRepository, courses courseReader, teachers teacherReader, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{repo: repo, courses: courses, teachers: teachers, validator: validate, logger: logger}
}

// List returns batches and pagination metadata.
func (s *BatchService) List(ctx context.Context, filter models.BatchFilter) ([]models.BatchDetail, *models.Pagination, error) {
	batches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
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
	return batches, pagination, nil
}

// Get returns detailed batch information.
func (s *BatchService) Get(ctx context.Context, id string) (*models.BatchDetail, error) {
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	return batch, nil
}

// Create schedules a new batch of a course. The batch gets the lowest free
// number among the course's still-running batches and keeps it for life. At
// most three batches of a course may run at the same time.
func (s *BatchService) Create(ctx context.Context, req CreateBatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if req.TeacherID != nil {
		if _, err := s.teachers.FindByID(ctx, *req.TeacherID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
	}

	batch := &models.Batch{
		CourseID:  req.CourseID,
		TeacherID: req.TeacherID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Fee:       req.Fee,
	}
	for attempt := 0; attempt < 2; attempt++ {
		taken, err := s.repo.ActiveNumbersByCourse(ctx, req.CourseID, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect running batches")
		}
		if len(taken) >= models.MaxActiveBatchesPerCourse {
			return nil, appErrors.Clone(appErrors.ErrBatchLimitReached, "")
		}
		number := lowestFreeBatchNumber(taken, models.MaxActiveBatchesPerCourse)
		if number == 0 {
			return nil, appErrors.Clone(appErrors.ErrBatchLimitReached, "")
		}
		batch.ID = ""
		batch.Number = number
		batch.BatchCode = batchCode(course.CourseCode, number)
		err = s.repo.Create(ctx, batch)
		if err == nil {
			return batch, nil
		}
		if !repository.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch")
		}
		s.logger.Warn("batch code taken, retrying", zap.String("batch_code", batch.BatchCode))
	}
	return nil, appErrors.Clone(appErrors.ErrCodeConflict, "could not assign a unique batch code")
}

// Update modifies schedule, fee or instructor of an existing batch.
// Re-activating an expired batch counts against the running-batch limit.
func (s *BatchService) Update(ctx context.Context, id string, req UpdateBatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if req.TeacherID != nil {
		if _, err := s.teachers.FindByID(ctx, *req.TeacherID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
	}

	wasActive := detail.Batch.Active(time.Now())
	willBeActive := !req.EndDate.Before(time.Now().Truncate(24 * time.Hour))
	if !wasActive && willBeActive {
		taken, err := s.repo.ActiveNumbersByCourse(ctx, detail.CourseID, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect running batches")
		}
		if len(taken) >= models.MaxActiveBatchesPerCourse {
			return nil, appErrors.Clone(appErrors.ErrBatchLimitReached, "")
		}
	}

	batch := detail.Batch
	batch.TeacherID = req.TeacherID
	batch.StartDate = req.StartDate
	batch.EndDate = req.EndDate
	batch.Fee = req.Fee
	if err := s.repo.Update(ctx, &batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update batch")
	}
	return &batch, nil
}

// Delete removes a batch. Batches with enrollments cannot be removed.
func (s *BatchService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if repository.IsForeignKeyViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "batch has enrollments and cannot be deleted")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch")
	}
	return nil
}
