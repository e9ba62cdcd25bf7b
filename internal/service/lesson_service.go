package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
	"github.com/khurram-Shahid09/CourseMat/pkg/config"
	appErrors "github.com/khurram-Shahid09/CourseMat/pkg/errors"
)

type lessonRepository interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.LessonDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.LessonDetail, error)
	Create(ctx context.Context, lesson *models.Lesson, studentIDs []string) error
	Update(ctx context.Context, lesson *models.Lesson, studentIDs []string) error
	Delete(ctx context.Context, id string) error
	VisibleToStudent(ctx context.Context, lessonID, studentID string) (bool, error)
	TaughtBy(ctx context.Context, lessonID, teacherID string) (bool, error)
	AddImage(ctx context.Context, image *models.LessonImage) error
	ListImages(ctx context.Context, lessonID string) ([]models.LessonImage, error)
	FindImage(ctx context.Context, imageID string) (*models.LessonImage, error)
	DeleteImage(ctx context.Context, imageID string) error
}

type fileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// CreateLessonRequest holds payload for publishing a lesson.
type CreateLessonRequest struct {
	BatchID    string   `json:"batch_id" validate:"required,uuid4"`
	CourseID   *string  `json:"course_id" validate:"omitempty,uuid4"`
	TeacherID  *string  `json:"teacher_id" validate:"omitempty,uuid4"`
	Title      string   `json:"title" validate:"required,min=1,max=200"`
	Content    string   `json:"content" validate:"required"`
	StudentIDs []string `json:"student_ids" validate:"dive,uuid4"`
}

// UpdateLessonRequest holds payload for editing a lesson.
type UpdateLessonRequest struct {
	TeacherID  *string  `json:"teacher_id" validate:"omitempty,uuid4"`
	Title      string   `json:"title" validate:"required,min=1,max=200"`
	Content    string   `json:"content" validate:"required"`
	StudentIDs []string `json:"student_ids" validate:"dive,uuid4"`
}

// ImageUpload describes an incoming attachment.
type ImageUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// LessonService manages teaching material and enforces who may read it.
// Targeting is explicit: lessons carry an optional set of student targets and
// an untargeted lesson reaches the whole batch.
type LessonService struct {
	repo      lessonRepository
	batches   batchReader
	store     fileStore
	uploads   config.UploadsConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs the lesson service.
func NewLessonService(repo lessonRepository, batches batchReader, store fileStore, uploads config.UploadsConfig, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{repo: repo, batches: batches, store: store, uploads: uploads, validator: validate, logger: logger}
}

// List returns lessons the actor may see. Students are scoped to their active
// batches and targeting, teachers to batches they teach, admins see all.
func (s *LessonService) List(ctx context.Context, actor Actor, filter models.LessonFilter) ([]models.LessonDetail, int, error) {
	switch actor.Role {
	case models.RoleStudent:
		if actor.StudentID == "" {
			return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "no student record linked to account")
		}
		filter.VisibleToStudentID = actor.StudentID
	case models.RoleTeacher:
		if actor.TeacherID == "" {
			return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "no teacher record linked to account")
		}
		filter.TaughtByTeacherID = actor.TeacherID
	}

	lessons, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, total, nil
}

// Get returns one lesson after checking the actor may read it.
func (s *LessonService) Get(ctx context.Context, actor Actor, id string) (*models.LessonDetail, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := s.authorizeRead(ctx, actor, id); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *LessonService) authorizeRead(ctx context.Context, actor Actor, lessonID string) error {
	switch actor.Role {
	case models.RoleStudent:
		visible, err := s.repo.VisibleToStudent(ctx, lessonID, actor.StudentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check visibility")
		}
		if !visible {
			return appErrors.Clone(appErrors.ErrForbidden, "lesson is not visible to this student")
		}
	case models.RoleTeacher:
		taught, err := s.repo.TaughtBy(ctx, lessonID, actor.TeacherID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher scope")
		}
		if !taught {
			return appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher's batch")
		}
	}
	return nil
}

// Create publishes a lesson to a batch. Teachers may only publish to batches
// they teach.
func (s *LessonService) Create(ctx context.Context, actor Actor, req CreateLessonRequest) (*models.LessonDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	batch, err := s.batches.FindByID(ctx, req.BatchID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if actor.Role == models.RoleTeacher {
		if batch.TeacherID == nil || *batch.TeacherID != actor.TeacherID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "batch belongs to another teacher")
		}
	}

	lesson := &models.Lesson{
		BatchID:   req.BatchID,
		CourseID:  req.CourseID,
		TeacherID: req.TeacherID,
		Title:     req.Title,
		Content:   req.Content,
	}
	if lesson.TeacherID == nil && actor.Role == models.RoleTeacher {
		teacherID := actor.TeacherID
		lesson.TeacherID = &teacherID
	}
	if err := s.repo.Create(ctx, lesson, req.StudentIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}

	s.logger.Info("lesson created",
		zap.String("lesson_id", lesson.ID),
		zap.String("batch_id", lesson.BatchID),
		zap.Int("targets", len(req.StudentIDs)))
	return s.repo.FindByID(ctx, lesson.ID)
}

// Update edits a lesson and replaces its target set.
func (s *LessonService) Update(ctx context.Context, actor Actor, id string, req UpdateLessonRequest) (*models.LessonDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if actor.Role == models.RoleTeacher {
		taught, err := s.repo.TaughtBy(ctx, id, actor.TeacherID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher scope")
		}
		if !taught {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher's batch")
		}
	}

	lesson := existing.Lesson
	lesson.TeacherID = req.TeacherID
	lesson.Title = req.Title
	lesson.Content = req.Content
	if err := s.repo.Update(ctx, &lesson, req.StudentIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	return s.repo.FindByID(ctx, id)
}

// Delete removes a lesson, its targets and attachments. Stored files are
// deleted best effort after the rows are gone.
func (s *LessonService) Delete(ctx context.Context, id string) error {
	images, err := s.repo.ListImages(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson images")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	for _, image := range images {
		if err := s.store.Delete(image.Path); err != nil {
			s.logger.Warn("failed to remove lesson image file",
				zap.String("image_id", image.ID),
				zap.Error(err))
		}
	}
	return nil
}

// AttachImage stores an uploaded attachment on disk and records it. The upload
// must be an allowed image type and within the configured size limit.
func (s *LessonService) AttachImage(ctx context.Context, lessonID string, upload ImageUpload) (*models.LessonImage, error) {
	if _, err := s.repo.FindByID(ctx, lessonID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if !s.allowedType(upload.ContentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content type %q is not allowed", upload.ContentType))
	}
	if s.uploads.MaxFileSizeBytes > 0 && upload.Size > s.uploads.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the upload size limit")
	}

	relPath := fmt.Sprintf("lessons/%s/%s%s", lessonID, uuid.NewString(), path.Ext(upload.FileName))
	reader := upload.Reader
	if s.uploads.MaxFileSizeBytes > 0 {
		// Declared sizes are not trusted, the stream itself is capped.
		reader = io.LimitReader(reader, s.uploads.MaxFileSizeBytes+1)
	}
	if _, err := s.store.SaveStream(relPath, reader); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	image := &models.LessonImage{
		LessonID:    lessonID,
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		SizeBytes:   upload.Size,
		Path:        relPath,
	}
	if err := s.repo.AddImage(ctx, image); err != nil {
		if delErr := s.store.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record image")
	}
	return image, nil
}

// OpenImage returns the attachment metadata and an open file handle for
// streaming. The caller closes the handle.
func (s *LessonService) OpenImage(ctx context.Context, actor Actor, imageID string) (*models.LessonImage, *os.File, error) {
	image, err := s.repo.FindImage(ctx, imageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "image not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load image")
	}
	if err := s.authorizeRead(ctx, actor, image.LessonID); err != nil {
		return nil, nil, err
	}
	file, err := s.store.Open(image.Path)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored file")
	}
	return image, file, nil
}

// RemoveImage deletes an attachment row and its stored file.
func (s *LessonService) RemoveImage(ctx context.Context, imageID string) error {
	image, err := s.repo.FindImage(ctx, imageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "image not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load image")
	}
	if err := s.repo.DeleteImage(ctx, imageID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete image")
	}
	if err := s.store.Delete(image.Path); err != nil {
		s.logger.Warn("failed to remove lesson image file", zap.String("image_id", imageID), zap.Error(err))
	}
	return nil
}

func (s *LessonService) allowedType(contentType string) bool {
	if len(s.uploads.AllowedMIMEs) == 0 {
		return true
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range s.uploads.AllowedMIMEs {
		if strings.EqualFold(strings.TrimSpace(allowed), contentType) {
			return true
		}
	}
	return false
}
