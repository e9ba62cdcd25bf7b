package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
)

// LessonRepository manages persistence for lessons, their student targets and
// image attachments.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs a LessonRepository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// List returns lessons matching the provided filters. Visibility scoping for
// students honours explicit targeting: a lesson with no targets is visible to
// every active student of its batch.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.LessonDetail, int, error) {
	base := `FROM lessons l
        JOIN batches b ON b.id = l.batch_id
        LEFT JOIN teachers t ON t.id = l.teacher_id`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("l.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("b.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("l.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.TaughtByTeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("b.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TaughtByTeacherID)
	}
	if filter.VisibleToStudentID != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(`l.batch_id IN (SELECT batch_id FROM enrollments WHERE student_id = $%d AND status = 'enrolled')
            AND (NOT EXISTS (SELECT 1 FROM lesson_students ls WHERE ls.lesson_id = l.id)
                 OR EXISTS (SELECT 1 FROM lesson_students ls WHERE ls.lesson_id = l.id AND ls.student_id = $%d))`, n, n))
		args = append(args, filter.VisibleToStudentID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(l.title) LIKE $%d OR LOWER(l.content) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"title":      "l.title",
		"created_at": "l.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "l.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT l.id, l.batch_id, l.course_id, l.teacher_id, l.title, l.content, l.created_at, l.updated_at,
        b.batch_code, t.full_name AS teacher_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var lessons []models.LessonDetail
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}
	return lessons, total, nil
}

// FindByID fetches a lesson with targets and attachments.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.LessonDetail, error) {
	const query = `SELECT l.id, l.batch_id, l.course_id, l.teacher_id, l.title, l.content, l.created_at, l.updated_at,
        b.batch_code, t.full_name AS teacher_name
        FROM lessons l
        JOIN batches b ON b.id = l.batch_id
        LEFT JOIN teachers t ON t.id = l.teacher_id
        WHERE l.id = $1`
	var detail models.LessonDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &detail.StudentIDs, `SELECT student_id FROM lesson_students WHERE lesson_id = $1 ORDER BY student_id`, id); err != nil {
		return nil, fmt.Errorf("lesson targets: %w", err)
	}
	images, err := r.ListImages(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Images = images
	return &detail, nil
}

// VisibleToStudent reports whether a student may read the lesson: the student
// must hold an active enrollment in its batch and, when the lesson has explicit
// targets, be one of them.
func (r *LessonRepository) VisibleToStudent(ctx context.Context, lessonID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM lessons l
        WHERE l.id = $1
          AND l.batch_id IN (SELECT batch_id FROM enrollments WHERE student_id = $2 AND status = 'enrolled')
          AND (NOT EXISTS (SELECT 1 FROM lesson_students ls WHERE ls.lesson_id = l.id)
               OR EXISTS (SELECT 1 FROM lesson_students ls WHERE ls.lesson_id = l.id AND ls.student_id = $2)))`
	var visible bool
	if err := r.db.GetContext(ctx, &visible, query, lessonID, studentID); err != nil {
		return false, fmt.Errorf("lesson visibility: %w", err)
	}
	return visible, nil
}

// TaughtBy reports whether the lesson belongs to a batch taught by the teacher.
func (r *LessonRepository) TaughtBy(ctx context.Context, lessonID, teacherID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM lessons l JOIN batches b ON b.id = l.batch_id
        WHERE l.id = $1 AND b.teacher_id = $2)`
	var taught bool
	if err := r.db.GetContext(ctx, &taught, query, lessonID, teacherID); err != nil {
		return false, fmt.Errorf("lesson teacher scope: %w", err)
	}
	return taught, nil
}

// Create inserts a lesson and its target set in one transaction.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson, studentIDs []string) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create lesson: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO lessons (id, batch_id, course_id, teacher_id, title, content, created_at, updated_at)
        VALUES (:id, :batch_id, :course_id, :teacher_id, :title, :content, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	if err := replaceLessonTargets(ctx, tx, lesson.ID, studentIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create lesson: %w", err)
	}
	commit = true
	return nil
}

// Update modifies a lesson and replaces its target set.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson, studentIDs []string) error {
	lesson.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update lesson: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	const update = `UPDATE lessons SET title = :title, content = :content, teacher_id = :teacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, update, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	if err := replaceLessonTargets(ctx, tx, lesson.ID, studentIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update lesson: %w", err)
	}
	commit = true
	return nil
}

// Delete removes a lesson, its targets and image rows. Stored files are the
// caller's concern.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete lesson: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM lesson_students WHERE lesson_id = $1`, id); err != nil {
		return fmt.Errorf("delete lesson targets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lesson_images WHERE lesson_id = $1`, id); err != nil {
		return fmt.Errorf("delete lesson images: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete lesson: %w", err)
	}
	commit = true
	return nil
}

// AddImage records an uploaded attachment.
func (r *LessonRepository) AddImage(ctx context.Context, image *models.LessonImage) error {
	if image.ID == "" {
		image.ID = uuid.NewString()
	}
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now().UTC()
	}
	const insert = `INSERT INTO lesson_images (id, lesson_id, file_name, content_type, size_bytes, path, created_at)
        VALUES (:id, :lesson_id, :file_name, :content_type, :size_bytes, :path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, insert, image); err != nil {
		return fmt.Errorf("add lesson image: %w", err)
	}
	return nil
}

// ListImages returns the attachments of a lesson.
func (r *LessonRepository) ListImages(ctx context.Context, lessonID string) ([]models.LessonImage, error) {
	const query = `SELECT id, lesson_id, file_name, content_type, size_bytes, path, created_at
        FROM lesson_images WHERE lesson_id = $1 ORDER BY created_at`
	var images []models.LessonImage
	if err := r.db.SelectContext(ctx, &images, query, lessonID); err != nil {
		return nil, fmt.Errorf("list lesson images: %w", err)
	}
	return images, nil
}

// FindImage fetches one attachment row.
func (r *LessonRepository) FindImage(ctx context.Context, imageID string) (*models.LessonImage, error) {
	const query = `SELECT id, lesson_id, file_name, content_type, size_bytes, path, created_at
        FROM lesson_images WHERE id = $1`
	var image models.LessonImage
	if err := r.db.GetContext(ctx, &image, query, imageID); err != nil {
		return nil, err
	}
	return &image, nil
}

// DeleteImage removes one attachment row.
func (r *LessonRepository) DeleteImage(ctx context.Context, imageID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM lesson_images WHERE id = $1`, imageID); err != nil {
		return fmt.Errorf("delete lesson image: %w", err)
	}
	return nil
}

func replaceLessonTargets(ctx context.Context, tx *sqlx.Tx, lessonID string, studentIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM lesson_students WHERE lesson_id = $1`, lessonID); err != nil {
		return fmt.Errorf("clear lesson targets: %w", err)
	}
	for _, studentID := range studentIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO lesson_students (lesson_id, student_id) VALUES ($1, $2)`, lessonID, studentID); err != nil {
			return fmt.Errorf("add lesson target: %w", err)
		}
	}
	return nil
}
