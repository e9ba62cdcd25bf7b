package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
)

// TeacherRepository manages persistence for teacher records.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers matching the provided filters.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	base := `FROM teachers t
        LEFT JOIN batches b ON b.teacher_id = t.id AND b.end_date >= CURRENT_DATE
        LEFT JOIN enrollments e ON e.batch_id = b.id AND e.status = 'enrolled'`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("t.id IN (SELECT teacher_id FROM teacher_courses WHERE course_id = $%d)", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(t.full_name) LIKE $%d OR LOWER(t.teacher_code) LIKE $%d OR LOWER(t.email) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":    "t.full_name",
		"teacher_code": "t.teacher_code",
		"created_at":   "t.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "t.created_at"
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

	query := fmt.Sprintf(`SELECT t.id, t.teacher_code, t.full_name, t.email, t.phone, t.specialization, t.user_id, t.created_at, t.updated_at,
        COUNT(DISTINCT b.id) AS active_batches,
        COUNT(DISTINCT e.student_id) AS total_students
        %s GROUP BY t.id ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var teachers []models.TeacherDetail
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT t.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID fetches a teacher detail by ID including qualified course IDs.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	query := `SELECT t.id, t.teacher_code, t.full_name, t.email, t.phone, t.specialization, t.user_id, t.created_at, t.updated_at,
        COUNT(DISTINCT b.id) AS active_batches,
        COUNT(DISTINCT e.student_id) AS total_students
        FROM teachers t
        LEFT JOIN batches b ON b.teacher_id = t.id AND b.end_date >= CURRENT_DATE
        LEFT JOIN enrollments e ON e.batch_id = b.id AND e.status = 'enrolled'
        WHERE t.id = $1 GROUP BY t.id`
	var detail models.TeacherDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	courses, err := r.CourseIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.CourseIDs = courses
	return &detail, nil
}

// FindByUserID fetches the teacher record linked to a user account.
func (r *TeacherRepository) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	const query = `SELECT id, teacher_code, full_name, email, phone, specialization, user_id, created_at, updated_at
        FROM teachers WHERE user_id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, userID); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// CourseIDs returns the qualified course IDs of a teacher.
func (r *TeacherRepository) CourseIDs(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT course_id FROM teacher_courses WHERE teacher_id = $1 ORDER BY course_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("teacher courses: %w", err)
	}
	return ids, nil
}

// LastTeacherCode returns the teacher code assigned most recently, or empty
// when no teachers exist.
func (r *TeacherRepository) LastTeacherCode(ctx context.Context) (string, error) {
	const query = `SELECT teacher_code FROM teachers ORDER BY created_at DESC, id DESC LIMIT 1`
	var code string
	if err := r.db.GetContext(ctx, &code, query); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("last teacher code: %w", err)
	}
	return code, nil
}

// ExistsByEmail checks if a teacher with given email exists optionally excluding an ID.
func (r *TeacherRepository) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM teachers WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher email: %w", err)
	}
	return true, nil
}

// Create inserts a teacher and its course qualifications in one transaction.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create teacher: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO teachers (id, teacher_code, full_name, email, phone, specialization, user_id, created_at, updated_at)
        VALUES (:id, :teacher_code, :full_name, :email, :phone, :specialization, :user_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	if err := replaceTeacherCourses(ctx, tx, teacher.ID, teacher.CourseIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create teacher: %w", err)
	}
	commit = true
	return nil
}

// Update modifies a teacher and replaces its course qualifications. The
// teacher code is immutable.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update teacher: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE teachers SET full_name = :full_name, email = :email, phone = :phone, specialization = :specialization, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	if err := replaceTeacherCourses(ctx, tx, teacher.ID, teacher.CourseIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update teacher: %w", err)
	}
	commit = true
	return nil
}

// Delete removes a teacher. Batches keep running with teacher_id set NULL.
func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM teachers WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	return nil
}

func replaceTeacherCourses(ctx context.Context, tx *sqlx.Tx, teacherID string, courseIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM teacher_courses WHERE teacher_id = $1`, teacherID); err != nil {
		return fmt.Errorf("clear teacher courses: %w", err)
	}
	for _, courseID := range courseIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO teacher_courses (teacher_id, course_id) VALUES ($1, $2)`, teacherID, courseID); err != nil {
			return fmt.Errorf("add teacher course: %w", err)
		}
	}
	return nil
}
