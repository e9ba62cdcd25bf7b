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

// BatchRepository manages persistence for batch records.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs a BatchRepository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// List returns batches matching the provided filters.
func (r *BatchRepository) List(ctx context.Context, filter models.BatchFilter) ([]models.BatchDetail, int, error) {
	base := `FROM batches b
        JOIN courses c ON c.id = b.course_id
        LEFT JOIN teachers t ON t.id = b.teacher_id
        LEFT JOIN enrollments e ON e.batch_id = b.id AND e.status = 'enrolled'`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("b.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("b.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Active != nil {
		if *filter.Active {
			conditions = append(conditions, "b.end_date >= CURRENT_DATE")
		} else {
			conditions = append(conditions, "b.end_date < CURRENT_DATE")
		}
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(b.batch_code) LIKE $%d OR LOWER(c.title) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"batch_code": "b.batch_code",
		"start_date": "b.start_date",
		"end_date":   "b.end_date",
		"created_at": "b.created_at",
	}
	if sortBy == "" {
		sortBy = "start_date"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "b.start_date"
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

	query := fmt.Sprintf(`SELECT b.id, b.course_id, b.teacher_id, b.number, b.batch_code, b.start_date, b.end_date, b.fee, b.created_at, b.updated_at,
        c.title AS course_title, c.course_code, t.full_name AS teacher_name,
        COUNT(e.id) AS enrolled_count
        %s GROUP BY b.id, c.title, c.course_code, t.full_name ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var batches []models.BatchDetail
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT b.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}
	return batches, total, nil
}

// FindByID fetches a batch detail by ID.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.BatchDetail, error) {
	query := `SELECT b.id, b.course_id, b.teacher_id, b.number, b.batch_code, b.start_date, b.end_date, b.fee, b.created_at, b.updated_at,
        c.title AS course_title, c.course_code, t.full_name AS teacher_name,
        COUNT(e.id) AS enrolled_count
        FROM batches b
        JOIN courses c ON c.id = b.course_id
        LEFT JOIN teachers t ON t.id = b.teacher_id
        LEFT JOIN enrollments e ON e.batch_id = b.id AND e.status = 'enrolled'
        WHERE b.id = $1 GROUP BY b.id, c.title, c.course_code, t.full_name`
	var detail models.BatchDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ActiveNumbersByCourse returns the numbers of the course's batches that are
// still running, optionally excluding one batch.
func (r *BatchRepository) ActiveNumbersByCourse(ctx context.Context, courseID string, excludeID string) ([]int, error) {
	query := `SELECT number FROM batches WHERE course_id = $1 AND end_date >= CURRENT_DATE`
	args := []interface{}{courseID}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var numbers []int
	if err := r.db.SelectContext(ctx, &numbers, query+" ORDER BY number", args...); err != nil {
		return nil, fmt.Errorf("active batch numbers: %w", err)
	}
	return numbers, nil
}

// CountEnrolled returns the number of active students in a batch.
func (r *BatchRepository) CountEnrolled(ctx context.Context, batchID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE batch_id = $1 AND status = 'enrolled'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, batchID); err != nil {
		return 0, fmt.Errorf("count batch enrollments: %w", err)
	}
	return count, nil
}

// Create inserts a new batch record.
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now
	const query = `INSERT INTO batches (id, course_id, teacher_id, number, batch_code, start_date, end_date, fee, created_at, updated_at)
        VALUES (:id, :course_id, :teacher_id, :number, :batch_code, :start_date, :end_date, :fee, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// Update modifies an existing batch. Course, number and code never change
// after creation.
func (r *BatchRepository) Update(ctx context.Context, batch *models.Batch) error {
	batch.UpdatedAt = time.Now().UTC()
	const query = `UPDATE batches SET teacher_id = :teacher_id, start_date = :start_date, end_date = :end_date, fee = :fee, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

// Delete removes a batch. Enrollments reference batches with ON DELETE RESTRICT.
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM batches WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}
