package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
)

// Guard errors surfaced by the transactional enrollment checks. Services map
// them to API error codes.
var (
	ErrBatchCapacity   = errors.New("batch capacity reached")
	ErrCourseQuota     = errors.New("distinct course quota reached")
	ErrCourseDuplicate = errors.New("already enrolled in course")
)

const paidExpr = `CASE WHEN e.fee_type = 'installment' THEN COALESCE(ip.paid, 0) ELSE e.paid_amount END`
const fullyPaidExpr = `CASE WHEN e.fee_type = 'installment' THEN COALESCE(ip.all_paid, FALSE) ELSE e.paid_amount >= e.fee_at_enrollment END`

// EnrollmentRepository manages persistence for enrollments and their billing rows.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments matching the provided filters.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN batches b ON b.id = e.batch_id
        JOIN courses c ON c.id = b.course_id
        LEFT JOIN (SELECT enrollment_id, SUM(amount) AS total, SUM(paid_amount) AS paid, BOOL_AND(status = 'paid') AS all_paid FROM installments GROUP BY enrollment_id) ip ON ip.enrollment_id = e.id`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("b.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("e.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.FeeType != "" {
		conditions = append(conditions, fmt.Sprintf("e.fee_type = $%d", len(args)+1))
		args = append(args, filter.FeeType)
	}
	switch filter.PaymentState {
	case models.PaymentStatePaid:
		conditions = append(conditions, fullyPaidExpr)
	case models.PaymentStatePartial:
		conditions = append(conditions, fmt.Sprintf("NOT (%s) AND (%s) > 0", fullyPaidExpr, paidExpr))
	case models.PaymentStatePending:
		conditions = append(conditions, fmt.Sprintf("NOT (%s) AND (%s) = 0", fullyPaidExpr, paidExpr))
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(e.roll_number) LIKE $%d OR LOWER(c.title) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"enrolled_on": "e.enrolled_on",
		"roll_number": "e.roll_number",
		"created_at":  "e.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "e.created_at"
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.batch_id, e.roll_number, e.status, e.fee_type, e.fee_at_enrollment, e.paid_amount, e.enrolled_on, e.created_at, e.updated_at,
        s.full_name AS student_name, s.roll_number AS student_code,
        c.id AS course_id, c.title AS course_title, c.course_code, b.batch_code
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// RecentEnrollments returns the latest enrollments for dashboard feeds.
func (r *EnrollmentRepository) RecentEnrollments(ctx context.Context, limit int) ([]models.EnrollmentDetail, error) {
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.batch_id, e.roll_number, e.status, e.fee_type, e.fee_at_enrollment, e.paid_amount, e.enrolled_on, e.created_at, e.updated_at,
        s.full_name AS student_name, s.roll_number AS student_code,
        c.id AS course_id, c.title AS course_title, c.course_code, b.batch_code
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN batches b ON b.id = e.batch_id
        JOIN courses c ON c.id = b.course_id
        ORDER BY e.created_at DESC LIMIT %d`, limit)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query); err != nil {
		return nil, fmt.Errorf("recent enrollments: %w", err)
	}
	return enrollments, nil
}

// ListForExport returns every enrollment matching the filter together with
// derived billing figures. Exports render the full result set, so there is no
// pagination here.
func (r *EnrollmentRepository) ListForExport(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentExportRow, error) {
	base := `FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN batches b ON b.id = e.batch_id
        JOIN courses c ON c.id = b.course_id
        LEFT JOIN (SELECT enrollment_id, SUM(amount) AS total, SUM(paid_amount) AS paid, BOOL_AND(status = 'paid') AS all_paid FROM installments GROUP BY enrollment_id) ip ON ip.enrollment_id = e.id`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("b.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("e.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.FeeType != "" {
		conditions = append(conditions, fmt.Sprintf("e.fee_type = $%d", len(args)+1))
		args = append(args, filter.FeeType)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.batch_id, e.roll_number, e.status, e.fee_type, e.fee_at_enrollment, e.paid_amount, e.enrolled_on, e.created_at, e.updated_at,
        s.full_name AS student_name, s.roll_number AS student_code,
        c.id AS course_id, c.title AS course_title, c.course_code, b.batch_code,
        %s AS total_paid,
        CASE WHEN e.fee_type = 'installment' THEN COALESCE(ip.total, 0) ELSE e.fee_at_enrollment END AS total_due,
        %s AS fully_paid
        %s WHERE %s ORDER BY e.roll_number ASC`, paidExpr, fullyPaidExpr, base, strings.Join(conditions, " AND "))

	var rows []models.EnrollmentExportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments for export: %w", err)
	}
	return rows, nil
}

// FindByID fetches a bare enrollment by ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, batch_id, roll_number, status, fee_type, fee_at_enrollment, paid_amount, enrolled_on, created_at, updated_at
        FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID fetches an enrollment with student, course and batch context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.batch_id, e.roll_number, e.status, e.fee_type, e.fee_at_enrollment, e.paid_amount, e.enrolled_on, e.created_at, e.updated_at,
        s.full_name AS student_name, s.roll_number AS student_code,
        c.id AS course_id, c.title AS course_title, c.course_code, b.batch_code
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN batches b ON b.id = e.batch_id
        JOIN courses c ON c.id = b.course_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CountDistinctCourses counts the distinct courses the student has ever
// enrolled in, optionally excluding one enrollment. Dropped and completed
// enrollments still count toward the quota.
func (r *EnrollmentRepository) CountDistinctCourses(ctx context.Context, studentID string, excludeEnrollmentID string) (int, error) {
	query := `SELECT COUNT(DISTINCT b.course_id) FROM enrollments e JOIN batches b ON b.id = e.batch_id
        WHERE e.student_id = $1`
	args := []interface{}{studentID}
	if excludeEnrollmentID != "" {
		query += " AND e.id <> $2"
		args = append(args, excludeEnrollmentID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count distinct courses: %w", err)
	}
	return count, nil
}

// ExistsInCourse reports whether the student holds any enrollment in any
// batch of the course, optionally excluding one enrollment. The status does
// not matter, a student who dropped a course cannot re-enroll in it.
func (r *EnrollmentRepository) ExistsInCourse(ctx context.Context, studentID, courseID string, excludeEnrollmentID string) (bool, error) {
	query := `SELECT 1 FROM enrollments e JOIN batches b ON b.id = e.batch_id
        WHERE e.student_id = $1 AND b.course_id = $2`
	args := []interface{}{studentID, courseID}
	if excludeEnrollmentID != "" {
		query += " AND e.id <> $3"
		args = append(args, excludeEnrollmentID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course enrollment: %w", err)
	}
	return true, nil
}

// CountInBatch counts all enrollments in a batch regardless of status,
// optionally excluding one. A seat once taken stays consumed.
func (r *EnrollmentRepository) CountInBatch(ctx context.Context, batchID string, excludeEnrollmentID string) (int, error) {
	query := `SELECT COUNT(*) FROM enrollments WHERE batch_id = $1`
	args := []interface{}{batchID}
	if excludeEnrollmentID != "" {
		query += " AND id <> $2"
		args = append(args, excludeEnrollmentID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count batch enrollments: %w", err)
	}
	return count, nil
}

// Create inserts an enrollment together with its installment schedule in a
// single transaction. The batch row is locked first so capacity checks, the
// course quota and roll numbering cannot race with concurrent writers. The
// roll number is derived from the latest sibling via nextRoll.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment, installments []models.Installment, nextRoll func(last string) string) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create enrollment: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	var courseID string
	if err := tx.GetContext(ctx, &courseID, `SELECT course_id FROM batches WHERE id = $1 FOR UPDATE`, enrollment.BatchID); err != nil {
		return fmt.Errorf("lock batch: %w", err)
	}

	var inBatch int
	if err := tx.GetContext(ctx, &inBatch, `SELECT COUNT(*) FROM enrollments WHERE batch_id = $1`, enrollment.BatchID); err != nil {
		return fmt.Errorf("recheck batch capacity: %w", err)
	}
	if inBatch >= models.BatchCapacity {
		return ErrBatchCapacity
	}

	var courses int
	if err := tx.GetContext(ctx, &courses, `SELECT COUNT(DISTINCT b.course_id) FROM enrollments e JOIN batches b ON b.id = e.batch_id
        WHERE e.student_id = $1`, enrollment.StudentID); err != nil {
		return fmt.Errorf("recheck course quota: %w", err)
	}
	if courses >= models.MaxCoursesPerStudent {
		return ErrCourseQuota
	}

	var duplicate int
	err = tx.GetContext(ctx, &duplicate, `SELECT 1 FROM enrollments e JOIN batches b ON b.id = e.batch_id
        WHERE e.student_id = $1 AND b.course_id = $2 LIMIT 1`, enrollment.StudentID, courseID)
	if err == nil {
		return ErrCourseDuplicate
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("recheck duplicate course: %w", err)
	}

	var lastRoll string
	err = tx.GetContext(ctx, &lastRoll, `SELECT roll_number FROM enrollments WHERE batch_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, enrollment.BatchID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("last enrollment roll: %w", err)
	}
	enrollment.RollNumber = nextRoll(lastRoll)

	const insert = `INSERT INTO enrollments (id, student_id, batch_id, roll_number, status, fee_type, fee_at_enrollment, paid_amount, enrolled_on, created_at, updated_at)
        VALUES (:id, :student_id, :batch_id, :roll_number, :status, :fee_type, :fee_at_enrollment, :paid_amount, :enrolled_on, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}

	if err := insertInstallments(ctx, tx, enrollment.ID, installments); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create enrollment: %w", err)
	}
	commit = true
	return nil
}

// UpdateStatus moves an enrollment to a new lifecycle state.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// UpdatePaidAmount sets the directly-recorded payment total of a
// non-installment enrollment.
func (r *EnrollmentRepository) UpdatePaidAmount(ctx context.Context, id string, paid int64) error {
	const query = `UPDATE enrollments SET paid_amount = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, paid, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment paid amount: %w", err)
	}
	return nil
}

// Delete removes an enrollment and its installments.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete enrollment: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM installments WHERE enrollment_id = $1`, id); err != nil {
		return fmt.Errorf("delete installments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete enrollment: %w", err)
	}
	commit = true
	return nil
}

func insertInstallments(ctx context.Context, tx *sqlx.Tx, enrollmentID string, installments []models.Installment) error {
	const insert = `INSERT INTO installments (id, enrollment_id, sequence, due_date, amount, paid_amount, status, paid_date, created_at)
        VALUES (:id, :enrollment_id, :sequence, :due_date, :amount, :paid_amount, :status, :paid_date, :created_at)`
	now := time.Now().UTC()
	for i := range installments {
		inst := &installments[i]
		if inst.ID == "" {
			inst.ID = uuid.NewString()
		}
		inst.EnrollmentID = enrollmentID
		if inst.CreatedAt.IsZero() {
			inst.CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, insert, inst); err != nil {
			return fmt.Errorf("create installment: %w", err)
		}
	}
	return nil
}
