package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
)

// AnalyticsRepository serves read-only aggregates for analytics and the
// dashboard. Results are cached one layer up, queries here always hit the
// database.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs an AnalyticsRepository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func enrollmentScope(filter models.AnalyticsFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("b.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("e.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("e.enrolled_on >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("e.enrolled_on <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	return strings.Join(conditions, " AND "), args
}

// Overview aggregates the institute-wide counters and fee figures.
func (r *AnalyticsRepository) Overview(ctx context.Context, filter models.AnalyticsFilter) (*models.AnalyticsOverview, error) {
	overview := &models.AnalyticsOverview{}

	const counters = `SELECT
        (SELECT COUNT(*) FROM students) AS total_students,
        (SELECT COUNT(DISTINCT student_id) FROM enrollments WHERE status = 'enrolled') AS active_students,
        (SELECT COUNT(*) FROM courses) AS total_courses,
        (SELECT COUNT(DISTINCT course_id) FROM batches WHERE end_date >= CURRENT_DATE) AS active_courses,
        (SELECT COUNT(*) FROM batches) AS total_batches,
        (SELECT COUNT(*) FROM batches WHERE start_date <= CURRENT_DATE AND end_date >= CURRENT_DATE) AS ongoing_batches,
        (SELECT COUNT(*) FROM teachers) AS total_teachers`
	if err := r.db.GetContext(ctx, overview, counters); err != nil {
		return nil, fmt.Errorf("analytics counters: %w", err)
	}

	scope, args := enrollmentScope(filter)
	type enrollmentFigures struct {
		TotalEnrollments     int   `db:"total_enrollments"`
		EnrollmentsThisMonth int   `db:"enrollments_this_month"`
		FeeCollected         int64 `db:"fee_collected"`
		FeePending           int64 `db:"fee_pending"`
	}
	query := fmt.Sprintf(`SELECT
        COUNT(e.id) AS total_enrollments,
        COUNT(e.id) FILTER (WHERE date_trunc('month', e.enrolled_on) = date_trunc('month', CURRENT_DATE)) AS enrollments_this_month,
        COALESCE(SUM(CASE WHEN e.fee_type = 'installment' THEN COALESCE(ip.paid, 0) ELSE e.paid_amount END), 0) AS fee_collected,
        COALESCE(SUM(CASE WHEN e.fee_type = 'installment' THEN COALESCE(ip.total, 0) - COALESCE(ip.paid, 0)
            ELSE GREATEST(e.fee_at_enrollment - e.paid_amount, 0) END), 0) AS fee_pending
        FROM enrollments e
        JOIN batches b ON b.id = e.batch_id
        LEFT JOIN (SELECT enrollment_id, SUM(amount) AS total, SUM(paid_amount) AS paid FROM installments GROUP BY enrollment_id) ip ON ip.enrollment_id = e.id
        WHERE %s`, scope)
	var figures enrollmentFigures
	if err := r.db.GetContext(ctx, &figures, query, args...); err != nil {
		return nil, fmt.Errorf("analytics fee figures: %w", err)
	}

	overview.TotalEnrollments = figures.TotalEnrollments
	overview.EnrollmentsThisMonth = figures.EnrollmentsThisMonth
	overview.FeeCollected = figures.FeeCollected
	overview.FeePending = figures.FeePending
	overview.GeneratedAt = time.Now().UTC()
	return overview, nil
}

// MonthlyTrend returns per-month enrollment counts and collections for the
// trailing window, oldest month first.
func (r *AnalyticsRepository) MonthlyTrend(ctx context.Context, months int, filter models.AnalyticsFilter) ([]models.MonthlyPoint, error) {
	if months <= 0 {
		months = 6
	}
	scope, args := enrollmentScope(filter)
	query := fmt.Sprintf(`SELECT
        to_char(date_trunc('month', e.enrolled_on), 'YYYY-MM') AS month,
        COUNT(e.id) AS enrollments,
        COALESCE(SUM(CASE WHEN e.fee_type = 'installment' THEN COALESCE(ip.paid, 0) ELSE e.paid_amount END), 0) AS fee_collected
        FROM enrollments e
        JOIN batches b ON b.id = e.batch_id
        LEFT JOIN (SELECT enrollment_id, SUM(paid_amount) AS paid FROM installments GROUP BY enrollment_id) ip ON ip.enrollment_id = e.id
        WHERE %s AND e.enrolled_on >= date_trunc('month', CURRENT_DATE) - INTERVAL '%d months'
        GROUP BY 1 ORDER BY 1`, scope, months-1)
	var points []models.MonthlyPoint
	if err := r.db.SelectContext(ctx, &points, query, args...); err != nil {
		return nil, fmt.Errorf("analytics monthly trend: %w", err)
	}
	return points, nil
}

// TopCourses ranks courses by total enrollments.
func (r *AnalyticsRepository) TopCourses(ctx context.Context, limit int) ([]models.CourseEnrollmentCount, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT c.id AS course_id, c.title AS course_title, c.course_code, COUNT(e.id) AS enrollments
        FROM courses c
        LEFT JOIN batches b ON b.course_id = c.id
        LEFT JOIN enrollments e ON e.batch_id = b.id
        GROUP BY c.id ORDER BY enrollments DESC, c.title LIMIT $1`
	var rows []models.CourseEnrollmentCount
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("analytics top courses: %w", err)
	}
	return rows, nil
}

// TopTeachers ranks teachers by distinct students taught.
func (r *AnalyticsRepository) TopTeachers(ctx context.Context, limit int) ([]models.TeacherStudentCount, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT t.id AS teacher_id, t.full_name AS teacher_name, t.teacher_code, COUNT(DISTINCT e.student_id) AS students
        FROM teachers t
        LEFT JOIN batches b ON b.teacher_id = t.id
        LEFT JOIN enrollments e ON e.batch_id = b.id
        GROUP BY t.id ORDER BY students DESC, t.full_name LIMIT $1`
	var rows []models.TeacherStudentCount
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("analytics top teachers: %w", err)
	}
	return rows, nil
}

// RecentEnrollments returns the latest enrollments for the dashboard feed.
func (r *AnalyticsRepository) RecentEnrollments(ctx context.Context, limit int) ([]models.EnrollmentDetail, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT e.id, e.student_id, e.batch_id, e.roll_number, e.status, e.fee_type, e.fee_at_enrollment, e.paid_amount, e.enrolled_on, e.created_at, e.updated_at,
        s.full_name AS student_name, s.roll_number AS student_code,
        c.id AS course_id, c.title AS course_title, c.course_code, b.batch_code
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN batches b ON b.id = e.batch_id
        JOIN courses c ON c.id = b.course_id
        ORDER BY e.created_at DESC LIMIT $1`
	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("analytics recent enrollments: %w", err)
	}
	return rows, nil
}
