package models

import "time"

// AnalyticsFilter scopes analytics queries.
type AnalyticsFilter struct {
	CourseID string
	BatchID  string
	DateFrom *time.Time
	DateTo   *time.Time
}

// AnalyticsOverview aggregates institute-wide counters and fee figures.
type AnalyticsOverview struct {
	TotalStudents        int `db:"total_students" json:"total_students"`
	ActiveStudents       int `db:"active_students" json:"active_students"`
	TotalCourses         int `db:"total_courses" json:"total_courses"`
	ActiveCourses        int `db:"active_courses" json:"active_courses"`
	TotalBatches         int `db:"total_batches" json:"total_batches"`
	OngoingBatches       int `db:"ongoing_batches" json:"ongoing_batches"`
	TotalTeachers        int `db:"total_teachers" json:"total_teachers"`
	TotalEnrollments     int `db:"total_enrollments" json:"total_enrollments"`
	EnrollmentsThisMonth int `db:"enrollments_this_month" json:"enrollments_this_month"`

	FeeCollected int64 `db:"fee_collected" json:"fee_collected"`
	FeePending   int64 `db:"fee_pending" json:"fee_pending"`

	MonthlyTrend []MonthlyPoint `json:"monthly_trend"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// MonthlyPoint is one month of the enrollment and collection trend.
type MonthlyPoint struct {
	Month        string `db:"month" json:"month"`
	Enrollments  int    `db:"enrollments" json:"enrollments"`
	FeeCollected int64  `db:"fee_collected" json:"fee_collected"`
}

// CourseEnrollmentCount ranks a course by enrollment volume.
type CourseEnrollmentCount struct {
	CourseID    string `db:"course_id" json:"course_id"`
	CourseTitle string `db:"course_title" json:"course_title"`
	CourseCode  string `db:"course_code" json:"course_code"`
	Enrollments int    `db:"enrollments" json:"enrollments"`
}

// TeacherStudentCount ranks a teacher by distinct students taught.
type TeacherStudentCount struct {
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	TeacherCode string `db:"teacher_code" json:"teacher_code"`
	Students    int    `db:"students" json:"students"`
}

// DashboardSummary backs the admin landing page.
type DashboardSummary struct {
	Overview          AnalyticsOverview       `json:"overview"`
	RecentEnrollments []EnrollmentDetail      `json:"recent_enrollments"`
	TopCourses        []CourseEnrollmentCount `json:"top_courses"`
	TopTeachers       []TeacherStudentCount   `json:"top_teachers"`
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
