package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
)

// FeeType determines how an enrollment is billed.
type FeeType string

// Supported fee types.
const (
	FeeTypeOneTime     FeeType = "one_time"
	FeeTypeInstallment FeeType = "installment"
	FeeTypeCustom      FeeType = "custom"
)

// MaxCoursesPerStudent caps how many distinct courses a student may be
// enrolled in at the same time.
const MaxCoursesPerStudent = 3

// Enrollment captures a student's registration to a batch.
type Enrollment struct {
	ID              string           `db:"id" json:"id"`
	StudentID       string           `db:"student_id" json:"student_id"`
	BatchID         string           `db:"batch_id" json:"batch_id"`
	RollNumber      string           `db:"roll_number" json:"roll_number"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	FeeType         FeeType          `db:"fee_type" json:"fee_type"`
	FeeAtEnrollment int64            `db:"fee_at_enrollment" json:"fee_at_enrollment"`
	PaidAmount      int64            `db:"paid_amount" json:"paid_amount"`
	EnrolledOn      time.Time        `db:"enrolled_on" json:"enrolled_on"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// CanTransitionTo reports whether the status change is allowed. Enrollments
// only move forward from enrolled, terminal states never change.
func (e Enrollment) CanTransitionTo(next EnrollmentStatus) bool {
	if e.Status == next {
		return true
	}
	return e.Status == EnrollmentStatusEnrolled &&
		(next == EnrollmentStatusCompleted || next == EnrollmentStatusDropped)
}

// EnrollmentDetail enriches Enrollment with student, course and batch info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	StudentCode string `db:"student_code" json:"student_code"`
	CourseID    string `db:"course_id" json:"course_id"`
	CourseTitle string `db:"course_title" json:"course_title"`
	CourseCode  string `db:"course_code" json:"course_code"`
	BatchCode   string `db:"batch_code" json:"batch_code"`
}

// EnrollmentExportRow carries the billing figures report exports need on top
// of the detail view.
type EnrollmentExportRow struct {
	EnrollmentDetail
	TotalPaid int64 `db:"total_paid" json:"total_paid"`
	TotalDue  int64 `db:"total_due" json:"total_due"`
	FullyPaid bool  `db:"fully_paid" json:"fully_paid"`
}

// PaymentState is a derived filter over billing progress.
type PaymentState string

// Derived payment states for fee management listings.
const (
	PaymentStatePaid    PaymentState = "paid"
	PaymentStatePartial PaymentState = "partial"
	PaymentStatePending PaymentState = "pending"
)

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID    string
	CourseID     string
	BatchID      string
	Status       EnrollmentStatus
	FeeType      FeeType
	PaymentState PaymentState
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
