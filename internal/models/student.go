package models

import "time"

// Student represents a learner registered at the institute.
type Student struct {
	ID          string     `db:"id" json:"id"`
	RollNumber  string     `db:"roll_number" json:"roll_number"`
	FullName    string     `db:"full_name" json:"full_name"`
	Email       string     `db:"email" json:"email"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	Age         *int       `db:"age" json:"age,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	UserID      *string    `db:"user_id" json:"user_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	CourseID  string
	BatchID   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail contains student information with enrollment context.
type StudentDetail struct {
	Student
	ActiveEnrollments int   `db:"active_enrollments" json:"active_enrollments"`
	TotalPaid         int64 `db:"total_paid" json:"total_paid"`
}
