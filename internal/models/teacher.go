package models

import "time"

// Teacher represents an instructor record.
type Teacher struct {
	ID             string    `db:"id" json:"id"`
	TeacherCode    string    `db:"teacher_code" json:"teacher_code"`
	FullName       string    `db:"full_name" json:"full_name"`
	Email          string    `db:"email" json:"email"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	Specialization *string   `db:"specialization" json:"specialization,omitempty"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	// CourseIDs lists the courses the teacher is qualified for.
	// Populated from the teacher_courses join table, not a column.
	CourseIDs []string `db:"-" json:"course_ids,omitempty"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	CourseID  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TeacherDetail enriches Teacher with teaching load context.
type TeacherDetail struct {
	Teacher
	ActiveBatches int `db:"active_batches" json:"active_batches"`
	TotalStudents int `db:"total_students" json:"total_students"`
}
