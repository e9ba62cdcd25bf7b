package models

import "time"

// CourseLevel enumerates the supported difficulty levels.
type CourseLevel string

const (
	CourseLevelBeginner     CourseLevel = "beginner"
	CourseLevelIntermediate CourseLevel = "intermediate"
	CourseLevelAdvanced     CourseLevel = "advanced"
)

// Course represents a course offered by the institute.
type Course struct {
	ID            string      `db:"id" json:"id"`
	CourseCode    string      `db:"course_code" json:"course_code"`
	Title         string      `db:"title" json:"title"`
	Description   *string     `db:"description" json:"description,omitempty"`
	DurationWeeks int         `db:"duration_weeks" json:"duration_weeks"`
	Level         CourseLevel `db:"level" json:"level"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures filtering options for listing courses.
type CourseFilter struct {
	Search    string
	Level     CourseLevel
	TeacherID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CourseDetail enriches Course with batch and enrollment context.
type CourseDetail struct {
	Course
	ActiveBatches    int `db:"active_batches" json:"active_batches"`
	TotalEnrollments int `db:"total_enrollments" json:"total_enrollments"`
}
