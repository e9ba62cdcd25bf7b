package models

import "time"

// MaxActiveBatchesPerCourse caps concurrently running batches of a course.
const MaxActiveBatchesPerCourse = 3

// BatchCapacity is the maximum number of active students in a batch.
const BatchCapacity = 10

// Batch represents a scheduled run of a course.
type Batch struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Number    int       `db:"number" json:"number"`
	BatchCode string    `db:"batch_code" json:"batch_code"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	Fee       int64     `db:"fee" json:"fee"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Active reports whether the batch is still running on the given day.
func (b Batch) Active(today time.Time) bool {
	return !b.EndDate.Before(truncateToDay(today))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// BatchDetail enriches Batch with course, teacher and occupancy info.
type BatchDetail struct {
	Batch
	CourseTitle   string  `db:"course_title" json:"course_title"`
	CourseCode    string  `db:"course_code" json:"course_code"`
	TeacherName   *string `db:"teacher_name" json:"teacher_name,omitempty"`
	EnrolledCount int     `db:"enrolled_count" json:"enrolled_count"`
}

// BatchFilter provides filters for listing batches.
type BatchFilter struct {
	CourseID  string
	TeacherID string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
