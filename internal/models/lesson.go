package models

import "time"

// Lesson is teaching material published to a batch. An empty target set
// means the lesson is visible to every student enrolled in the batch.
type Lesson struct {
	ID        string    `db:"id" json:"id"`
	BatchID   string    `db:"batch_id" json:"batch_id"`
	CourseID  *string   `db:"course_id" json:"course_id,omitempty"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LessonImage is an uploaded attachment stored on local disk.
type LessonImage struct {
	ID          string    `db:"id" json:"id"`
	LessonID    string    `db:"lesson_id" json:"lesson_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	Path        string    `db:"path" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// LessonDetail enriches Lesson with its targets and attachments.
type LessonDetail struct {
	Lesson
	BatchCode   string        `db:"batch_code" json:"batch_code"`
	TeacherName *string       `db:"teacher_name" json:"teacher_name,omitempty"`
	StudentIDs  []string      `json:"student_ids,omitempty"`
	Images      []LessonImage `json:"images,omitempty"`
}

// LessonFilter provides filters for listing lessons. VisibleToStudentID and
// TaughtByTeacherID scope the listing to what that actor may see.
type LessonFilter struct {
	BatchID            string
	CourseID           string
	TeacherID          string
	Search             string
	VisibleToStudentID string
	TaughtByTeacherID  string
	Page               int
	PageSize           int
	SortBy             string
	SortOrder          string
}
