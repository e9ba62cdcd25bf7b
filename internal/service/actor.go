package service

import "github.com/khurram-Shahid09/CourseMat/internal/models"

// Actor identifies who is performing an operation. Role-sensitive service
// methods take it as an explicit argument instead of reading ambient request
// state, so the scoping rules stay visible at the call site and testable.
type Actor struct {
	UserID string
	Role   models.UserRole

	// StudentID and TeacherID link the account to its domain record when
	// the role warrants one.
	StudentID string
	TeacherID string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}
