package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
)

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "active", "last_login", "created_at", "updated_at", "student_id", "teacher_id"})
}

func TestUserRepositoryFindByIDCarriesProfileLinks(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(`LEFT JOIN students s ON s\.user_id = u\.id`).
		WithArgs("u1").
		WillReturnRows(userRows().
			AddRow("u1", "amira@example.com", "hash", "Amira", "STUDENT", true, nil, time.Now(), time.Now(), "st1", nil))

	user, err := repo.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, user.StudentID)
	assert.Equal(t, "st1", *user.StudentID)
	assert.Nil(t, user.TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	role := models.RoleTeacher
	mock.ExpectQuery(`WHERE u\.role = \$1 ORDER BY u\.created_at DESC`).
		WithArgs(role).
		WillReturnRows(userRows().
			AddRow("u2", "omar@example.com", "hash", "Omar", "TEACHER", true, nil, time.Now(), time.Now(), nil, "t7"))
	mock.ExpectQuery(`SELECT COUNT\(u\.id\) FROM users u`).
		WithArgs(role).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	require.NotNil(t, users[0].TeacherID)
	assert.Equal(t, "t7", *users[0].TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListRejectsUnknownSortColumn(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(`ORDER BY u\.created_at DESC`).
		WillReturnRows(userRows())
	mock.ExpectQuery(`SELECT COUNT\(u\.id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.UserFilter{SortBy: "password_hash; DROP TABLE users"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
