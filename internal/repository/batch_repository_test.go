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

func TestBatchRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "teacher_id", "number", "batch_code", "start_date", "end_date", "fee", "created_at", "updated_at", "course_title", "course_code", "teacher_name", "enrolled_count"}).
		AddRow("b1", "c1", nil, 1, "CRS-01-B1", time.Now(), time.Now().AddDate(0, 3, 0), int64(1000), time.Now(), time.Now(), "Go Basics", "CRS-01", nil, 4)
	mock.ExpectQuery(`SELECT b\.id, b\.course_id, b\.teacher_id`).
		WithArgs("c1").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(DISTINCT b\.id\)`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	batches, total, err := repo.List(context.Background(), models.BatchFilter{CourseID: "c1"})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "CRS-01-B1", batches[0].BatchCode)
	assert.Equal(t, 4, batches[0].EnrolledCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryActiveNumbersByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	rows := sqlmock.NewRows([]string{"number"}).AddRow(1).AddRow(3)
	mock.ExpectQuery(`SELECT number FROM batches WHERE course_id = \$1 AND end_date >= CURRENT_DATE`).
		WithArgs("c1").
		WillReturnRows(rows)

	numbers, err := repo.ActiveNumbersByCourse(context.Background(), "c1", "")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, numbers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryActiveNumbersExcludesBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	rows := sqlmock.NewRows([]string{"number"}).AddRow(2)
	mock.ExpectQuery(`SELECT number FROM batches WHERE course_id = \$1 AND end_date >= CURRENT_DATE AND id <> \$2`).
		WithArgs("c1", "b1").
		WillReturnRows(rows)

	numbers, err := repo.ActiveNumbersByCourse(context.Background(), "c1", "b1")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, numbers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	mock.ExpectExec("INSERT INTO batches").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	batch := &models.Batch{CourseID: "c1", Number: 2, BatchCode: "CRS-01-B2", StartDate: time.Now(), EndDate: time.Now().AddDate(0, 3, 0), Fee: 1000}
	err := repo.Create(context.Background(), batch)
	require.NoError(t, err)
	assert.NotEmpty(t, batch.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
