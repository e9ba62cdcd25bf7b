package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
)

func TestInstallmentRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "sequence", "due_date", "amount", "paid_amount", "status", "paid_date", "created_at"}).
		AddRow("i1", "e1", 1, time.Now(), int64(333), int64(333), "paid", time.Now(), time.Now()).
		AddRow("i2", "e1", 2, time.Now(), int64(334), int64(0), "pending", nil, time.Now())
	mock.ExpectQuery(`SELECT id, enrollment_id, sequence, due_date`).
		WithArgs("e1").
		WillReturnRows(rows)

	installments, err := repo.ListByEnrollment(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, installments, 2)
	assert.Equal(t, models.InstallmentStatusPaid, installments[0].Status)
	assert.Equal(t, 2, installments[1].Sequence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryMarkPaid(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	paidDate := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "sequence", "due_date", "amount", "paid_amount", "status", "paid_date", "created_at"}).
		AddRow("i1", "e1", 1, time.Now(), int64(333), int64(333), "paid", paidDate, time.Now())
	mock.ExpectQuery(`UPDATE installments SET status .+ RETURNING id, enrollment_id`).
		WithArgs("i1", models.InstallmentStatusPaid, paidDate, models.InstallmentStatusPending).
		WillReturnRows(rows)

	installment, err := repo.MarkPaid(context.Background(), "i1", paidDate)
	require.NoError(t, err)
	assert.Equal(t, models.InstallmentStatusPaid, installment.Status)
	assert.Equal(t, int64(333), installment.PaidAmount)
	require.NotNil(t, installment.PaidDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryMarkPaidAlreadySettled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	paidDate := time.Now().UTC()
	mock.ExpectQuery(`UPDATE installments SET status`).
		WithArgs("i1", models.InstallmentStatusPaid, paidDate, models.InstallmentStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.MarkPaid(context.Background(), "i1", paidDate)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryReplace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM installments WHERE enrollment_id`).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO installments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO installments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	schedule := []models.Installment{
		{Sequence: 1, DueDate: time.Now(), Amount: 500, Status: models.InstallmentStatusPending},
		{Sequence: 2, DueDate: time.Now().AddDate(0, 1, 0), Amount: 500, Status: models.InstallmentStatusPending},
	}
	err := repo.Replace(context.Background(), "e1", schedule)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryReplaceRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM installments WHERE enrollment_id`).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO installments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	schedule := []models.Installment{{Sequence: 1, DueDate: time.Now(), Amount: 500, Status: models.InstallmentStatusPending}}
	err := repo.Replace(context.Background(), "e1", schedule)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
