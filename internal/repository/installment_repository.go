package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
)

// InstallmentRepository manages persistence for installment rows.
type InstallmentRepository struct {
	db *sqlx.DB
}

// NewInstallmentRepository constructs an InstallmentRepository.
func NewInstallmentRepository(db *sqlx.DB) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

// ListByEnrollment returns the schedule of an enrollment in due order.
func (r *InstallmentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Installment, error) {
	const query = `SELECT id, enrollment_id, sequence, due_date, amount, paid_amount, status, paid_date, created_at
        FROM installments WHERE enrollment_id = $1 ORDER BY sequence`
	var installments []models.Installment
	if err := r.db.SelectContext(ctx, &installments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return installments, nil
}

// FindByID fetches a single installment.
func (r *InstallmentRepository) FindByID(ctx context.Context, id string) (*models.Installment, error) {
	const query = `SELECT id, enrollment_id, sequence, due_date, amount, paid_amount, status, paid_date, created_at
        FROM installments WHERE id = $1`
	var installment models.Installment
	if err := r.db.GetContext(ctx, &installment, query, id); err != nil {
		return nil, err
	}
	return &installment, nil
}

// MarkPaid settles a pending installment in one statement: paid_amount snaps
// to the scheduled amount, the paid date is recorded and the settled row comes
// back. Returns sql.ErrNoRows when no pending installment matched, the caller
// decides whether that means missing or already settled.
func (r *InstallmentRepository) MarkPaid(ctx context.Context, id string, paidDate time.Time) (*models.Installment, error) {
	const query = `UPDATE installments SET status = $2, paid_amount = amount, paid_date = $3
        WHERE id = $1 AND status = $4
        RETURNING id, enrollment_id, sequence, due_date, amount, paid_amount, status, paid_date, created_at`
	var installment models.Installment
	if err := r.db.GetContext(ctx, &installment, query, id, models.InstallmentStatusPaid, paidDate, models.InstallmentStatusPending); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("mark installment paid: %w", err)
	}
	return &installment, nil
}

// HasPaid reports whether the enrollment has at least one settled installment.
func (r *InstallmentRepository) HasPaid(ctx context.Context, enrollmentID string) (bool, error) {
	const query = `SELECT 1 FROM installments WHERE enrollment_id = $1 AND status = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID, models.InstallmentStatusPaid); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check paid installments: %w", err)
	}
	return true, nil
}

// Replace swaps the enrollment's entire schedule in one transaction. Either
// the new schedule lands completely or the old one stays untouched.
func (r *InstallmentRepository) Replace(ctx context.Context, enrollmentID string, installments []models.Installment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace installments: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM installments WHERE enrollment_id = $1`, enrollmentID); err != nil {
		return fmt.Errorf("clear installments: %w", err)
	}
	if err := insertInstallments(ctx, tx, enrollmentID, installments); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace installments: %w", err)
	}
	commit = true
	return nil
}
