package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
	appErrors "github.com/khurram-Shahid09/CourseMat/pkg/errors"
)

type installmentRepository interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Installment, error)
	FindByID(ctx context.Context, id string) (*models.Installment, error)
	MarkPaid(ctx context.Context, id string, paidDate time.Time) (*models.Installment, error)
	HasPaid(ctx context.Context, enrollmentID string) (bool, error)
	Replace(ctx context.Context, enrollmentID string, installments []models.Installment) error
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// BillingService is the single source of payment truth. All billing reads go
// through Summarize so installment-billed and directly-billed enrollments
// present the same figures.
type BillingService struct {
	installments installmentRepository
	enrollments  enrollmentReader
	batches      batchReader
	logger       *zap.Logger
}

// NewBillingService constructs the billing service.
func NewBillingService(installments installmentRepository, enrollments enrollmentReader, batches batchReader, logger *zap.Logger) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{installments: installments, enrollments: enrollments, batches: batches, logger: logger}
}

func (s *BillingService) loadScoped(ctx context.Context, actor Actor, enrollmentID string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if actor.Role == models.RoleStudent && enrollment.StudentID != actor.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return enrollment, nil
}

// Summarize computes the unified billing view of one enrollment. For
// installment billing the totals come from the installment rows and the
// enrollment is fully paid once every installment is. Otherwise the
// enrollment's own snapshot and recorded payments decide, with pending
// clamped at zero so overpayment never reads negative.
func (s *BillingService) Summarize(ctx context.Context, actor Actor, enrollmentID string) (*models.BillingSummary, error) {
	enrollment, err := s.loadScoped(ctx, actor, enrollmentID)
	if err != nil {
		return nil, err
	}

	summary := &models.BillingSummary{
		EnrollmentID: enrollment.ID,
		FeeType:      enrollment.FeeType,
	}

	if enrollment.FeeType == models.FeeTypeInstallment {
		installments, err := s.installments.ListByEnrollment(ctx, enrollmentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load installments")
		}
		if len(installments) > 0 {
			allPaid := true
			for _, inst := range installments {
				summary.TotalFee += inst.Amount
				summary.PaidAmount += inst.PaidAmount
				if inst.Status != models.InstallmentStatusPaid {
					allPaid = false
				}
			}
			summary.IsFullyPaid = allPaid
			summary.Installments = installments
			summary.PendingAmount = summary.TotalFee - summary.PaidAmount
			if summary.PendingAmount < 0 {
				summary.PendingAmount = 0
			}
			return summary, nil
		}
		// No schedule rows, fall through to the enrollment snapshot.
	}

	summary.TotalFee = enrollment.FeeAtEnrollment
	summary.PaidAmount = enrollment.PaidAmount
	summary.PendingAmount = summary.TotalFee - summary.PaidAmount
	if summary.PendingAmount < 0 {
		summary.PendingAmount = 0
	}
	summary.IsFullyPaid = summary.PaidAmount >= summary.TotalFee
	return summary, nil
}

// ListInstallments returns the schedule of an enrollment in due order.
func (s *BillingService) ListInstallments(ctx context.Context, actor Actor, enrollmentID string) ([]models.Installment, error) {
	if _, err := s.loadScoped(ctx, actor, enrollmentID); err != nil {
		return nil, err
	}
	installments, err := s.installments.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load installments")
	}
	return installments, nil
}

// MarkPaid settles one pending installment: its paid amount snaps to the
// scheduled amount and today becomes the paid date. The enrollment's own
// paid_amount is deliberately left alone, billing reads derive from the
// installment rows. Paid installments never go back to pending.
func (s *BillingService) MarkPaid(ctx context.Context, installmentID string) (*models.Installment, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	installment, err := s.installments.MarkPaid(ctx, installmentID, today)
	if err == nil {
		return installment, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark installment paid")
	}

	// No pending row matched. A follow-up read tells missing apart from
	// already settled.
	if _, err := s.installments.FindByID(ctx, installmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "installment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load installment")
	}
	return nil, appErrors.Clone(appErrors.ErrAlreadyPaid, "")
}

// Regenerate rebuilds the installment schedule of an enrollment from its fee
// snapshot and the batch window, replacing the old schedule atomically. When
// settled installments exist the caller must confirm explicitly, payment
// history is destroyed by the rebuild.
func (s *BillingService) Regenerate(ctx context.Context, enrollmentID string, confirm bool) ([]models.Installment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.FeeType != models.FeeTypeInstallment {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment is not billed in installments")
	}

	hasPaid, err := s.installments.HasPaid(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect installments")
	}
	if hasPaid && !confirm {
		return nil, appErrors.Clone(appErrors.ErrConfirmationNeeded, "")
	}

	batch, err := s.batches.FindByID(ctx, enrollment.BatchID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}

	schedule := buildInstallmentSchedule(enrollment.FeeAtEnrollment, batch.StartDate, batch.EndDate)
	if err := s.installments.Replace(ctx, enrollmentID, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace installments")
	}
	s.logger.Info("installment schedule rebuilt",
		zap.String("enrollment_id", enrollmentID),
		zap.Int("installments", len(schedule)),
		zap.Bool("had_paid", hasPaid))
	return schedule, nil
}
