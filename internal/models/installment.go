package models

import "time"

// InstallmentStatus represents the payment state of a single installment.
type InstallmentStatus string

// Installments move from pending to paid exactly once.
const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPaid    InstallmentStatus = "paid"
)

// Installment is one scheduled payment of an installment-billed enrollment.
type Installment struct {
	ID           string            `db:"id" json:"id"`
	EnrollmentID string            `db:"enrollment_id" json:"enrollment_id"`
	Sequence     int               `db:"sequence" json:"sequence"`
	DueDate      time.Time         `db:"due_date" json:"due_date"`
	Amount       int64             `db:"amount" json:"amount"`
	PaidAmount   int64             `db:"paid_amount" json:"paid_amount"`
	Status       InstallmentStatus `db:"status" json:"status"`
	PaidDate     *time.Time        `db:"paid_date" json:"paid_date,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

// BillingSummary is the unified payment view of one enrollment. For
// installment enrollments the figures are derived from the installment rows,
// otherwise from the enrollment's own fee and paid amount.
type BillingSummary struct {
	EnrollmentID  string        `json:"enrollment_id"`
	FeeType       FeeType       `json:"fee_type"`
	TotalFee      int64         `json:"total_fee"`
	PaidAmount    int64         `json:"paid_amount"`
	PendingAmount int64         `json:"pending_amount"`
	IsFullyPaid   bool          `json:"is_fully_paid"`
	Installments  []Installment `json:"installments,omitempty"`
}
