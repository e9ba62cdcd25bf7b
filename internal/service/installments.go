package service

import (
	"time"

	"github.com/khurram-Shahid09/CourseMat/internal/models"
)

// buildInstallmentSchedule splits a fee across the inclusive month span of a
// batch. Each installment carries the integer quotient, the last one absorbs
// the remainder so amounts always sum to the fee exactly. A span of one month
// or less collapses into a single installment due on the start date.
func buildInstallmentSchedule(fee int64, start, end time.Time) []models.Installment {
	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month()) + 1
	if months <= 1 {
		return []models.Installment{{
			Sequence: 1,
			DueDate:  start,
			Amount:   fee,
			Status:   models.InstallmentStatusPending,
		}}
	}

	base := fee / int64(months)
	remainder := fee % int64(months)
	schedule := make([]models.Installment, 0, months)
	for i := 0; i < months; i++ {
		amount := base
		if i == months-1 {
			amount += remainder
		}
		schedule = append(schedule, models.Installment{
			Sequence: i + 1,
			DueDate:  addMonths(start, i),
			Amount:   amount,
			Status:   models.InstallmentStatusPending,
		})
	}
	return schedule
}

// addMonths shifts a date by whole months, clamping the day to the target
// month's length so a Jan 31 start does not spill into March.
func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
