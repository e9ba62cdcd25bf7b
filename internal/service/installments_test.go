package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildInstallmentScheduleSplitsWithRemainderOnLast(t *testing.T) {
	schedule := buildInstallmentSchedule(1000, day(2025, time.January, 1), day(2025, time.March, 31))
	require.Len(t, schedule, 3)

	var sum int64
	for _, inst := range schedule {
		sum += inst.Amount
	}
	assert.Equal(t, int64(1000), sum)
	assert.Equal(t, int64(333), schedule[0].Amount)
	assert.Equal(t, int64(333), schedule[1].Amount)
	assert.Equal(t, int64(334), schedule[2].Amount)
	assert.Equal(t, day(2025, time.January, 1), schedule[0].DueDate)
	assert.Equal(t, day(2025, time.February, 1), schedule[1].DueDate)
	assert.Equal(t, day(2025, time.March, 1), schedule[2].DueDate)
}

func TestBuildInstallmentScheduleSingleMonth(t *testing.T) {
	schedule := buildInstallmentSchedule(500, day(2025, time.June, 1), day(2025, time.June, 20))
	require.Len(t, schedule, 1)
	assert.Equal(t, int64(500), schedule[0].Amount)
	assert.Equal(t, day(2025, time.June, 1), schedule[0].DueDate)
}

func TestBuildInstallmentScheduleClampsMonthEnd(t *testing.T) {
	schedule := buildInstallmentSchedule(900, day(2025, time.January, 31), day(2025, time.March, 15))
	require.Len(t, schedule, 3)
	assert.Equal(t, day(2025, time.January, 31), schedule[0].DueDate)
	assert.Equal(t, day(2025, time.February, 28), schedule[1].DueDate)
	assert.Equal(t, day(2025, time.March, 31), schedule[2].DueDate)
}

func TestBuildInstallmentScheduleZeroFee(t *testing.T) {
	schedule := buildInstallmentSchedule(0, day(2025, time.January, 1), day(2025, time.April, 30))
	require.Len(t, schedule, 4)
	for _, inst := range schedule {
		assert.Zero(t, inst.Amount)
	}
}
