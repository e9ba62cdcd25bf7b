package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextCodeStartsAtOne(t *testing.T) {
	assert.Equal(t, "STU-01", nextCode("", studentCodePrefix, 2))
	assert.Equal(t, "CRS-01", nextCode("", courseCodePrefix, 2))
	assert.Equal(t, "TEA-01", nextCode("", teacherCodePrefix, 2))
}

func TestNextCodeIncrements(t *testing.T) {
	assert.Equal(t, "STU-02", nextCode("STU-01", studentCodePrefix, 2))
	assert.Equal(t, "STU-10", nextCode("STU-09", studentCodePrefix, 2))
}

func TestNextCodeOverflowsPadding(t *testing.T) {
	assert.Equal(t, "STU-100", nextCode("STU-99", studentCodePrefix, 2))
	assert.Equal(t, "STU-101", nextCode("STU-100", studentCodePrefix, 2))
}

func TestNextCodeMalformedSuffixRestarts(t *testing.T) {
	assert.Equal(t, "STU-01", nextCode("STU-XX", studentCodePrefix, 2))
	assert.Equal(t, "STU-01", nextCode("garbage", studentCodePrefix, 2))
	assert.Equal(t, "STU-01", nextCode("STU-", studentCodePrefix, 2))
}

func TestBatchCode(t *testing.T) {
	assert.Equal(t, "CRS-01-B1", batchCode("CRS-01", 1))
	assert.Equal(t, "CRS-07-B3", batchCode("CRS-07", 3))
}

func TestNextRollNumber(t *testing.T) {
	assert.Equal(t, "CRS-01-B1-0001", nextRollNumber("", "CRS-01-B1"))
	assert.Equal(t, "CRS-01-B1-0008", nextRollNumber("CRS-01-B1-0007", "CRS-01-B1"))
}

func TestLowestFreeBatchNumber(t *testing.T) {
	assert.Equal(t, 1, lowestFreeBatchNumber(nil, 3))
	assert.Equal(t, 2, lowestFreeBatchNumber([]int{1, 3}, 3))
	assert.Equal(t, 1, lowestFreeBatchNumber([]int{2, 3}, 3))
	assert.Equal(t, 3, lowestFreeBatchNumber([]int{1, 2}, 3))
	assert.Equal(t, 0, lowestFreeBatchNumber([]int{1, 2, 3}, 3))
}
