package service

import (
	"fmt"
	"strconv"
	"strings"
)

// Code prefixes for the sequential human-readable identifiers.
const (
	studentCodePrefix = "STU"
	courseCodePrefix  = "CRS"
	teacherCodePrefix = "TEA"
)

// codeSuffix parses the numeric segment after the last dash. A malformed or
// missing suffix counts as 0 so numbering restarts instead of failing.
func codeSuffix(code string) int {
	idx := strings.LastIndex(code, "-")
	if idx < 0 || idx == len(code)-1 {
		return 0
	}
	n, err := strconv.Atoi(code[idx+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// nextCode derives the next sequential code from the most recently assigned
// sibling. An empty last code starts the sequence at 1. Width is the minimum
// zero-padded digit count, larger suffixes overflow the padding naturally.
func nextCode(last, prefix string, width int) string {
	return fmt.Sprintf("%s-%0*d", prefix, width, codeSuffix(last)+1)
}

// batchCode composes the code of a course batch from its course and number.
func batchCode(courseCode string, number int) string {
	return fmt.Sprintf("%s-B%d", courseCode, number)
}

// nextRollNumber derives the enrollment roll number within a batch from the
// most recently assigned one.
func nextRollNumber(last, batchCode string) string {
	return fmt.Sprintf("%s-%04d", batchCode, codeSuffix(last)+1)
}

// lowestFreeBatchNumber picks the smallest number in [1, max] not taken by a
// still-running sibling batch. Returns 0 when all numbers are taken.
func lowestFreeBatchNumber(taken []int, max int) int {
	used := make(map[int]bool, len(taken))
	for _, n := range taken {
		used[n] = true
	}
	for n := 1; n <= max; n++ {
		if !used[n] {
			return n
		}
	}
	return 0
}
