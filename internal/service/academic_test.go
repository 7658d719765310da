package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campushub/campus-api/internal/models"
)

func TestDeriveGradeThresholds(t *testing.T) {
	cases := []struct {
		percentage float64
		want       models.LetterGrade
	}{
		{100, models.GradeAPlus},
		{90, models.GradeAPlus},
		{89.99, models.GradeA},
		{80, models.GradeA},
		{79.99, models.GradeBPlus},
		{70, models.GradeBPlus},
		{60, models.GradeB},
		{50, models.GradeCPlus},
		{40, models.GradeC},
		{39.99, models.GradeD},
		{35, models.GradeD},
		{34.99, models.GradeF},
		{0, models.GradeF},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, deriveGrade(tc.percentage), "percentage %v", tc.percentage)
	}
}

func TestGradePointsTotal(t *testing.T) {
	assert.Equal(t, 10.0, models.GradePoints(models.GradeAPlus))
	assert.Equal(t, 9.0, models.GradePoints(models.GradeA))
	assert.Equal(t, 4.0, models.GradePoints(models.GradeD))
	assert.Equal(t, 0.0, models.GradePoints(models.GradeF))
	assert.Equal(t, 0.0, models.GradePoints(models.GradeI))
	assert.Equal(t, 0.0, models.GradePoints(models.GradeW))
	assert.Equal(t, 0.0, models.GradePoints(models.GradeNone))
	assert.Equal(t, 0.0, models.GradePoints(models.LetterGrade("bogus")))
}

func TestCreditWeightedGPA(t *testing.T) {
	pool := []models.EnrollmentDetail{
		{Enrollment: models.Enrollment{GradePoints: 9}, CourseCredits: 3},
		{Enrollment: models.Enrollment{GradePoints: 7}, CourseCredits: 4},
	}
	// (9*3 + 7*4) / 7 = 55/7
	assert.Equal(t, 7.86, creditWeightedGPA(pool))
}

func TestCreditWeightedGPAEmptyPool(t *testing.T) {
	assert.Equal(t, 0.0, creditWeightedGPA(nil))
}

func TestCreditWeightedGPADefaultsCredits(t *testing.T) {
	pool := []models.EnrollmentDetail{
		{Enrollment: models.Enrollment{GradePoints: 8}, CourseCredits: 0},
	}
	assert.Equal(t, 8.0, creditWeightedGPA(pool))
}

func TestAttendancePercentage(t *testing.T) {
	// present, present, late, absent
	assert.Equal(t, 75.0, attendancePercentage(4, 2, 1))
	assert.Equal(t, 62.5, weightedAttendancePercentage(4, 2, 1))
	assert.Equal(t, 0.0, attendancePercentage(0, 0, 0))
	assert.Equal(t, 0.0, weightedAttendancePercentage(0, 0, 0))
}
