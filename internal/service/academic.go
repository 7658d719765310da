package service

import (
	"math"

	"github.com/campushub/campus-api/internal/models"
)

// round2 rounds to two decimal places, the precision every GPA and
// percentage aggregate is reported at.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// deriveGrade maps a percentage onto the fixed descending threshold table.
func deriveGrade(percentage float64) models.LetterGrade {
	switch {
	case percentage >= 90:
		return models.GradeAPlus
	case percentage >= 80:
		return models.GradeA
	case percentage >= 70:
		return models.GradeBPlus
	case percentage >= 60:
		return models.GradeB
	case percentage >= 50:
		return models.GradeCPlus
	case percentage >= 40:
		return models.GradeC
	case percentage >= 35:
		return models.GradeD
	default:
		return models.GradeF
	}
}

// creditWeightedGPA computes sum(gradePoints x credits) / sum(credits) over
// the enrollment pool, 0 when the pool is empty. Courses without a recorded
// credit weight count as the default.
func creditWeightedGPA(pool []models.EnrollmentDetail) float64 {
	var totalCredits, totalPoints float64
	for _, enrollment := range pool {
		credits := float64(enrollment.CourseCredits)
		if credits <= 0 {
			credits = models.DefaultCourseCredits
		}
		totalCredits += credits
		totalPoints += enrollment.GradePoints * credits
	}
	if totalCredits == 0 {
		return 0
	}
	return round2(totalPoints / totalCredits)
}

// attendancePercentage is the canonical aggregate: late counts as present.
// It feeds the denormalized enrollment field and all admin views.
func attendancePercentage(total, present, late int) float64 {
	if total == 0 {
		return 0
	}
	return float64(present+late) / float64(total) * 100
}

// weightedAttendancePercentage gives late sessions half credit. Reported to
// students alongside the canonical figure; the two formulas are deliberately
// kept distinct rather than unified.
func weightedAttendancePercentage(total, present, late int) float64 {
	if total == 0 {
		return 0
	}
	return (float64(present) + 0.5*float64(late)) / float64(total) * 100
}
