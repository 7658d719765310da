package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
	EnrollmentStatusFailed    EnrollmentStatus = "failed"
)

// Valid returns true when the status is a supported value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusDropped, EnrollmentStatusFailed:
		return true
	default:
		return false
	}
}

// CountsTowardGPA reports whether enrollments in this status enter the
// GPA/CGPA credit pool. Dropped and failed enrollments are excluded.
func (s EnrollmentStatus) CountsTowardGPA() bool {
	return s == EnrollmentStatusActive || s == EnrollmentStatusCompleted
}

// LetterGrade is the letter awarded on an enrollment or marks record.
type LetterGrade string

// Letter grades on the 10-point scale. I (incomplete) and W (withdrawn)
// carry zero grade points.
const (
	GradeAPlus LetterGrade = "A+"
	GradeA     LetterGrade = "A"
	GradeBPlus LetterGrade = "B+"
	GradeB     LetterGrade = "B"
	GradeCPlus LetterGrade = "C+"
	GradeC     LetterGrade = "C"
	GradeD     LetterGrade = "D"
	GradeF     LetterGrade = "F"
	GradeI     LetterGrade = "I"
	GradeW     LetterGrade = "W"
	GradeNone  LetterGrade = ""
)

var gradePointScale = map[LetterGrade]float64{
	GradeAPlus: 10,
	GradeA:     9,
	GradeBPlus: 8,
	GradeB:     7,
	GradeCPlus: 6,
	GradeC:     5,
	GradeD:     4,
	GradeF:     0,
	GradeI:     0,
	GradeW:     0,
}

// GradePoints maps a letter grade onto the fixed 0-10 scale. The mapping is
// total: anything outside the scale, including the empty grade, is 0.
func GradePoints(grade LetterGrade) float64 {
	return gradePointScale[grade]
}

// Enrollment ties one student to one course for one semester and academic
// year. GradePoints and AttendancePercentage are derived fields kept current
// by the enrollment and attendance services.
type Enrollment struct {
	ID                   string           `db:"id" json:"id"`
	StudentID            string           `db:"student_id" json:"student_id"`
	CourseID             string           `db:"course_id" json:"course_id"`
	Semester             int              `db:"semester" json:"semester"`
	AcademicYear         string           `db:"academic_year" json:"academic_year"`
	EnrolledAt           time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status               EnrollmentStatus `db:"status" json:"status"`
	Grade                LetterGrade      `db:"grade" json:"grade"`
	GradePoints          float64          `db:"grade_points" json:"grade_points"`
	AttendancePercentage float64          `db:"attendance_percentage" json:"attendance_percentage"`
	Active               bool             `db:"active" json:"active"`
}

// ApplyGrade sets the letter grade and recomputes the derived grade points.
func (e *Enrollment) ApplyGrade(grade LetterGrade) {
	e.Grade = grade
	e.GradePoints = GradePoints(grade)
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName       string `db:"student_name" json:"student_name"`
	StudentRollNumber string `db:"student_roll_number" json:"student_roll_number"`
	CourseCode        string `db:"course_code" json:"course_code"`
	CourseTitle       string `db:"course_title" json:"course_title"`
	CourseCredits     int    `db:"course_credits" json:"course_credits"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Semester  int
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}

// GPASummary is the aggregate returned by the GPA endpoints.
type GPASummary struct {
	CGPA               float64 `json:"cgpa"`
	CurrentSemesterGPA float64 `json:"currentSemesterGPA"`
	Semester           int     `json:"semester"`
}

// SemesterGPA is one entry of a semester-wise GPA breakdown.
type SemesterGPA struct {
	Semester int     `json:"semester"`
	GPA      float64 `json:"gpa"`
}
