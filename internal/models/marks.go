package models

import "time"

// ExamType identifies the assessment a marks record belongs to.
type ExamType string

const (
	ExamInternal1  ExamType = "internal1"
	ExamInternal2  ExamType = "internal2"
	ExamInternal3  ExamType = "internal3"
	ExamAssignment ExamType = "assignment"
	ExamProject    ExamType = "project"
	ExamFinal      ExamType = "final"
	ExamPractical  ExamType = "practical"
)

// Valid returns true when the exam type is a supported value.
func (e ExamType) Valid() bool {
	switch e {
	case ExamInternal1, ExamInternal2, ExamInternal3, ExamAssignment, ExamProject, ExamFinal, ExamPractical:
		return true
	default:
		return false
	}
}

// Marks is one exam result for a student in a course. Percentage and Grade
// are derived from MaxMarks/MarksObtained immediately before every write and
// never drift from the stored marks. Unique per (student, course, semester,
// exam type); re-entry is rejected rather than overwritten.
type Marks struct {
	ID            string      `db:"id" json:"id"`
	StudentID     string      `db:"student_id" json:"student_id"`
	CourseID      string      `db:"course_id" json:"course_id"`
	Semester      int         `db:"semester" json:"semester"`
	AcademicYear  string      `db:"academic_year" json:"academic_year"`
	ExamType      ExamType    `db:"exam_type" json:"exam_type"`
	MaxMarks      float64     `db:"max_marks" json:"max_marks"`
	MarksObtained float64     `db:"marks_obtained" json:"marks_obtained"`
	Percentage    float64     `db:"percentage" json:"percentage"`
	Grade         LetterGrade `db:"grade" json:"grade"`
	Remarks       string      `db:"remarks" json:"remarks,omitempty"`
	EnteredBy     string      `db:"entered_by" json:"entered_by"`
	Active        bool        `db:"active" json:"active"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// MarksDetail enriches Marks with student and course info.
type MarksDetail struct {
	Marks
	StudentName       string `db:"student_name" json:"student_name"`
	StudentRollNumber string `db:"student_roll_number" json:"student_roll_number"`
	CourseCode        string `db:"course_code" json:"course_code"`
	CourseTitle       string `db:"course_title" json:"course_title"`
}

// MarksFilter provides filters for listing marks.
type MarksFilter struct {
	StudentID string
	CourseID  string
	Semester  int
	ExamType  ExamType
}

// GradeCardCourse is one course row on a semester grade card.
type GradeCardCourse struct {
	Course     Course            `json:"course"`
	Enrollment GradeCardStanding `json:"enrollment"`
	Marks      []Marks           `json:"marks"`
}

// GradeCardStanding is the enrollment summary embedded in a grade card row.
type GradeCardStanding struct {
	Grade                LetterGrade      `json:"grade"`
	GradePoints          float64          `json:"grade_points"`
	AttendancePercentage float64          `json:"attendance_percentage"`
	Status               EnrollmentStatus `json:"status"`
}

// GradeCard is the full per-semester report for a student.
type GradeCard struct {
	StudentName string            `json:"student_name"`
	RollNumber  string            `json:"roll_number"`
	Department  string            `json:"department"`
	Semester    int               `json:"semester"`
	Courses     []GradeCardCourse `json:"grade_card"`
	SemesterGPA float64           `json:"semesterGPA"`
	CGPA        float64           `json:"cgpa"`
}
