package models

import "time"

// SubmissionStatus tracks the lifecycle of one student's submission:
// submitted|late -> graded -> returned. Graded is terminal for the student;
// there is no resubmit transition.
type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionLate      SubmissionStatus = "late"
	SubmissionGraded    SubmissionStatus = "graded"
	SubmissionReturned  SubmissionStatus = "returned"
)

// Assignment is coursework owned by a course for a semester.
type Assignment struct {
	ID                     string     `db:"id" json:"id"`
	Title                  string     `db:"title" json:"title"`
	Description            string     `db:"description" json:"description"`
	CourseID               string     `db:"course_id" json:"course_id"`
	Semester               int        `db:"semester" json:"semester"`
	MaxMarks               float64    `db:"max_marks" json:"max_marks"`
	DueDate                time.Time  `db:"due_date" json:"due_date"`
	AllowLateSubmission    bool       `db:"allow_late_submission" json:"allow_late_submission"`
	LateSubmissionDeadline *time.Time `db:"late_submission_deadline" json:"late_submission_deadline,omitempty"`
	Instructions           string     `db:"instructions" json:"instructions,omitempty"`
	CreatedBy              string     `db:"created_by" json:"created_by"`
	Active                 bool       `db:"active" json:"active"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`

	Submissions []Submission `json:"submissions,omitempty"`
}

// SubmissionWindow classifies a submission instant against the assignment's
// deadlines.
type SubmissionWindow int

const (
	// WindowOnTime means the due date has not passed.
	WindowOnTime SubmissionWindow = iota
	// WindowLate means the due date passed but the late window is open.
	WindowLate
	// WindowClosed means no further submissions are accepted.
	WindowClosed
)

// WindowAt classifies the given instant against the assignment deadlines.
func (a *Assignment) WindowAt(now time.Time) SubmissionWindow {
	if !now.After(a.DueDate) {
		return WindowOnTime
	}
	if !a.AllowLateSubmission {
		return WindowClosed
	}
	if a.LateSubmissionDeadline != nil && now.After(*a.LateSubmissionDeadline) {
		return WindowClosed
	}
	return WindowLate
}

// Submission is one student's answer to an assignment. Unique per
// (assignment, student) at the storage layer.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	SubmittedAt  time.Time        `db:"submitted_at" json:"submitted_at"`
	TextContent  string           `db:"text_content" json:"text_content,omitempty"`
	Status       SubmissionStatus `db:"status" json:"status"`
	Marks        *float64         `db:"marks" json:"marks,omitempty"`
	Feedback     string           `db:"feedback" json:"feedback,omitempty"`
	GradedBy     *string          `db:"graded_by" json:"graded_by,omitempty"`
	GradedAt     *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
}

// AssignmentFilter provides filters for listing assignments.
type AssignmentFilter struct {
	CourseID  string
	CourseIDs []string
	Semester  int
}

// StudentAssignmentView decorates an assignment with the calling student's
// submission state.
type StudentAssignmentView struct {
	Assignment
	HasSubmitted     bool        `json:"has_submitted"`
	SubmissionStatus string      `json:"submission_status"`
	Submission       *Submission `json:"submission,omitempty"`
}
