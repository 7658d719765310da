package models

import "time"

// AttendanceStatus represents the status for a per-student session record.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	default:
		return false
	}
}

// SessionType classifies a class meeting.
type SessionType string

const (
	SessionLecture  SessionType = "lecture"
	SessionLab      SessionType = "lab"
	SessionTutorial SessionType = "tutorial"
	SessionSeminar  SessionType = "seminar"
)

// Valid returns true when the session type is a supported value.
func (s SessionType) Valid() bool {
	switch s {
	case SessionLecture, SessionLab, SessionTutorial, SessionSeminar:
		return true
	default:
		return false
	}
}

// AttendanceSession is one recorded class meeting for a course. At most one
// sheet exists per (course, date, session type).
type AttendanceSession struct {
	ID            string      `db:"id" json:"id"`
	CourseID      string      `db:"course_id" json:"course_id"`
	Semester      int         `db:"semester" json:"semester"`
	AcademicYear  string      `db:"academic_year" json:"academic_year"`
	Date          time.Time   `db:"date" json:"date"`
	Topic         string      `db:"topic" json:"topic"`
	SessionType   SessionType `db:"session_type" json:"session_type"`
	DurationHours float64     `db:"duration_hours" json:"duration_hours"`
	MarkedBy      string      `db:"marked_by" json:"marked_by"`
	Active        bool        `db:"active" json:"active"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`

	Records []AttendanceRecord `json:"records,omitempty"`
}

// AttendanceRecord is one student's presence entry within a session. Unique
// per (session, student) at the storage layer.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"session_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Remarks   string           `db:"remarks" json:"remarks,omitempty"`
}

// StudentSessionView is a session flattened to a single student's record,
// as shown in the student portal.
type StudentSessionView struct {
	SessionID   string           `db:"session_id" json:"session_id"`
	CourseID    string           `db:"course_id" json:"course_id"`
	CourseCode  string           `db:"course_code" json:"course_code"`
	CourseTitle string           `db:"course_title" json:"course_title"`
	Date        time.Time        `db:"date" json:"date"`
	Topic       string           `db:"topic" json:"topic"`
	SessionType SessionType      `db:"session_type" json:"session_type"`
	Status      AttendanceStatus `db:"status" json:"status"`
	Remarks     string           `db:"remarks" json:"remarks,omitempty"`
}

// AttendanceFilter provides filters for listing sessions.
type AttendanceFilter struct {
	CourseID  string
	Semester  int
	StudentID string
	DateFrom  *time.Time
	DateTo    *time.Time
}

// AttendanceStatsRow summarises one student's standing within a course.
type AttendanceStatsRow struct {
	StudentID   string  `db:"student_id" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
	RollNumber  string  `db:"roll_number" json:"roll_number"`
	Percentage  float64 `json:"attendance_percentage"`
}
