package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/campus-api/internal/models"
	appErrors "github.com/campushub/campus-api/pkg/errors"
)

type attendanceRepository interface {
	FindSessionByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	SessionExists(ctx context.Context, courseID string, date time.Time, sessionType models.SessionType) (bool, error)
	CreateSession(ctx context.Context, session *models.AttendanceSession) error
	ReplaceRecords(ctx context.Context, sessionID string, records []models.AttendanceRecord) error
	ListSessions(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceSession, error)
	ListStudentSessions(ctx context.Context, studentID string, filter models.AttendanceFilter) ([]models.StudentSessionView, error)
	CountSessions(ctx context.Context, studentID, courseID string, semester int) (total, present, late int, err error)
	DeactivateSession(ctx context.Context, id string) error
}

type attendanceEnrollmentRepository interface {
	FindActiveByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	UpdateAttendancePercentage(ctx context.Context, studentID, courseID string, semester int, percentage float64) error
	ListActiveCourseIDs(ctx context.Context, studentID string, semester int) ([]string, error)
}

type attendanceCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type attendanceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// SessionRecordInput is one student's entry in an attendance sheet.
type SessionRecordInput struct {
	StudentID string                  `json:"studentId" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
	Remarks   string                  `json:"remarks"`
}

// CreateSessionRequest describes a new attendance sheet for a class meeting.
type CreateSessionRequest struct {
	CourseID      string               `json:"courseId" validate:"required"`
	Date          time.Time            `json:"date" validate:"required"`
	Topic         string               `json:"topic"`
	SessionType   models.SessionType   `json:"sessionType" validate:"required"`
	DurationHours float64              `json:"durationHours" validate:"omitempty,gt=0"`
	AcademicYear  string               `json:"academicYear" validate:"required"`
	Records       []SessionRecordInput `json:"records" validate:"required,min=1,dive"`
}

// UpdateSessionRequest replaces the record list of an existing session.
type UpdateSessionRequest struct {
	Records []SessionRecordInput `json:"records" validate:"required,min=1,dive"`
}

// CourseAttendanceSummary is the per-course aggregate shown to students.
// Percentages are formatted to two decimals. Percentage counts a late
// arrival as fully attended; WeightedPercentage counts it half.
type CourseAttendanceSummary struct {
	CourseID           string `json:"course_id"`
	CourseCode         string `json:"course_code"`
	CourseTitle        string `json:"course_title"`
	TotalSessions      int    `json:"total_sessions"`
	Present            int    `json:"present"`
	Late               int    `json:"late"`
	Percentage         string `json:"percentage"`
	WeightedPercentage string `json:"weightedPercentage"`
}

// AttendanceService manages attendance sheets and the derived per-enrollment
// attendance percentage.
type AttendanceService struct {
	attendance  attendanceRepository
	enrollments attendanceEnrollmentRepository
	courses     attendanceCourseReader
	students    attendanceStudentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs an AttendanceService instance.
func NewAttendanceService(attendance attendanceRepository, enrollments attendanceEnrollmentRepository, courses attendanceCourseReader, students attendanceStudentReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{attendance: attendance, enrollments: enrollments, courses: courses, students: students, validator: validate, logger: logger}
}

// CreateSession records an attendance sheet. One sheet per (course, date,
// session type); every listed student must hold an active enrollment in the
// course, and a student may appear at most once.
func (s *AttendanceService) CreateSession(ctx context.Context, adminID string, req CreateSessionRequest) (*models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.SessionType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown session type")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	date := normalizeDate(req.Date)
	exists, err := s.attendance.SessionExists(ctx, course.ID, date, req.SessionType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance session")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already marked for this date and session type")
	}

	records, err := s.buildRecords(ctx, course.ID, req.Records)
	if err != nil {
		return nil, err
	}

	duration := req.DurationHours
	if duration == 0 {
		duration = 1
	}

	session := &models.AttendanceSession{
		CourseID:      course.ID,
		Semester:      course.Semester,
		AcademicYear:  req.AcademicYear,
		Date:          date,
		Topic:         req.Topic,
		SessionType:   req.SessionType,
		DurationHours: duration,
		MarkedBy:      adminID,
		Records:       records,
	}
	if err := s.attendance.CreateSession(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	s.refreshPercentages(ctx, course.ID, course.Semester, studentIDsOf(records))
	s.logger.Info("attendance session recorded",
		zap.String("session_id", session.ID),
		zap.String("course_id", course.ID),
		zap.Int("records", len(records)))
	return session, nil
}

// UpdateSession replaces the record list of a session, then refreshes the
// derived percentages for every student touched before or after the edit.
func (s *AttendanceService) UpdateSession(ctx context.Context, sessionID string, req UpdateSessionRequest) (*models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	records, err := s.buildRecords(ctx, session.CourseID, req.Records)
	if err != nil {
		return nil, err
	}
	if err := s.attendance.ReplaceRecords(ctx, sessionID, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}

	affected := studentIDsOf(session.Records)
	affected = append(affected, studentIDsOf(records)...)
	s.refreshPercentages(ctx, session.CourseID, session.Semester, affected)

	session.Records = records
	return session, nil
}

// GetSession returns a session with its records.
func (s *AttendanceService) GetSession(ctx context.Context, id string) (*models.AttendanceSession, error) {
	session, err := s.attendance.FindSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance session")
	}
	return session, nil
}

// ListSessions returns sessions matching the filter, newest first.
func (s *AttendanceService) ListSessions(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceSession, error) {
	sessions, err := s.attendance.ListSessions(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance sessions")
	}
	return sessions, nil
}

// StudentSessions returns the student's own view of sessions they appear in.
func (s *AttendanceService) StudentSessions(ctx context.Context, studentID string, filter models.AttendanceFilter) ([]models.StudentSessionView, error) {
	views, err := s.attendance.ListStudentSessions(ctx, studentID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return views, nil
}

// StudentSummary aggregates attendance per actively-enrolled course for one
// student, optionally scoped to a semester or a single course.
func (s *AttendanceService) StudentSummary(ctx context.Context, studentID string, semester int, courseID string) ([]CourseAttendanceSummary, error) {
	var courseIDs []string
	if courseID != "" {
		courseIDs = []string{courseID}
	} else {
		ids, err := s.enrollments.ListActiveCourseIDs(ctx, studentID, semester)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled courses")
		}
		courseIDs = ids
	}

	summaries := make([]CourseAttendanceSummary, 0, len(courseIDs))
	for _, id := range courseIDs {
		course, err := s.courses.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}

		total, present, late, err := s.attendance.CountSessions(ctx, studentID, id, course.Semester)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
		}

		summaries = append(summaries, CourseAttendanceSummary{
			CourseID:           id,
			CourseCode:         course.Code,
			CourseTitle:        course.Title,
			TotalSessions:      total,
			Present:            present,
			Late:               late,
			Percentage:         fmt.Sprintf("%.2f", attendancePercentage(total, present, late)),
			WeightedPercentage: fmt.Sprintf("%.2f", weightedAttendancePercentage(total, present, late)),
		})
	}
	return summaries, nil
}

// CourseStats summarises every student's standing within a course for one
// semester, sorted by percentage descending.
func (s *AttendanceService) CourseStats(ctx context.Context, courseID string, semester int) ([]models.AttendanceStatsRow, error) {
	sessions, err := s.attendance.ListSessions(ctx, models.AttendanceFilter{CourseID: courseID, Semester: semester})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance sessions")
	}

	type tally struct{ total, present, late int }
	tallies := make(map[string]*tally)
	for _, session := range sessions {
		for _, record := range session.Records {
			t := tallies[record.StudentID]
			if t == nil {
				t = &tally{}
				tallies[record.StudentID] = t
			}
			t.total++
			switch record.Status {
			case models.AttendancePresent:
				t.present++
			case models.AttendanceLate:
				t.late++
			}
		}
	}

	rows := make([]models.AttendanceStatsRow, 0, len(tallies))
	for studentID, t := range tallies {
		row := models.AttendanceStatsRow{
			StudentID:  studentID,
			Percentage: attendancePercentage(t.total, t.present, t.late),
		}
		if student, err := s.students.FindByID(ctx, studentID); err == nil {
			row.StudentName = student.Name
			row.RollNumber = student.RollNumber
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Percentage != rows[j].Percentage {
			return rows[i].Percentage > rows[j].Percentage
		}
		return rows[i].RollNumber < rows[j].RollNumber
	})
	return rows, nil
}

// DeleteSession soft-deletes a session and refreshes the derived percentages
// of every student it covered.
func (s *AttendanceService) DeleteSession(ctx context.Context, id string) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if err := s.attendance.DeactivateSession(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance session")
	}

	s.refreshPercentages(ctx, session.CourseID, session.Semester, studentIDsOf(session.Records))
	s.logger.Info("attendance session deactivated", zap.String("session_id", id))
	return nil
}

func (s *AttendanceService) buildRecords(ctx context.Context, courseID string, inputs []SessionRecordInput) ([]models.AttendanceRecord, error) {
	records := make([]models.AttendanceRecord, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for _, input := range inputs {
		if !input.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance status %q", input.Status))
		}
		if seen[input.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s appears more than once", input.StudentID))
		}
		seen[input.StudentID] = true

		if _, err := s.enrollments.FindActiveByStudentAndCourse(ctx, input.StudentID, courseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not actively enrolled in this course", input.StudentID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}

		records = append(records, models.AttendanceRecord{
			StudentID: input.StudentID,
			Status:    input.Status,
			Remarks:   input.Remarks,
		})
	}
	return records, nil
}

// refreshPercentages recomputes and writes back the attendance percentage on
// each affected enrollment. Failures are logged, not surfaced: the sheet is
// the source of truth and the aggregate converges on the next write.
func (s *AttendanceService) refreshPercentages(ctx context.Context, courseID string, semester int, studentIDs []string) {
	done := make(map[string]bool, len(studentIDs))
	for _, studentID := range studentIDs {
		if done[studentID] {
			continue
		}
		done[studentID] = true

		total, present, late, err := s.attendance.CountSessions(ctx, studentID, courseID, semester)
		if err != nil {
			s.logger.Warn("failed to aggregate attendance", zap.String("student_id", studentID), zap.Error(err))
			continue
		}
		percentage := attendancePercentage(total, present, late)
		if err := s.enrollments.UpdateAttendancePercentage(ctx, studentID, courseID, semester, percentage); err != nil {
			s.logger.Warn("failed to write attendance percentage", zap.String("student_id", studentID), zap.Error(err))
		}
	}
}

func studentIDsOf(records []models.AttendanceRecord) []string {
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.StudentID)
	}
	return ids
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
