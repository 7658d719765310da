package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campus-api/internal/models"
	appErrors "github.com/campushub/campus-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	sessions map[string]*models.AttendanceSession
	counts   map[string][3]int // keyed studentID|courseID -> total, present, late
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{
		sessions: make(map[string]*models.AttendanceSession),
		counts:   make(map[string][3]int),
	}
}

func (f *fakeAttendanceRepo) FindSessionByID(_ context.Context, id string) (*models.AttendanceSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	// Return a detached copy, like a real repository would; otherwise
	// ReplaceRecords mutates the caller's view of the session in place.
	clone := *session
	return &clone, nil
}

func (f *fakeAttendanceRepo) SessionExists(_ context.Context, courseID string, date time.Time, sessionType models.SessionType) (bool, error) {
	for _, s := range f.sessions {
		if s.CourseID == courseID && s.Date.Equal(date) && s.SessionType == sessionType {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAttendanceRepo) CreateSession(_ context.Context, session *models.AttendanceSession) error {
	session.ID = fmt.Sprintf("session-%d", len(f.sessions)+1)
	session.Active = true
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeAttendanceRepo) ReplaceRecords(_ context.Context, sessionID string, records []models.AttendanceRecord) error {
	if session, ok := f.sessions[sessionID]; ok {
		session.Records = records
	}
	return nil
}

func (f *fakeAttendanceRepo) ListSessions(_ context.Context, filter models.AttendanceFilter) ([]models.AttendanceSession, error) {
	result := make([]models.AttendanceSession, 0, len(f.sessions))
	for _, s := range f.sessions {
		if filter.CourseID != "" && s.CourseID != filter.CourseID {
			continue
		}
		result = append(result, *s)
	}
	return result, nil
}

func (f *fakeAttendanceRepo) ListStudentSessions(_ context.Context, _ string, _ models.AttendanceFilter) ([]models.StudentSessionView, error) {
	return nil, nil
}

func (f *fakeAttendanceRepo) CountSessions(_ context.Context, studentID, courseID string, _ int) (int, int, int, error) {
	c := f.counts[studentID+"|"+courseID]
	return c[0], c[1], c[2], nil
}

func (f *fakeAttendanceRepo) DeactivateSession(_ context.Context, id string) error {
	if s, ok := f.sessions[id]; ok {
		s.Active = false
	}
	return nil
}

type fakeAttendanceEnrollments struct {
	active      map[string]*models.Enrollment // keyed studentID|courseID
	courseIDs   []string
	percentages map[string]float64 // keyed studentID|courseID
}

func newFakeAttendanceEnrollments() *fakeAttendanceEnrollments {
	return &fakeAttendanceEnrollments{
		active:      make(map[string]*models.Enrollment),
		percentages: make(map[string]float64),
	}
}

func (f *fakeAttendanceEnrollments) FindActiveByStudentAndCourse(_ context.Context, studentID, courseID string) (*models.Enrollment, error) {
	enrollment, ok := f.active[studentID+"|"+courseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return enrollment, nil
}

func (f *fakeAttendanceEnrollments) UpdateAttendancePercentage(_ context.Context, studentID, courseID string, _ int, percentage float64) error {
	f.percentages[studentID+"|"+courseID] = percentage
	return nil
}

func (f *fakeAttendanceEnrollments) ListActiveCourseIDs(_ context.Context, _ string, _ int) ([]string, error) {
	return f.courseIDs, nil
}

func newAttendanceService(repo *fakeAttendanceRepo, enrollments *fakeAttendanceEnrollments, students *fakeStudentReader) *AttendanceService {
	if enrollments == nil {
		enrollments = newFakeAttendanceEnrollments()
		enrollments.active["student-1|course-1"] = &models.Enrollment{ID: "enrollment-1"}
	}
	if students == nil {
		students = &fakeStudentReader{students: make(map[string]*models.Student)}
	}
	courses := &fakeCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", Code: "CS201", Title: "Data Structures", Semester: 3, Active: true},
	}}
	return NewAttendanceService(repo, enrollments, courses, students, nil, nil)
}

func sessionRequest() CreateSessionRequest {
	return CreateSessionRequest{
		CourseID:     "course-1",
		Date:         time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
		Topic:        "AVL rotations",
		SessionType:  models.SessionLecture,
		AcademicYear: "2026-27",
		Records: []SessionRecordInput{
			{StudentID: "student-1", Status: models.AttendancePresent},
		},
	}
}

func TestCreateSession(t *testing.T) {
	repo := newFakeAttendanceRepo()
	repo.counts["student-1|course-1"] = [3]int{1, 1, 0}
	enrollments := newFakeAttendanceEnrollments()
	enrollments.active["student-1|course-1"] = &models.Enrollment{ID: "enrollment-1"}
	svc := newAttendanceService(repo, enrollments, nil)

	session, err := svc.CreateSession(context.Background(), "admin-1", sessionRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, session.Semester)
	assert.Equal(t, "admin-1", session.MarkedBy)
	assert.Equal(t, 1.0, session.DurationHours)
	// The timestamp is normalized to a UTC date.
	assert.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), session.Date)
	// The derived percentage was written back to the enrollment.
	assert.Equal(t, 100.0, enrollments.percentages["student-1|course-1"])
}

func TestCreateSessionDuplicateSheet(t *testing.T) {
	repo := newFakeAttendanceRepo()
	svc := newAttendanceService(repo, nil, nil)

	_, err := svc.CreateSession(context.Background(), "admin-1", sessionRequest())
	require.NoError(t, err)

	// Same date at a different hour still collides with the existing sheet.
	req := sessionRequest()
	req.Date = req.Date.Add(5 * time.Hour)
	_, err = svc.CreateSession(context.Background(), "admin-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCreateSessionNotEnrolledStudent(t *testing.T) {
	repo := newFakeAttendanceRepo()
	enrollments := newFakeAttendanceEnrollments()
	svc := newAttendanceService(repo, enrollments, nil)

	_, err := svc.CreateSession(context.Background(), "admin-1", sessionRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateSessionDuplicateStudent(t *testing.T) {
	repo := newFakeAttendanceRepo()
	svc := newAttendanceService(repo, nil, nil)

	req := sessionRequest()
	req.Records = append(req.Records, SessionRecordInput{StudentID: "student-1", Status: models.AttendanceLate})
	_, err := svc.CreateSession(context.Background(), "admin-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateSessionRefreshesAllTouchedStudents(t *testing.T) {
	repo := newFakeAttendanceRepo()
	repo.sessions["session-1"] = &models.AttendanceSession{
		ID: "session-1", CourseID: "course-1", Semester: 3, Active: true,
		Records: []models.AttendanceRecord{{StudentID: "student-1", Status: models.AttendancePresent}},
	}
	repo.counts["student-2|course-1"] = [3]int{2, 1, 1}
	enrollments := newFakeAttendanceEnrollments()
	enrollments.active["student-1|course-1"] = &models.Enrollment{ID: "enrollment-1"}
	enrollments.active["student-2|course-1"] = &models.Enrollment{ID: "enrollment-2"}
	svc := newAttendanceService(repo, enrollments, nil)

	session, err := svc.UpdateSession(context.Background(), "session-1", UpdateSessionRequest{
		Records: []SessionRecordInput{{StudentID: "student-2", Status: models.AttendanceLate}},
	})
	require.NoError(t, err)
	require.Len(t, session.Records, 1)
	assert.Equal(t, "student-2", session.Records[0].StudentID)

	// Both the removed and the added student were recomputed.
	assert.Contains(t, enrollments.percentages, "student-1|course-1")
	assert.Equal(t, 100.0, enrollments.percentages["student-2|course-1"])
}

func TestStudentSummaryFormatsPercentages(t *testing.T) {
	repo := newFakeAttendanceRepo()
	// 4 sessions: present, present, late, absent.
	repo.counts["student-1|course-1"] = [3]int{4, 2, 1}
	enrollments := newFakeAttendanceEnrollments()
	enrollments.courseIDs = []string{"course-1"}
	svc := newAttendanceService(repo, enrollments, nil)

	summaries, err := svc.StudentSummary(context.Background(), "student-1", 3, "")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "CS201", summaries[0].CourseCode)
	assert.Equal(t, 4, summaries[0].TotalSessions)
	assert.Equal(t, "75.00", summaries[0].Percentage)
	assert.Equal(t, "62.50", summaries[0].WeightedPercentage)
}

func TestCourseStatsSorting(t *testing.T) {
	repo := newFakeAttendanceRepo()
	repo.sessions["session-1"] = &models.AttendanceSession{
		ID: "session-1", CourseID: "course-1", Semester: 3, Active: true,
		Records: []models.AttendanceRecord{
			{StudentID: "student-1", Status: models.AttendancePresent},
			{StudentID: "student-2", Status: models.AttendanceAbsent},
			{StudentID: "student-3", Status: models.AttendancePresent},
		},
	}
	students := &fakeStudentReader{students: map[string]*models.Student{
		"student-1": {ID: "student-1", Name: "Asha Rao", RollNumber: "CS2026-014"},
		"student-3": {ID: "student-3", Name: "Vikram Iyer", RollNumber: "CS2026-002"},
	}}
	svc := newAttendanceService(repo, nil, students)

	rows, err := svc.CourseStats(context.Background(), "course-1", 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// Ties on percentage break by roll number ascending.
	assert.Equal(t, "student-3", rows[0].StudentID)
	assert.Equal(t, "student-1", rows[1].StudentID)
	assert.Equal(t, 100.0, rows[0].Percentage)
	assert.Equal(t, "student-2", rows[2].StudentID)
	assert.Equal(t, 0.0, rows[2].Percentage)
}

func TestDeleteSessionRefreshesPercentages(t *testing.T) {
	repo := newFakeAttendanceRepo()
	repo.sessions["session-1"] = &models.AttendanceSession{
		ID: "session-1", CourseID: "course-1", Semester: 3, Active: true,
		Records: []models.AttendanceRecord{{StudentID: "student-1", Status: models.AttendancePresent}},
	}
	enrollments := newFakeAttendanceEnrollments()
	enrollments.active["student-1|course-1"] = &models.Enrollment{ID: "enrollment-1"}
	svc := newAttendanceService(repo, enrollments, nil)

	require.NoError(t, svc.DeleteSession(context.Background(), "session-1"))
	assert.False(t, repo.sessions["session-1"].Active)
	assert.Contains(t, enrollments.percentages, "student-1|course-1")
}
