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

type fakeAssignmentRepo struct {
	assignments map[string]*models.Assignment
	submissions map[string]*models.Submission // keyed assignmentID|studentID
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{
		assignments: make(map[string]*models.Assignment),
		submissions: make(map[string]*models.Submission),
	}
}

func (f *fakeAssignmentRepo) FindByID(_ context.Context, id string) (*models.Assignment, error) {
	assignment, ok := f.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return assignment, nil
}

func (f *fakeAssignmentRepo) FindWithSubmissions(ctx context.Context, id string) (*models.Assignment, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeAssignmentRepo) List(_ context.Context, filter models.AssignmentFilter, _ bool) ([]models.Assignment, error) {
	result := make([]models.Assignment, 0, len(f.assignments))
	for _, a := range f.assignments {
		for _, courseID := range filter.CourseIDs {
			if a.CourseID == courseID {
				result = append(result, *a)
			}
		}
	}
	return result, nil
}

func (f *fakeAssignmentRepo) Create(_ context.Context, assignment *models.Assignment) error {
	assignment.ID = fmt.Sprintf("assignment-%d", len(f.assignments)+1)
	assignment.Active = true
	f.assignments[assignment.ID] = assignment
	return nil
}

func (f *fakeAssignmentRepo) Update(_ context.Context, assignment *models.Assignment) error {
	f.assignments[assignment.ID] = assignment
	return nil
}

func (f *fakeAssignmentRepo) Deactivate(_ context.Context, id string) error {
	if a, ok := f.assignments[id]; ok {
		a.Active = false
	}
	return nil
}

func (f *fakeAssignmentRepo) FindSubmission(_ context.Context, assignmentID, studentID string) (*models.Submission, error) {
	submission, ok := f.submissions[assignmentID+"|"+studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return submission, nil
}

func (f *fakeAssignmentRepo) FindSubmissionByID(_ context.Context, assignmentID, submissionID string) (*models.Submission, error) {
	for _, s := range f.submissions {
		if s.AssignmentID == assignmentID && s.ID == submissionID {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAssignmentRepo) ListSubmissionsByStudent(_ context.Context, studentID string, assignmentIDs []string) (map[string]models.Submission, error) {
	result := make(map[string]models.Submission)
	for _, assignmentID := range assignmentIDs {
		if s, ok := f.submissions[assignmentID+"|"+studentID]; ok {
			result[assignmentID] = *s
		}
	}
	return result, nil
}

func (f *fakeAssignmentRepo) CreateSubmission(_ context.Context, submission *models.Submission) error {
	submission.ID = fmt.Sprintf("submission-%d", len(f.submissions)+1)
	f.submissions[submission.AssignmentID+"|"+submission.StudentID] = submission
	return nil
}

func (f *fakeAssignmentRepo) UpdateSubmission(_ context.Context, submission *models.Submission) error {
	f.submissions[submission.AssignmentID+"|"+submission.StudentID] = submission
	return nil
}

type fakeAssignmentEnrollments struct {
	active    map[string]*models.Enrollment // keyed studentID|courseID
	courseIDs []string
}

func (f *fakeAssignmentEnrollments) FindActiveByStudentAndCourse(_ context.Context, studentID, courseID string) (*models.Enrollment, error) {
	enrollment, ok := f.active[studentID+"|"+courseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return enrollment, nil
}

func (f *fakeAssignmentEnrollments) ListActiveCourseIDs(_ context.Context, _ string, _ int) ([]string, error) {
	return f.courseIDs, nil
}

var assignmentDueDate = time.Date(2026, 9, 15, 23, 59, 0, 0, time.UTC)

func newAssignmentService(repo *fakeAssignmentRepo, enrollments *fakeAssignmentEnrollments, at time.Time) *AssignmentService {
	if enrollments == nil {
		enrollments = &fakeAssignmentEnrollments{active: map[string]*models.Enrollment{
			"student-1|course-1": {ID: "enrollment-1", StudentID: "student-1", CourseID: "course-1"},
		}}
	}
	courses := &fakeCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", Semester: 3, Active: true},
	}}
	svc := NewAssignmentService(repo, enrollments, courses, nil, nil)
	svc.now = func() time.Time { return at }
	return svc
}

func seedAssignment(repo *fakeAssignmentRepo, allowLate bool, lateDeadline *time.Time) *models.Assignment {
	assignment := &models.Assignment{
		ID:                     "assignment-1",
		Title:                  "Worksheet 3",
		CourseID:               "course-1",
		Semester:               3,
		MaxMarks:               20,
		DueDate:                assignmentDueDate,
		AllowLateSubmission:    allowLate,
		LateSubmissionDeadline: lateDeadline,
		Active:                 true,
	}
	repo.assignments[assignment.ID] = assignment
	return assignment
}

func TestSubmitOnTime(t *testing.T) {
	repo := newFakeAssignmentRepo()
	seedAssignment(repo, false, nil)
	// Exactly at the due date still counts as on time.
	svc := newAssignmentService(repo, nil, assignmentDueDate)

	submission, err := svc.Submit(context.Background(), "student-1", "assignment-1", SubmitAssignmentRequest{TextContent: "answers"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSubmitted, submission.Status)
	assert.Equal(t, assignmentDueDate, submission.SubmittedAt)
}

func TestSubmitPastDueWithoutLateWindow(t *testing.T) {
	repo := newFakeAssignmentRepo()
	seedAssignment(repo, false, nil)
	svc := newAssignmentService(repo, nil, assignmentDueDate.Add(time.Millisecond))

	_, err := svc.Submit(context.Background(), "student-1", "assignment-1", SubmitAssignmentRequest{TextContent: "answers"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeadlinePassed.Code, appErrors.FromError(err).Code)
}

func TestSubmitInLateWindow(t *testing.T) {
	repo := newFakeAssignmentRepo()
	lateDeadline := assignmentDueDate.Add(48 * time.Hour)
	seedAssignment(repo, true, &lateDeadline)
	svc := newAssignmentService(repo, nil, assignmentDueDate.Add(time.Hour))

	submission, err := svc.Submit(context.Background(), "student-1", "assignment-1", SubmitAssignmentRequest{TextContent: "answers"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionLate, submission.Status)
}

func TestSubmitPastLateDeadline(t *testing.T) {
	repo := newFakeAssignmentRepo()
	lateDeadline := assignmentDueDate.Add(48 * time.Hour)
	seedAssignment(repo, true, &lateDeadline)
	svc := newAssignmentService(repo, nil, lateDeadline.Add(time.Minute))

	_, err := svc.Submit(context.Background(), "student-1", "assignment-1", SubmitAssignmentRequest{TextContent: "answers"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrLateDeadlinePassed.Code, appErrors.FromError(err).Code)
}

func TestSubmitTwice(t *testing.T) {
	repo := newFakeAssignmentRepo()
	seedAssignment(repo, false, nil)
	svc := newAssignmentService(repo, nil, assignmentDueDate.Add(-time.Hour))

	_, err := svc.Submit(context.Background(), "student-1", "assignment-1", SubmitAssignmentRequest{TextContent: "first"})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), "student-1", "assignment-1", SubmitAssignmentRequest{TextContent: "second"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadySubmitted.Code, appErrors.FromError(err).Code)
}

func TestSubmitNotEnrolled(t *testing.T) {
	repo := newFakeAssignmentRepo()
	seedAssignment(repo, false, nil)
	enrollments := &fakeAssignmentEnrollments{active: make(map[string]*models.Enrollment)}
	svc := newAssignmentService(repo, enrollments, assignmentDueDate.Add(-time.Hour))

	_, err := svc.Submit(context.Background(), "student-1", "assignment-1", SubmitAssignmentRequest{TextContent: "answers"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestCreateAssignmentLateDeadlineBeforeDue(t *testing.T) {
	repo := newFakeAssignmentRepo()
	svc := newAssignmentService(repo, nil, assignmentDueDate)

	lateDeadline := assignmentDueDate.Add(-time.Hour)
	_, err := svc.Create(context.Background(), "admin-1", CreateAssignmentRequest{
		Title:                  "Worksheet 3",
		Description:            "Chapters 5 and 6",
		CourseID:               "course-1",
		MaxMarks:               20,
		DueDate:                assignmentDueDate,
		AllowLateSubmission:    true,
		LateSubmissionDeadline: &lateDeadline,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeSubmission(t *testing.T) {
	repo := newFakeAssignmentRepo()
	seedAssignment(repo, false, nil)
	repo.submissions["assignment-1|student-1"] = &models.Submission{
		ID: "submission-1", AssignmentID: "assignment-1", StudentID: "student-1",
		Status: models.SubmissionSubmitted,
	}
	svc := newAssignmentService(repo, nil, assignmentDueDate)

	submission, err := svc.GradeSubmission(context.Background(), "admin-1", "assignment-1", "submission-1", GradeSubmissionRequest{
		Marks:    20,
		Feedback: "full credit",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionGraded, submission.Status)
	require.NotNil(t, submission.Marks)
	assert.Equal(t, 20.0, *submission.Marks)
	require.NotNil(t, submission.GradedBy)
	assert.Equal(t, "admin-1", *submission.GradedBy)
}

func TestGradeSubmissionExceedsMax(t *testing.T) {
	repo := newFakeAssignmentRepo()
	seedAssignment(repo, false, nil)
	repo.submissions["assignment-1|student-1"] = &models.Submission{
		ID: "submission-1", AssignmentID: "assignment-1", StudentID: "student-1",
		Status: models.SubmissionSubmitted,
	}
	svc := newAssignmentService(repo, nil, assignmentDueDate)

	_, err := svc.GradeSubmission(context.Background(), "admin-1", "assignment-1", "submission-1", GradeSubmissionRequest{Marks: 21})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMarksExceedMax.Code, appErrors.FromError(err).Code)
}

func TestReturnSubmission(t *testing.T) {
	repo := newFakeAssignmentRepo()
	seedAssignment(repo, false, nil)
	repo.submissions["assignment-1|student-1"] = &models.Submission{
		ID: "submission-1", AssignmentID: "assignment-1", StudentID: "student-1",
		Status: models.SubmissionGraded,
	}
	svc := newAssignmentService(repo, nil, assignmentDueDate)

	submission, err := svc.ReturnSubmission(context.Background(), "assignment-1", "submission-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionReturned, submission.Status)
}

func TestReturnUngradedSubmission(t *testing.T) {
	repo := newFakeAssignmentRepo()
	seedAssignment(repo, false, nil)
	repo.submissions["assignment-1|student-1"] = &models.Submission{
		ID: "submission-1", AssignmentID: "assignment-1", StudentID: "student-1",
		Status: models.SubmissionSubmitted,
	}
	svc := newAssignmentService(repo, nil, assignmentDueDate)

	_, err := svc.ReturnSubmission(context.Background(), "assignment-1", "submission-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentAssignmentsDecoration(t *testing.T) {
	repo := newFakeAssignmentRepo()
	seedAssignment(repo, false, nil)
	repo.submissions["assignment-1|student-1"] = &models.Submission{
		ID: "submission-1", AssignmentID: "assignment-1", StudentID: "student-1",
		Status: models.SubmissionLate,
	}
	enrollments := &fakeAssignmentEnrollments{courseIDs: []string{"course-1"}}
	svc := newAssignmentService(repo, enrollments, assignmentDueDate)

	views, err := svc.StudentAssignments(context.Background(), "student-1", 3)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].HasSubmitted)
	assert.Equal(t, string(models.SubmissionLate), views[0].SubmissionStatus)
	require.NotNil(t, views[0].Submission)
}

func TestStudentAssignmentsNoEnrollments(t *testing.T) {
	repo := newFakeAssignmentRepo()
	seedAssignment(repo, false, nil)
	enrollments := &fakeAssignmentEnrollments{}
	svc := newAssignmentService(repo, enrollments, assignmentDueDate)

	views, err := svc.StudentAssignments(context.Background(), "student-1", 3)
	require.NoError(t, err)
	assert.Empty(t, views)
}
