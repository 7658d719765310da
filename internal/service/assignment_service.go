package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/campus-api/internal/models"
	appErrors "github.com/campushub/campus-api/pkg/errors"
)

type assignmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	FindWithSubmissions(ctx context.Context, id string) (*models.Assignment, error)
	List(ctx context.Context, filter models.AssignmentFilter, dueAscending bool) ([]models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	Deactivate(ctx context.Context, id string) error
	FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	FindSubmissionByID(ctx context.Context, assignmentID, submissionID string) (*models.Submission, error)
	ListSubmissionsByStudent(ctx context.Context, studentID string, assignmentIDs []string) (map[string]models.Submission, error)
	CreateSubmission(ctx context.Context, submission *models.Submission) error
	UpdateSubmission(ctx context.Context, submission *models.Submission) error
}

type assignmentEnrollmentReader interface {
	FindActiveByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	ListActiveCourseIDs(ctx context.Context, studentID string, semester int) ([]string, error)
}

type assignmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CreateAssignmentRequest describes new coursework for a course.
type CreateAssignmentRequest struct {
	Title                  string     `json:"title" validate:"required"`
	Description            string     `json:"description" validate:"required"`
	CourseID               string     `json:"courseId" validate:"required"`
	MaxMarks               float64    `json:"maxMarks" validate:"required,gt=0"`
	DueDate                time.Time  `json:"dueDate" validate:"required"`
	AllowLateSubmission    bool       `json:"allowLateSubmission"`
	LateSubmissionDeadline *time.Time `json:"lateSubmissionDeadline"`
	Instructions           string     `json:"instructions"`
}

// UpdateAssignmentRequest carries the mutable assignment fields.
type UpdateAssignmentRequest struct {
	Title                  string     `json:"title" validate:"required"`
	Description            string     `json:"description" validate:"required"`
	MaxMarks               float64    `json:"maxMarks" validate:"required,gt=0"`
	DueDate                time.Time  `json:"dueDate" validate:"required"`
	AllowLateSubmission    bool       `json:"allowLateSubmission"`
	LateSubmissionDeadline *time.Time `json:"lateSubmissionDeadline"`
	Instructions           string     `json:"instructions"`
}

// SubmitAssignmentRequest is a student's answer to an assignment.
type SubmitAssignmentRequest struct {
	TextContent string `json:"textContent" validate:"required"`
}

// GradeSubmissionRequest awards marks and feedback on a submission.
type GradeSubmissionRequest struct {
	Marks    float64 `json:"marks" validate:"min=0"`
	Feedback string  `json:"feedback"`
}

// AssignmentService manages coursework and the submission lifecycle.
type AssignmentService struct {
	assignments assignmentRepository
	enrollments assignmentEnrollmentReader
	courses     assignmentCourseReader
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAssignmentService constructs an AssignmentService instance.
func NewAssignmentService(assignments assignmentRepository, enrollments assignmentEnrollmentReader, courses assignmentCourseReader, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: assignments,
		enrollments: enrollments,
		courses:     courses,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Create adds an assignment to a course. The late deadline, when given, must
// fall after the due date.
func (s *AssignmentService) Create(ctx context.Context, adminID string, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if req.LateSubmissionDeadline != nil && !req.LateSubmissionDeadline.After(req.DueDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "late submission deadline must be after the due date")
	}
	if req.LateSubmissionDeadline != nil && !req.AllowLateSubmission {
		return nil, appErrors.Clone(appErrors.ErrValidation, "late submission deadline requires late submissions to be allowed")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	assignment := &models.Assignment{
		Title:                  req.Title,
		Description:            req.Description,
		CourseID:               course.ID,
		Semester:               course.Semester,
		MaxMarks:               req.MaxMarks,
		DueDate:                req.DueDate,
		AllowLateSubmission:    req.AllowLateSubmission,
		LateSubmissionDeadline: req.LateSubmissionDeadline,
		Instructions:           req.Instructions,
		CreatedBy:              adminID,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.logger.Info("assignment created",
		zap.String("assignment_id", assignment.ID),
		zap.String("course_id", course.ID))
	return assignment, nil
}

// Get returns an assignment together with all submissions.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindWithSubmissions(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// List returns assignments matching the filter, newest first.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	assignments, err := s.assignments.List(ctx, filter, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Update rewrites the mutable fields of an assignment.
func (s *AssignmentService) Update(ctx context.Context, id string, req UpdateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if req.LateSubmissionDeadline != nil && !req.LateSubmissionDeadline.After(req.DueDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "late submission deadline must be after the due date")
	}

	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	assignment.Title = req.Title
	assignment.Description = req.Description
	assignment.MaxMarks = req.MaxMarks
	assignment.DueDate = req.DueDate
	assignment.AllowLateSubmission = req.AllowLateSubmission
	assignment.LateSubmissionDeadline = req.LateSubmissionDeadline
	assignment.Instructions = req.Instructions

	if err := s.assignments.Update(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	return assignment, nil
}

// Delete soft-deletes an assignment.
func (s *AssignmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.assignments.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if err := s.assignments.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

// StudentAssignments lists the assignments of the student's actively
// enrolled courses, due date ascending, each decorated with the student's
// own submission state.
func (s *AssignmentService) StudentAssignments(ctx context.Context, studentID string, semester int) ([]models.StudentAssignmentView, error) {
	courseIDs, err := s.enrollments.ListActiveCourseIDs(ctx, studentID, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled courses")
	}
	if len(courseIDs) == 0 {
		return []models.StudentAssignmentView{}, nil
	}

	assignments, err := s.assignments.List(ctx, models.AssignmentFilter{CourseIDs: courseIDs}, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	assignmentIDs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		assignmentIDs = append(assignmentIDs, a.ID)
	}
	submissions, err := s.assignments.ListSubmissionsByStudent(ctx, studentID, assignmentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}

	views := make([]models.StudentAssignmentView, 0, len(assignments))
	for _, a := range assignments {
		view := models.StudentAssignmentView{Assignment: a, SubmissionStatus: "pending"}
		if submission, ok := submissions[a.ID]; ok {
			view.HasSubmitted = true
			view.SubmissionStatus = string(submission.Status)
			view.Submission = &submission
		}
		views = append(views, view)
	}
	return views, nil
}

// Submit records the student's answer. The student must be actively enrolled
// in the owning course, may submit once, and must land inside an open
// window: on time before the due date, late until the late deadline when
// the assignment allows it.
func (s *AssignmentService) Submit(ctx context.Context, studentID, assignmentID string, req SubmitAssignmentRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "submission content is required")
	}

	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if !assignment.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}

	if _, err := s.enrollments.FindActiveByStudentAndCourse(ctx, studentID, assignment.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotEnrolled
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	if _, err := s.assignments.FindSubmission(ctx, assignmentID, studentID); err == nil {
		return nil, appErrors.ErrAlreadySubmitted
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check submission")
	}

	now := s.now().UTC()
	var status models.SubmissionStatus
	switch assignment.WindowAt(now) {
	case models.WindowOnTime:
		status = models.SubmissionSubmitted
	case models.WindowLate:
		status = models.SubmissionLate
	default:
		if assignment.AllowLateSubmission {
			return nil, appErrors.ErrLateDeadlinePassed
		}
		return nil, appErrors.ErrDeadlinePassed
	}

	submission := &models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		SubmittedAt:  now,
		TextContent:  req.TextContent,
		Status:       status,
	}
	if err := s.assignments.CreateSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit assignment")
	}

	s.logger.Info("assignment submitted",
		zap.String("assignment_id", assignmentID),
		zap.String("student_id", studentID),
		zap.String("status", string(status)))
	return submission, nil
}

// GradeSubmission awards marks and feedback. Marks are capped by the
// assignment's maximum; grading is idempotent over regrades but a returned
// submission stays returned.
func (s *AssignmentService) GradeSubmission(ctx context.Context, adminID, assignmentID, submissionID string, req GradeSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading payload")
	}

	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if req.Marks > assignment.MaxMarks {
		return nil, appErrors.ErrMarksExceedMax
	}

	submission, err := s.assignments.FindSubmissionByID(ctx, assignmentID, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	now := s.now().UTC()
	marks := req.Marks
	submission.Marks = &marks
	submission.Feedback = req.Feedback
	submission.GradedBy = &adminID
	submission.GradedAt = &now
	if submission.Status != models.SubmissionReturned {
		submission.Status = models.SubmissionGraded
	}

	if err := s.assignments.UpdateSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}
	return submission, nil
}

// ReturnSubmission releases a graded submission back to the student.
func (s *AssignmentService) ReturnSubmission(ctx context.Context, assignmentID, submissionID string) (*models.Submission, error) {
	submission, err := s.assignments.FindSubmissionByID(ctx, assignmentID, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.Status != models.SubmissionGraded {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only graded submissions can be returned")
	}

	submission.Status = models.SubmissionReturned
	if err := s.assignments.UpdateSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to return submission")
	}
	return submission, nil
}
