package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/campus-api/internal/models"
	appErrors "github.com/campushub/campus-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Exists(ctx context.Context, studentID, courseID string, semester int) (bool, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	ListForGPA(ctx context.Context, studentID string, semester int, exact bool) ([]models.EnrollmentDetail, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
}

type enrollmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// EnrollRequest describes an enrollment into a course. StudentID is only
// honored for admin callers enrolling on a student's behalf.
type EnrollRequest struct {
	CourseID     string `json:"courseId" validate:"required"`
	AcademicYear string `json:"academicYear" validate:"required"`
	StudentID    string `json:"studentId" validate:"omitempty"`
}

// UpdateEnrollmentRequest carries the admin-editable enrollment fields.
// An empty field leaves the current value untouched.
type UpdateEnrollmentRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"omitempty"`
	Grade  models.LetterGrade      `json:"grade" validate:"omitempty"`
}

// EnrollmentService manages enrollment lifecycle and GPA aggregation.
type EnrollmentService struct {
	enrollments enrollmentRepository
	courses     enrollmentCourseReader
	students    enrollmentStudentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService instance.
func NewEnrollmentService(enrollments enrollmentRepository, courses enrollmentCourseReader, students enrollmentStudentReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{enrollments: enrollments, courses: courses, students: students, validator: validate, logger: logger}
}

// Enroll enrolls a student into a course for the course's semester. Students
// enroll themselves; admins enroll on behalf by naming the student in the
// request. The (student, course, semester) triple must be unused, including
// dropped enrollments; the unique index is the final arbiter under concurrency.
func (s *EnrollmentService) Enroll(ctx context.Context, actor *models.JWTClaims, req EnrollRequest) (*models.Enrollment, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing authentication context")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	studentID := actor.UserID
	if actor.Role.IsAdmin() {
		if req.StudentID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required when enrolling on behalf of a student")
		}
		student, err := s.students.FindByID(ctx, req.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		studentID = student.ID
	} else if req.StudentID != "" && req.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only enroll themselves")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course is no longer offered")
	}

	taken, err := s.enrollments.Exists(ctx, studentID, course.ID, course.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if taken {
		return nil, appErrors.ErrDuplicateEnrollment
	}

	enrollment := &models.Enrollment{
		StudentID:    studentID,
		CourseID:     course.ID,
		Semester:     course.Semester,
		AcademicYear: req.AcademicYear,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
	}

	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", studentID),
		zap.String("course_id", course.ID))
	return enrollment, nil
}

// Drop soft-deletes an enrollment: status becomes dropped, the active flag is
// cleared and a W grade is applied. The owning student or any admin may drop,
// and only while the enrollment is active.
func (s *EnrollmentService) Drop(ctx context.Context, actor *models.JWTClaims, enrollmentID string) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "missing authentication context")
	}
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !actor.Role.IsAdmin() && enrollment.StudentID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return appErrors.Clone(appErrors.ErrValidation, "only active enrollments can be dropped")
	}

	enrollment.Status = models.EnrollmentStatusDropped
	enrollment.Active = false
	enrollment.ApplyGrade(models.GradeW)
	if err := s.enrollments.Update(ctx, enrollment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}

	s.logger.Info("enrollment dropped",
		zap.String("enrollment_id", enrollmentID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("dropped_by", actor.UserID))
	return nil
}

// Get returns one enrollment with student and course context.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// List returns enrollments matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// ListForStudent returns a student's own enrollments.
func (s *EnrollmentService) ListForStudent(ctx context.Context, studentID string, semester int) ([]models.EnrollmentDetail, error) {
	return s.List(ctx, models.EnrollmentFilter{StudentID: studentID, Semester: semester})
}

// Update applies admin edits to status and grade. Setting a grade recomputes
// the stored grade points; completing an ungraded enrollment is rejected so
// the GPA pool never holds a completed row without points.
func (s *EnrollmentService) Update(ctx context.Context, id string, req UpdateEnrollmentRequest) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if req.Status != "" {
		if !req.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
		}
		enrollment.Status = req.Status
	}
	if req.Grade != "" {
		if models.GradePoints(req.Grade) == 0 && req.Grade != models.GradeF && req.Grade != models.GradeI && req.Grade != models.GradeW {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown letter grade")
		}
		enrollment.ApplyGrade(req.Grade)
	}
	if enrollment.Status == models.EnrollmentStatusCompleted && enrollment.Grade == models.GradeNone {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a grade is required to complete an enrollment")
	}

	if err := s.enrollments.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	return enrollment, nil
}

// GPASummary computes the student's CGPA up to and including uptoSemester and
// the GPA of that semester alone. uptoSemester defaults to the student's
// current semester when not supplied.
func (s *EnrollmentService) GPASummary(ctx context.Context, studentID string, uptoSemester int) (*models.GPASummary, error) {
	if uptoSemester <= 0 {
		student, err := s.students.FindByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		uptoSemester = student.Semester
	}

	pool, err := s.enrollments.ListForGPA(ctx, studentID, uptoSemester, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load gpa enrollments")
	}

	current := make([]models.EnrollmentDetail, 0, len(pool))
	for _, e := range pool {
		if e.Semester == uptoSemester {
			current = append(current, e)
		}
	}

	return &models.GPASummary{
		CGPA:               creditWeightedGPA(pool),
		CurrentSemesterGPA: creditWeightedGPA(current),
		Semester:           uptoSemester,
	}, nil
}

// SemesterWiseGPA returns one GPA per semester the student has qualifying
// enrollments in, ascending by semester.
func (s *EnrollmentService) SemesterWiseGPA(ctx context.Context, studentID string) ([]models.SemesterGPA, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	pool, err := s.enrollments.ListForGPA(ctx, studentID, student.Semester, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load gpa enrollments")
	}

	bySemester := make(map[int][]models.EnrollmentDetail)
	for _, e := range pool {
		bySemester[e.Semester] = append(bySemester[e.Semester], e)
	}

	result := make([]models.SemesterGPA, 0, len(bySemester))
	for semester := 1; semester <= student.Semester; semester++ {
		entries, ok := bySemester[semester]
		if !ok {
			continue
		}
		result = append(result, models.SemesterGPA{Semester: semester, GPA: creditWeightedGPA(entries)})
	}
	return result, nil
}
