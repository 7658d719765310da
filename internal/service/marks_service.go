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

type marksRepository interface {
	FindByID(ctx context.Context, id string) (*models.Marks, error)
	Exists(ctx context.Context, studentID, courseID string, semester int, examType models.ExamType) (bool, error)
	Create(ctx context.Context, marks *models.Marks) error
	Update(ctx context.Context, marks *models.Marks) error
	List(ctx context.Context, filter models.MarksFilter) ([]models.MarksDetail, error)
	Deactivate(ctx context.Context, id string) error
}

type marksEnrollmentReader interface {
	FindActiveByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	ListForGPA(ctx context.Context, studentID string, semester int, exact bool) ([]models.EnrollmentDetail, error)
}

type marksStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type marksCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// EnterMarksRequest describes one exam result to record.
type EnterMarksRequest struct {
	StudentID     string          `json:"studentId" validate:"required"`
	CourseID      string          `json:"courseId" validate:"required"`
	Semester      int             `json:"semester" validate:"required,min=1,max=8"`
	AcademicYear  string          `json:"academicYear" validate:"required"`
	ExamType      models.ExamType `json:"examType" validate:"required"`
	MaxMarks      float64         `json:"maxMarks" validate:"required,gt=0"`
	MarksObtained float64         `json:"marksObtained" validate:"min=0"`
	Remarks       string          `json:"remarks"`
}

// UpdateMarksRequest rewrites the numeric fields of an existing record.
type UpdateMarksRequest struct {
	MaxMarks      float64 `json:"maxMarks" validate:"required,gt=0"`
	MarksObtained float64 `json:"marksObtained" validate:"min=0"`
	Remarks       string  `json:"remarks"`
}

// BulkMarksEntry is one student's row in a bulk marks upload.
type BulkMarksEntry struct {
	StudentID     string  `json:"studentId" validate:"required"`
	MarksObtained float64 `json:"marksObtained" validate:"min=0"`
	Remarks       string  `json:"remarks"`
}

// BulkEnterMarksRequest records one exam's results for many students at once.
type BulkEnterMarksRequest struct {
	CourseID     string           `json:"courseId" validate:"required"`
	Semester     int              `json:"semester" validate:"required,min=1,max=8"`
	AcademicYear string           `json:"academicYear" validate:"required"`
	ExamType     models.ExamType  `json:"examType" validate:"required"`
	MaxMarks     float64          `json:"maxMarks" validate:"required,gt=0"`
	Entries      []BulkMarksEntry `json:"entries" validate:"required,min=1,dive"`
}

// BulkMarksFailure reports one rejected row of a bulk upload.
type BulkMarksFailure struct {
	Index     int    `json:"index"`
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// BulkMarksResult is the partial-success outcome of a bulk upload.
type BulkMarksResult struct {
	Entered  []models.Marks     `json:"entered"`
	Failures []BulkMarksFailure `json:"failures"`
}

// MarksService records exam results and derives percentages, grades and
// grade cards from them.
type MarksService struct {
	marks       marksRepository
	enrollments marksEnrollmentReader
	students    marksStudentReader
	courses     marksCourseReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMarksService constructs a MarksService instance.
func NewMarksService(marks marksRepository, enrollments marksEnrollmentReader, students marksStudentReader, courses marksCourseReader, validate *validator.Validate, logger *zap.Logger) *MarksService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarksService{marks: marks, enrollments: enrollments, students: students, courses: courses, validator: validate, logger: logger}
}

// Enter records one exam result. The (student, course, semester, exam type)
// tuple must be unused; re-entry requires an explicit update instead.
func (s *MarksService) Enter(ctx context.Context, adminID string, req EnterMarksRequest) (*models.Marks, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid marks payload")
	}
	if !req.ExamType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown exam type")
	}
	if req.MarksObtained > req.MaxMarks {
		return nil, appErrors.ErrMarksExceedMax
	}

	if _, err := s.enrollments.FindActiveByStudentAndCourse(ctx, req.StudentID, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student is not actively enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	taken, err := s.marks.Exists(ctx, req.StudentID, req.CourseID, req.Semester, req.ExamType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing marks")
	}
	if taken {
		return nil, appErrors.ErrDuplicateMarks
	}

	marks := &models.Marks{
		StudentID:     req.StudentID,
		CourseID:      req.CourseID,
		Semester:      req.Semester,
		AcademicYear:  req.AcademicYear,
		ExamType:      req.ExamType,
		MaxMarks:      req.MaxMarks,
		MarksObtained: req.MarksObtained,
		Remarks:       req.Remarks,
		EnteredBy:     adminID,
	}
	deriveMarks(marks)

	if err := s.marks.Create(ctx, marks); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record marks")
	}

	s.logger.Info("marks recorded",
		zap.String("marks_id", marks.ID),
		zap.String("student_id", marks.StudentID),
		zap.String("exam_type", string(marks.ExamType)))
	return marks, nil
}

// BulkEnter records one exam's results for many students, accepting valid
// rows and reporting the rejected ones instead of failing the whole batch.
func (s *MarksService) BulkEnter(ctx context.Context, adminID string, req BulkEnterMarksRequest) (*BulkMarksResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk marks payload")
	}

	result := &BulkMarksResult{}
	for i, entry := range req.Entries {
		marks, err := s.Enter(ctx, adminID, EnterMarksRequest{
			StudentID:     entry.StudentID,
			CourseID:      req.CourseID,
			Semester:      req.Semester,
			AcademicYear:  req.AcademicYear,
			ExamType:      req.ExamType,
			MaxMarks:      req.MaxMarks,
			MarksObtained: entry.MarksObtained,
			Remarks:       entry.Remarks,
		})
		if err != nil {
			result.Failures = append(result.Failures, BulkMarksFailure{
				Index:     i,
				StudentID: entry.StudentID,
				Reason:    appErrors.FromError(err).Message,
			})
			continue
		}
		result.Entered = append(result.Entered, *marks)
	}
	return result, nil
}

// Get returns one marks record by ID.
func (s *MarksService) Get(ctx context.Context, id string) (*models.Marks, error) {
	marks, err := s.marks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "marks not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}
	return marks, nil
}

// Update rewrites the numeric fields of a record and rederives percentage
// and grade.
func (s *MarksService) Update(ctx context.Context, id string, req UpdateMarksRequest) (*models.Marks, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid marks payload")
	}
	if req.MarksObtained > req.MaxMarks {
		return nil, appErrors.ErrMarksExceedMax
	}

	marks, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	marks.MaxMarks = req.MaxMarks
	marks.MarksObtained = req.MarksObtained
	marks.Remarks = req.Remarks
	deriveMarks(marks)

	if err := s.marks.Update(ctx, marks); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update marks")
	}
	return marks, nil
}

// List returns marks matching the filter.
func (s *MarksService) List(ctx context.Context, filter models.MarksFilter) ([]models.MarksDetail, error) {
	if filter.ExamType != "" && !filter.ExamType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown exam type")
	}
	marks, err := s.marks.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}
	return marks, nil
}

// Delete soft-deletes a marks record.
func (s *MarksService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.marks.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete marks")
	}
	return nil
}

// GradeCard assembles the per-semester report for a student: every
// qualifying enrollment of the semester with its course, grade standing and
// exam results, plus the semester GPA and the CGPA up to that semester.
func (s *MarksService) GradeCard(ctx context.Context, studentID string, semester int) (*models.GradeCard, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if semester <= 0 {
		semester = student.Semester
	}

	enrollments, err := s.enrollments.ListForGPA(ctx, studentID, semester, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	allMarks, err := s.marks.List(ctx, models.MarksFilter{StudentID: studentID, Semester: semester})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}
	marksByCourse := make(map[string][]models.Marks)
	for _, m := range allMarks {
		marksByCourse[m.CourseID] = append(marksByCourse[m.CourseID], m.Marks)
	}

	courses := make([]models.GradeCardCourse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		course, err := s.courses.FindByID(ctx, enrollment.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		courses = append(courses, models.GradeCardCourse{
			Course: *course,
			Enrollment: models.GradeCardStanding{
				Grade:                enrollment.Grade,
				GradePoints:          enrollment.GradePoints,
				AttendancePercentage: enrollment.AttendancePercentage,
				Status:               enrollment.Status,
			},
			Marks: marksByCourse[enrollment.CourseID],
		})
	}

	pool, err := s.enrollments.ListForGPA(ctx, studentID, semester, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load gpa enrollments")
	}

	return &models.GradeCard{
		StudentName: student.Name,
		RollNumber:  student.RollNumber,
		Department:  student.Department,
		Semester:    semester,
		Courses:     courses,
		SemesterGPA: creditWeightedGPA(enrollments),
		CGPA:        creditWeightedGPA(pool),
	}, nil
}

// deriveMarks recomputes the stored percentage and letter grade from the raw
// marks. Always called immediately before a write.
func deriveMarks(marks *models.Marks) {
	marks.Percentage = round2(marks.MarksObtained / marks.MaxMarks * 100)
	marks.Grade = deriveGrade(marks.Percentage)
}
