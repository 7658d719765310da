package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campus-api/internal/models"
	appErrors "github.com/campushub/campus-api/pkg/errors"
)

type fakeMarksRepo struct {
	records map[string]*models.Marks
	listed  []models.MarksDetail
}

func newFakeMarksRepo() *fakeMarksRepo {
	return &fakeMarksRepo{records: make(map[string]*models.Marks)}
}

func (f *fakeMarksRepo) FindByID(_ context.Context, id string) (*models.Marks, error) {
	marks, ok := f.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return marks, nil
}

func (f *fakeMarksRepo) Exists(_ context.Context, studentID, courseID string, semester int, examType models.ExamType) (bool, error) {
	for _, m := range f.records {
		if m.StudentID == studentID && m.CourseID == courseID && m.Semester == semester && m.ExamType == examType {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMarksRepo) Create(_ context.Context, marks *models.Marks) error {
	marks.ID = fmt.Sprintf("marks-%d", len(f.records)+1)
	marks.Active = true
	f.records[marks.ID] = marks
	return nil
}

func (f *fakeMarksRepo) Update(_ context.Context, marks *models.Marks) error {
	f.records[marks.ID] = marks
	return nil
}

func (f *fakeMarksRepo) List(_ context.Context, _ models.MarksFilter) ([]models.MarksDetail, error) {
	return f.listed, nil
}

func (f *fakeMarksRepo) Deactivate(_ context.Context, id string) error {
	delete(f.records, id)
	return nil
}

type fakeMarksEnrollments struct {
	active map[string]*models.Enrollment // keyed studentID|courseID
	pool   []models.EnrollmentDetail
}

func (f *fakeMarksEnrollments) FindActiveByStudentAndCourse(_ context.Context, studentID, courseID string) (*models.Enrollment, error) {
	enrollment, ok := f.active[studentID+"|"+courseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return enrollment, nil
}

func (f *fakeMarksEnrollments) ListForGPA(_ context.Context, _ string, semester int, exact bool) ([]models.EnrollmentDetail, error) {
	result := make([]models.EnrollmentDetail, 0, len(f.pool))
	for _, e := range f.pool {
		if exact && e.Semester != semester {
			continue
		}
		if !exact && e.Semester > semester {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func newMarksService(repo *fakeMarksRepo, enrollments *fakeMarksEnrollments, students *fakeStudentReader, courses *fakeCourseReader) *MarksService {
	if enrollments == nil {
		enrollments = &fakeMarksEnrollments{active: make(map[string]*models.Enrollment)}
	}
	if students == nil {
		students = &fakeStudentReader{students: make(map[string]*models.Student)}
	}
	if courses == nil {
		courses = &fakeCourseReader{courses: make(map[string]*models.Course)}
	}
	return NewMarksService(repo, enrollments, students, courses, nil, nil)
}

func enrolledMarksService(repo *fakeMarksRepo) *MarksService {
	enrollments := &fakeMarksEnrollments{active: map[string]*models.Enrollment{
		"student-1|course-1": {ID: "enrollment-1", StudentID: "student-1", CourseID: "course-1"},
	}}
	return newMarksService(repo, enrollments, nil, nil)
}

func validEnterRequest() EnterMarksRequest {
	return EnterMarksRequest{
		StudentID:     "student-1",
		CourseID:      "course-1",
		Semester:      3,
		AcademicYear:  "2026-27",
		ExamType:      models.ExamInternal1,
		MaxMarks:      50,
		MarksObtained: 42,
	}
}

func TestEnterMarksDerivesGrade(t *testing.T) {
	repo := newFakeMarksRepo()
	svc := enrolledMarksService(repo)

	marks, err := svc.Enter(context.Background(), "admin-1", validEnterRequest())
	require.NoError(t, err)
	assert.Equal(t, 84.0, marks.Percentage)
	assert.Equal(t, models.GradeA, marks.Grade)
	assert.Equal(t, "admin-1", marks.EnteredBy)
}

func TestEnterMarksExceedMax(t *testing.T) {
	svc := enrolledMarksService(newFakeMarksRepo())

	req := validEnterRequest()
	req.MarksObtained = 51
	_, err := svc.Enter(context.Background(), "admin-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMarksExceedMax.Code, appErrors.FromError(err).Code)
}

func TestEnterMarksNotEnrolled(t *testing.T) {
	svc := newMarksService(newFakeMarksRepo(), nil, nil, nil)

	_, err := svc.Enter(context.Background(), "admin-1", validEnterRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnterMarksDuplicate(t *testing.T) {
	repo := newFakeMarksRepo()
	svc := enrolledMarksService(repo)

	_, err := svc.Enter(context.Background(), "admin-1", validEnterRequest())
	require.NoError(t, err)

	_, err = svc.Enter(context.Background(), "admin-1", validEnterRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateMarks.Code, appErrors.FromError(err).Code)
}

func TestBulkEnterPartialSuccess(t *testing.T) {
	repo := newFakeMarksRepo()
	svc := enrolledMarksService(repo)

	result, err := svc.BulkEnter(context.Background(), "admin-1", BulkEnterMarksRequest{
		CourseID:     "course-1",
		Semester:     3,
		AcademicYear: "2026-27",
		ExamType:     models.ExamFinal,
		MaxMarks:     100,
		Entries: []BulkMarksEntry{
			{StudentID: "student-1", MarksObtained: 91},
			{StudentID: "student-2", MarksObtained: 80}, // not enrolled
			{StudentID: "student-1", MarksObtained: 70}, // duplicate of row 0
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Entered, 1)
	assert.Equal(t, models.GradeAPlus, result.Entered[0].Grade)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, 1, result.Failures[0].Index)
	assert.Equal(t, "student-2", result.Failures[0].StudentID)
	assert.Equal(t, 2, result.Failures[1].Index)
}

func TestUpdateMarksRederives(t *testing.T) {
	repo := newFakeMarksRepo()
	repo.records["marks-1"] = &models.Marks{
		ID: "marks-1", MaxMarks: 50, MarksObtained: 42,
		Percentage: 84, Grade: models.GradeA,
	}
	svc := newMarksService(repo, nil, nil, nil)

	marks, err := svc.Update(context.Background(), "marks-1", UpdateMarksRequest{MaxMarks: 50, MarksObtained: 17})
	require.NoError(t, err)
	assert.Equal(t, 34.0, marks.Percentage)
	assert.Equal(t, models.GradeF, marks.Grade)
}

func TestListMarksUnknownExamType(t *testing.T) {
	svc := newMarksService(newFakeMarksRepo(), nil, nil, nil)

	_, err := svc.List(context.Background(), models.MarksFilter{ExamType: "quiz9"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeCard(t *testing.T) {
	repo := newFakeMarksRepo()
	repo.listed = []models.MarksDetail{
		{Marks: models.Marks{CourseID: "course-1", ExamType: models.ExamFinal, MaxMarks: 100, MarksObtained: 88, Percentage: 88, Grade: models.GradeA}},
	}
	enrollments := &fakeMarksEnrollments{pool: []models.EnrollmentDetail{
		{Enrollment: models.Enrollment{CourseID: "course-0", Semester: 1, Grade: models.GradeAPlus, GradePoints: 10}, CourseCredits: 3},
		{Enrollment: models.Enrollment{CourseID: "course-1", Semester: 2, Grade: models.GradeA, GradePoints: 9}, CourseCredits: 3},
	}}
	students := &fakeStudentReader{students: map[string]*models.Student{
		"student-1": {ID: "student-1", Name: "Asha Rao", RollNumber: "CS2026-014", Department: "CSE", Semester: 2},
	}}
	courses := &fakeCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", Code: "CS201", Title: "Data Structures", Credits: 3},
	}}
	svc := newMarksService(repo, enrollments, students, courses)

	card, err := svc.GradeCard(context.Background(), "student-1", 0)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", card.StudentName)
	assert.Equal(t, 2, card.Semester)
	require.Len(t, card.Courses, 1)
	assert.Equal(t, "CS201", card.Courses[0].Course.Code)
	assert.Equal(t, models.GradeA, card.Courses[0].Enrollment.Grade)
	require.Len(t, card.Courses[0].Marks, 1)
	assert.Equal(t, 9.0, card.SemesterGPA)
	assert.Equal(t, 9.5, card.CGPA)
}
