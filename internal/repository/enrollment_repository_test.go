package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campus-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestEnrollmentExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta(`SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND semester = $3 LIMIT 1`)
	mock.ExpectQuery(query).
		WithArgs("student-1", "course-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "student-1", "course-1", 3)
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentExistsNoRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta(`SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND semester = $3 LIMIT 1`)
	mock.ExpectQuery(query).
		WithArgs("student-1", "course-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.Exists(context.Background(), "student-1", "course-1", 3)
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListForGPASemesterBound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta(`WHERE e.student_id = $1 AND e.semester <= $2 AND e.status IN ($3, $4)`)
	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "semester", "grade", "grade_points", "course_credits"}).
		AddRow("enrollment-1", "student-1", "course-1", 1, "A", 9.0, 3).
		AddRow("enrollment-2", "student-1", "course-2", 2, "B", 7.0, 4)
	mock.ExpectQuery(query).
		WithArgs("student-1", 2, models.EnrollmentStatusActive, models.EnrollmentStatusCompleted).
		WillReturnRows(rows)

	pool, err := repo.ListForGPA(context.Background(), "student-1", 2, false)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, 9.0, pool[0].GradePoints)
	assert.Equal(t, 4, pool[1].CourseCredits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListForGPAExactSemester(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta(`WHERE e.student_id = $1 AND e.semester = $2 AND e.status IN ($3, $4)`)
	mock.ExpectQuery(query).
		WithArgs("student-1", 2, models.EnrollmentStatusActive, models.EnrollmentStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "semester"}).AddRow("enrollment-2", 2))

	pool, err := repo.ListForGPA(context.Background(), "student-1", 2, true)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAttendancePercentage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta(`UPDATE enrollments SET attendance_percentage = $4`)
	mock.ExpectExec(query).
		WithArgs("student-1", "course-1", 3, 75.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateAttendancePercentage(context.Background(), "student-1", "course-1", 3, 75.0)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveCourseIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta(`SELECT course_id FROM enrollments WHERE student_id = $1 AND status = $2 AND semester = $3`)
	mock.ExpectQuery(query).
		WithArgs("student-1", models.EnrollmentStatusActive, 3).
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("course-1").AddRow("course-2"))

	courseIDs, err := repo.ListActiveCourseIDs(context.Background(), "student-1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"course-1", "course-2"}, courseIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}
