package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campus-api/internal/models"
	appErrors "github.com/campushub/campus-api/pkg/errors"
)

type fakeStudentDirectory struct {
	students map[string]*models.Student
	total    int
}

func (f *fakeStudentDirectory) FindByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (f *fakeStudentDirectory) List(_ context.Context, _ models.StudentFilter) ([]models.Student, int, error) {
	result := make([]models.Student, 0, len(f.students))
	for _, s := range f.students {
		result = append(result, *s)
	}
	return result, f.total, nil
}

func (f *fakeStudentDirectory) Deactivate(_ context.Context, id string) error {
	if s, ok := f.students[id]; ok {
		s.Active = false
	}
	return nil
}

func TestStudentDirectoryGet(t *testing.T) {
	repo := &fakeStudentDirectory{students: map[string]*models.Student{
		"student-1": {ID: "student-1", Name: "Asha Rao", Active: true},
	}}
	svc := NewStudentService(repo, nil)

	student, err := svc.Get(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", student.Name)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentDirectoryListPagination(t *testing.T) {
	repo := &fakeStudentDirectory{students: map[string]*models.Student{}, total: 7}
	svc := NewStudentService(repo, nil)

	_, pagination, err := svc.List(context.Background(), models.StudentFilter{Page: -1, PageSize: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 7, pagination.TotalCount)
}

func TestStudentDirectoryDeactivate(t *testing.T) {
	repo := &fakeStudentDirectory{students: map[string]*models.Student{
		"student-1": {ID: "student-1", Active: true},
	}}
	svc := NewStudentService(repo, nil)

	require.NoError(t, svc.Deactivate(context.Background(), "student-1"))
	assert.False(t, repo.students["student-1"].Active)
}
