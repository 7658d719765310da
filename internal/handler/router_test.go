package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campus-api/internal/models"
	"github.com/campushub/campus-api/internal/service"
	"github.com/campushub/campus-api/pkg/config"
)

const routerTestSecret = "router-test-secret"

type routerEnrollmentRepo struct {
	enrollments map[string]*models.Enrollment
}

func (f *routerEnrollmentRepo) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	enrollment, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return enrollment, nil
}

func (f *routerEnrollmentRepo) FindDetailByID(_ context.Context, _ string) (*models.EnrollmentDetail, error) {
	return nil, sql.ErrNoRows
}

func (f *routerEnrollmentRepo) Exists(_ context.Context, _, _ string, _ int) (bool, error) {
	return false, nil
}

func (f *routerEnrollmentRepo) List(_ context.Context, _ models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func (f *routerEnrollmentRepo) ListForGPA(_ context.Context, _ string, _ int, _ bool) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func (f *routerEnrollmentRepo) Create(_ context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enrollment-new"
	f.enrollments[enrollment.ID] = enrollment
	return nil
}

func (f *routerEnrollmentRepo) Update(_ context.Context, enrollment *models.Enrollment) error {
	f.enrollments[enrollment.ID] = enrollment
	return nil
}

type routerStudentReader struct {
	students map[string]*models.Student
}

func (f *routerStudentReader) FindByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

type routerCourseReader struct{}

func (routerCourseReader) FindByID(_ context.Context, _ string) (*models.Course, error) {
	return nil, sql.ErrNoRows
}

func newRouterEngine(t *testing.T, repo *routerEnrollmentRepo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	students := &routerStudentReader{students: map[string]*models.Student{
		"student-1": {ID: "student-1", Semester: 2},
	}}
	enrollmentService := service.NewEnrollmentService(repo, routerCourseReader{}, students, nil, nil)
	authService := service.NewAuthService(nil, nil, nil, nil, nil, config.AuthConfig{JWTSecret: routerTestSecret})

	r := gin.New()
	RegisterRoutes(r, "/api/v1", authService, Handlers{
		Auth:        &AuthHandler{},
		Students:    &StudentHandler{},
		Courses:     &CourseHandler{},
		Enrollments: NewEnrollmentHandler(enrollmentService),
		Attendance:  &AttendanceHandler{},
		Marks:       &MarksHandler{},
		Assignments: &AssignmentHandler{},
		Metrics:     &MetricsHandler{},
	})
	return r
}

func signAccessToken(t *testing.T, userID string, role models.Role) string {
	t.Helper()
	claims := &models.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(routerTestSecret))
	require.NoError(t, err)
	return token
}

func routerRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStudentScopedRoutesRegistered(t *testing.T) {
	r := newRouterEngine(t, &routerEnrollmentRepo{enrollments: map[string]*models.Enrollment{}})

	routes := make(map[string]struct{})
	for _, info := range r.Routes() {
		routes[info.Method+" "+info.Path] = struct{}{}
	}

	expected := []string{
		"GET /api/v1/students/:id/enrollments",
		"GET /api/v1/students/:id/gpa",
		"GET /api/v1/students/:id/gpa/semesters",
		"GET /api/v1/students/:id/attendance",
		"GET /api/v1/students/:id/attendance/summary",
		"GET /api/v1/students/:id/marks",
		"GET /api/v1/students/:id/gradecard",
		"POST /api/v1/enrollments",
		"DELETE /api/v1/enrollments/:id",
	}
	for _, route := range expected {
		assert.Contains(t, routes, route)
	}
}

func TestStudentScopedRouteAccess(t *testing.T) {
	r := newRouterEngine(t, &routerEnrollmentRepo{enrollments: map[string]*models.Enrollment{}})

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"admin", signAccessToken(t, "admin-1", models.RoleAdmin), http.StatusOK},
		{"superadmin", signAccessToken(t, "admin-2", models.RoleSuperAdmin), http.StatusOK},
		{"own record", signAccessToken(t, "student-1", models.RoleStudent), http.StatusOK},
		{"another student", signAccessToken(t, "student-2", models.RoleStudent), http.StatusForbidden},
		{"unauthenticated", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := routerRequest(r, http.MethodGet, "/api/v1/students/student-1/gpa", tt.token)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestDropEnrollmentRouteAdmitsAdmins(t *testing.T) {
	repo := &routerEnrollmentRepo{enrollments: map[string]*models.Enrollment{
		"enrollment-1": {
			ID: "enrollment-1", StudentID: "student-1", CourseID: "course-1",
			Semester: 2, Status: models.EnrollmentStatusActive, Active: true,
		},
	}}
	r := newRouterEngine(t, repo)

	w := routerRequest(r, http.MethodDelete, "/api/v1/enrollments/enrollment-1",
		signAccessToken(t, "admin-1", models.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)

	dropped := repo.enrollments["enrollment-1"]
	assert.Equal(t, models.EnrollmentStatusDropped, dropped.Status)
	assert.False(t, dropped.Active)
	assert.Equal(t, models.GradeW, dropped.Grade)
}
