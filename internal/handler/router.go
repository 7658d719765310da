package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campushub/campus-api/internal/middleware"
	"github.com/campushub/campus-api/internal/models"
	"github.com/campushub/campus-api/internal/service"
)

// Handlers bundles every route handler for registration.
type Handlers struct {
	Auth        *AuthHandler
	Students    *StudentHandler
	Courses     *CourseHandler
	Enrollments *EnrollmentHandler
	Attendance  *AttendanceHandler
	Marks       *MarksHandler
	Assignments *AssignmentHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts the full API surface under the given prefix.
func RegisterRoutes(r *gin.Engine, prefix string, authService *service.AuthService, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	requireAuth := middleware.JWT(authService)
	student := middleware.RequireRoles(models.RoleStudent)
	admin := middleware.RequireAdmin()
	studentOrAdmin := middleware.RequireRoles(models.RoleStudent, models.RoleAdmin, models.RoleSuperAdmin)
	selfOrAdmin := middleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin), middleware.RoleSelf)

	auth := api.Group("/auth")
	{
		auth.POST("/student/register", h.Auth.RegisterStudent)
		auth.POST("/student/login", h.Auth.LoginStudent)
		auth.POST("/admin/register", h.Auth.RegisterAdmin)
		auth.POST("/admin/login", h.Auth.LoginAdmin)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", requireAuth, h.Auth.Logout)
	}

	me := api.Group("/students/me", requireAuth, student)
	{
		me.GET("", h.Auth.Me)
		me.PUT("", h.Auth.UpdateProfile)
		me.PUT("/password", h.Auth.ChangePassword)
		me.GET("/enrollments", h.Enrollments.MyEnrollments)
		me.GET("/gpa", h.Enrollments.GPA)
		me.GET("/gpa/semesters", h.Enrollments.SemesterGPA)
		me.GET("/attendance", h.Attendance.MySessions)
		me.GET("/attendance/summary", h.Attendance.MySummary)
		me.GET("/marks", h.Marks.MyMarks)
		me.GET("/gradecard", h.Marks.GradeCard)
		me.GET("/assignments", h.Assignments.MyAssignments)
	}

	api.GET("/admins/me", requireAuth, admin, h.Auth.AdminMe)

	students := api.Group("/students", requireAuth)
	{
		students.GET("", admin, h.Students.List)
		students.GET("/:id", selfOrAdmin, h.Students.Get)
		students.DELETE("/:id", admin, h.Students.Delete)
		students.GET("/:id/enrollments", selfOrAdmin, h.Enrollments.StudentEnrollments)
		students.GET("/:id/gpa", selfOrAdmin, h.Enrollments.StudentGPA)
		students.GET("/:id/gpa/semesters", selfOrAdmin, h.Enrollments.StudentSemesterGPA)
		students.GET("/:id/attendance", selfOrAdmin, h.Attendance.StudentSessions)
		students.GET("/:id/attendance/summary", selfOrAdmin, h.Attendance.StudentSummary)
		students.GET("/:id/marks", selfOrAdmin, h.Marks.StudentMarks)
		students.GET("/:id/gradecard", selfOrAdmin, h.Marks.StudentGradeCard)
	}

	courses := api.Group("/courses", requireAuth)
	{
		courses.GET("", h.Courses.List)
		courses.GET("/:id", h.Courses.Get)
		courses.POST("", admin, h.Courses.Create)
		courses.PUT("/:id", admin, h.Courses.Update)
		courses.DELETE("/:id", admin, h.Courses.Delete)
	}

	enrollments := api.Group("/enrollments", requireAuth)
	{
		enrollments.POST("", studentOrAdmin, h.Enrollments.Enroll)
		enrollments.DELETE("/:id", studentOrAdmin, h.Enrollments.Drop)
		enrollments.GET("", admin, h.Enrollments.List)
		enrollments.GET("/:id", admin, h.Enrollments.Get)
		enrollments.PUT("/:id", admin, h.Enrollments.Update)
	}

	attendance := api.Group("/attendance", requireAuth, admin)
	{
		attendance.POST("", h.Attendance.Create)
		attendance.GET("", h.Attendance.List)
		attendance.GET("/stats", h.Attendance.Stats)
		attendance.GET("/:id", h.Attendance.Get)
		attendance.PUT("/:id", h.Attendance.Update)
		attendance.DELETE("/:id", h.Attendance.Delete)
	}

	marks := api.Group("/marks", requireAuth, admin)
	{
		marks.POST("", h.Marks.Create)
		marks.POST("/bulk", h.Marks.BulkCreate)
		marks.GET("", h.Marks.List)
		marks.GET("/:id", h.Marks.Get)
		marks.PUT("/:id", h.Marks.Update)
		marks.DELETE("/:id", h.Marks.Delete)
	}

	assignments := api.Group("/assignments", requireAuth)
	{
		assignments.GET("", h.Assignments.List)
		assignments.POST("", admin, h.Assignments.Create)
		assignments.GET("/:id", admin, h.Assignments.Get)
		assignments.PUT("/:id", admin, h.Assignments.Update)
		assignments.DELETE("/:id", admin, h.Assignments.Delete)
		assignments.POST("/:id/submissions", student, h.Assignments.Submit)
		assignments.PUT("/:id/submissions/:submissionId/grade", admin, h.Assignments.Grade)
		assignments.PUT("/:id/submissions/:submissionId/return", admin, h.Assignments.Return)
	}
}
