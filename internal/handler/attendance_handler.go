package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushub/campus-api/internal/models"
	"github.com/campushub/campus-api/internal/service"
	appErrors "github.com/campushub/campus-api/pkg/errors"
	"github.com/campushub/campus-api/pkg/export"
	"github.com/campushub/campus-api/pkg/response"
)

// AttendanceHandler exposes attendance endpoints for both portals.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	csv        *export.CSVExporter
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService, csv *export.CSVExporter) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, csv: csv}
}

// Create godoc
// @Summary Record an attendance sheet
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.attendance.CreateSession(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "attendance recorded", session)
}

// List godoc
// @Summary List attendance sessions
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param courseId query string false "Filter by course"
// @Param semester query int false "Filter by semester"
// @Param from query string false "Start date (RFC 3339)"
// @Param to query string false "End date (RFC 3339)"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	sessions, err := h.attendance.ListSessions(c.Request.Context(), attendanceFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Get godoc
// @Summary Get one attendance session
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	session, err := h.attendance.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Update godoc
// @Summary Replace the records of an attendance session
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body service.UpdateSessionRequest true "Records payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [put]
func (h *AttendanceHandler) Update(c *gin.Context) {
	var req service.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.attendance.UpdateSession(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete an attendance session
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if err := h.attendance.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "attendance session deleted", nil)
}

// MySessions godoc
// @Summary Current student's attendance records
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param courseId query string false "Filter by course"
// @Param semester query int false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Router /students/me/attendance [get]
func (h *AttendanceHandler) MySessions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.sessionsFor(c, claims.UserID)
}

// StudentSessions godoc
// @Summary A student's attendance records
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param courseId query string false "Filter by course"
// @Param semester query int false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) StudentSessions(c *gin.Context) {
	h.sessionsFor(c, c.Param("id"))
}

func (h *AttendanceHandler) sessionsFor(c *gin.Context, studentID string) {
	views, err := h.attendance.StudentSessions(c.Request.Context(), studentID, attendanceFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// MySummary godoc
// @Summary Current student's per-course attendance summary
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param courseId query string false "Scope to one course"
// @Param semester query int false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Router /students/me/attendance/summary [get]
func (h *AttendanceHandler) MySummary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.summaryFor(c, claims.UserID)
}

// StudentSummary godoc
// @Summary A student's per-course attendance summary
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param courseId query string false "Scope to one course"
// @Param semester query int false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance/summary [get]
func (h *AttendanceHandler) StudentSummary(c *gin.Context) {
	h.summaryFor(c, c.Param("id"))
}

func (h *AttendanceHandler) summaryFor(c *gin.Context, studentID string) {
	semester, _ := strconv.Atoi(c.Query("semester"))
	summaries, err := h.attendance.StudentSummary(c.Request.Context(), studentID, semester, c.Query("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Stats godoc
// @Summary Per-student attendance standings for a course
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param courseId query string true "Course ID"
// @Param semester query int true "Semester"
// @Param format query string false "Set to csv for a CSV download"
// @Success 200 {object} response.Envelope
// @Router /attendance/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	courseID := c.Query("courseId")
	semester, _ := strconv.Atoi(c.Query("semester"))
	if courseID == "" || semester <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "courseId and semester are required"))
		return
	}

	rows, err := h.attendance.CourseStats(c.Request.Context(), courseID, semester)
	if err != nil {
		response.Error(c, err)
		return
	}

	if c.Query("format") == "csv" {
		data := export.Dataset{
			Headers: []string{"Roll Number", "Name", "Attendance %"},
			Rows:    make([]map[string]string, 0, len(rows)),
		}
		for _, row := range rows {
			data.Rows = append(data.Rows, map[string]string{
				"Roll Number":  row.RollNumber,
				"Name":         row.StudentName,
				"Attendance %": fmt.Sprintf("%.2f", row.Percentage),
			})
		}
		body, err := h.csv.Render(data)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=attendance-%s-s%d.csv", courseID, semester))
		c.Data(http.StatusOK, "text/csv", body)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}

func attendanceFilterFromQuery(c *gin.Context) models.AttendanceFilter {
	var filter models.AttendanceFilter
	filter.CourseID = c.Query("courseId")
	if semester, err := strconv.Atoi(c.Query("semester")); err == nil {
		filter.Semester = semester
	}
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		filter.DateFrom = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		filter.DateTo = &to
	}
	return filter
}
