package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campushub/campus-api/internal/models"
	"github.com/campushub/campus-api/internal/service"
	appErrors "github.com/campushub/campus-api/pkg/errors"
	"github.com/campushub/campus-api/pkg/export"
	"github.com/campushub/campus-api/pkg/response"
)

// MarksHandler exposes marks and grade-card endpoints.
type MarksHandler struct {
	marks *service.MarksService
	pdf   *export.PDFExporter
}

// NewMarksHandler constructs MarksHandler.
func NewMarksHandler(marks *service.MarksService, pdf *export.PDFExporter) *MarksHandler {
	return &MarksHandler{marks: marks, pdf: pdf}
}

// Create godoc
// @Summary Record marks for one exam
// @Tags Marks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.EnterMarksRequest true "Marks payload"
// @Success 201 {object} response.Envelope
// @Router /marks [post]
func (h *MarksHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.EnterMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	marks, err := h.marks.Enter(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "marks recorded", marks)
}

// BulkCreate godoc
// @Summary Record one exam's marks for many students
// @Tags Marks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkEnterMarksRequest true "Bulk marks payload"
// @Success 200 {object} response.Envelope
// @Router /marks/bulk [post]
func (h *MarksHandler) BulkCreate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.BulkEnterMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.marks.BulkEnter(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List marks
// @Tags Marks
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param semester query int false "Filter by semester"
// @Param examType query string false "Filter by exam type"
// @Success 200 {object} response.Envelope
// @Router /marks [get]
func (h *MarksHandler) List(c *gin.Context) {
	marks, err := h.marks.List(c.Request.Context(), marksFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, nil)
}

// Get godoc
// @Summary Get one marks record
// @Tags Marks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Marks ID"
// @Success 200 {object} response.Envelope
// @Router /marks/{id} [get]
func (h *MarksHandler) Get(c *gin.Context) {
	marks, err := h.marks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, nil)
}

// Update godoc
// @Summary Update a marks record
// @Tags Marks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Marks ID"
// @Param payload body service.UpdateMarksRequest true "Marks payload"
// @Success 200 {object} response.Envelope
// @Router /marks/{id} [put]
func (h *MarksHandler) Update(c *gin.Context) {
	var req service.UpdateMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	marks, err := h.marks.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, nil)
}

// Delete godoc
// @Summary Delete a marks record
// @Tags Marks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Marks ID"
// @Success 200 {object} response.Envelope
// @Router /marks/{id} [delete]
func (h *MarksHandler) Delete(c *gin.Context) {
	if err := h.marks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "marks deleted", nil)
}

// MyMarks godoc
// @Summary Current student's marks
// @Tags Marks
// @Produce json
// @Security BearerAuth
// @Param courseId query string false "Filter by course"
// @Param semester query int false "Filter by semester"
// @Param examType query string false "Filter by exam type"
// @Success 200 {object} response.Envelope
// @Router /students/me/marks [get]
func (h *MarksHandler) MyMarks(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.marksFor(c, claims.UserID)
}

// StudentMarks godoc
// @Summary A student's marks
// @Tags Marks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param courseId query string false "Filter by course"
// @Param semester query int false "Filter by semester"
// @Param examType query string false "Filter by exam type"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/marks [get]
func (h *MarksHandler) StudentMarks(c *gin.Context) {
	h.marksFor(c, c.Param("id"))
}

func (h *MarksHandler) marksFor(c *gin.Context, studentID string) {
	filter := marksFilterFromQuery(c)
	filter.StudentID = studentID

	marks, err := h.marks.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, nil)
}

// GradeCard godoc
// @Summary Current student's semester grade card
// @Tags Marks
// @Produce json
// @Security BearerAuth
// @Param semester query int false "Semester, defaults to the current one"
// @Param format query string false "Set to pdf for a PDF download"
// @Success 200 {object} response.Envelope
// @Router /students/me/gradecard [get]
func (h *MarksHandler) GradeCard(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.gradeCardFor(c, claims.UserID)
}

// StudentGradeCard godoc
// @Summary A student's semester grade card
// @Tags Marks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param semester query int false "Semester, defaults to the current one"
// @Param format query string false "Set to pdf for a PDF download"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/gradecard [get]
func (h *MarksHandler) StudentGradeCard(c *gin.Context) {
	h.gradeCardFor(c, c.Param("id"))
}

func (h *MarksHandler) gradeCardFor(c *gin.Context, studentID string) {
	semester, _ := strconv.Atoi(c.Query("semester"))
	card, err := h.marks.GradeCard(c.Request.Context(), studentID, semester)
	if err != nil {
		response.Error(c, err)
		return
	}

	if c.Query("format") == "pdf" {
		body, err := h.renderGradeCardPDF(card)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=gradecard-s%d.pdf", card.Semester))
		c.Data(http.StatusOK, "application/pdf", body)
		return
	}

	response.JSON(c, http.StatusOK, card, nil)
}

func (h *MarksHandler) renderGradeCardPDF(card *models.GradeCard) ([]byte, error) {
	data := export.Dataset{
		Headers: []string{"Code", "Course", "Credits", "Grade", "Points", "Attendance %", "Status"},
		Rows:    make([]map[string]string, 0, len(card.Courses)),
	}
	for _, row := range card.Courses {
		data.Rows = append(data.Rows, map[string]string{
			"Code":         row.Course.Code,
			"Course":       row.Course.Title,
			"Credits":      strconv.Itoa(row.Course.Credits),
			"Grade":        string(row.Enrollment.Grade),
			"Points":       fmt.Sprintf("%.1f", row.Enrollment.GradePoints),
			"Attendance %": fmt.Sprintf("%.2f", row.Enrollment.AttendancePercentage),
			"Status":       string(row.Enrollment.Status),
		})
	}
	return h.pdf.Render(data, "Grade Card",
		fmt.Sprintf("%s (%s) - %s", card.StudentName, card.RollNumber, card.Department),
		fmt.Sprintf("Semester %d | SGPA %.2f | CGPA %.2f", card.Semester, card.SemesterGPA, card.CGPA))
}

func marksFilterFromQuery(c *gin.Context) models.MarksFilter {
	var filter models.MarksFilter
	filter.StudentID = c.Query("studentId")
	filter.CourseID = c.Query("courseId")
	if semester, err := strconv.Atoi(c.Query("semester")); err == nil {
		filter.Semester = semester
	}
	filter.ExamType = models.ExamType(c.Query("examType"))
	return filter
}
