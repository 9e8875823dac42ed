package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/internal/service"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
	"github.com/AllenCortuna/omnhs-api/pkg/response"
)

// SubjectRecordHandler exposes class roster and grade endpoints.
type SubjectRecordHandler struct {
	records *service.SubjectRecordService
}

// NewSubjectRecordHandler constructs SubjectRecordHandler.
func NewSubjectRecordHandler(records *service.SubjectRecordService) *SubjectRecordHandler {
	return &SubjectRecordHandler{records: records}
}

// List godoc
// @Summary List class offerings
// @Tags SubjectRecords
// @Produce json
// @Param teacherId query string false "Filter by teacher"
// @Param sectionId query string false "Filter by section"
// @Param subjectId query string false "Filter by subject"
// @Param semester query string false "Semester"
// @Param schoolYear query string false "School year"
// @Param studentId query string false "Offerings a student is rostered in"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /subject-records [get]
func (h *SubjectRecordHandler) List(c *gin.Context) {
	var filter models.SubjectRecordFilter
	filter.TeacherID = c.Query("teacherId")
	filter.SectionID = c.Query("sectionId")
	filter.SubjectID = c.Query("subjectId")
	filter.Semester = c.Query("semester")
	filter.SchoolYear = c.Query("schoolYear")
	filter.StudentID = c.Query("studentId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil {
		filter.PageSize = size
	}

	// Teachers see their own offerings; students the ones they sit in.
	if claims := claimsFromContext(c); claims != nil {
		switch claims.Role {
		case models.RoleTeacher:
			filter.TeacherID = claims.LinkedID
		case models.RoleStudent:
			filter.StudentID = claims.LinkedID
		}
	}

	records, pagination, err := h.records.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get one class offering
// @Tags SubjectRecords
// @Produce json
// @Param id path string true "Subject record ID"
// @Success 200 {object} response.Envelope
// @Router /subject-records/{id} [get]
func (h *SubjectRecordHandler) Get(c *gin.Context) {
	record, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Create godoc
// @Summary Open a class offering
// @Tags SubjectRecords
// @Accept json
// @Produce json
// @Param payload body service.CreateSubjectRecordRequest true "Offering payload"
// @Success 201 {object} response.Envelope
// @Router /subject-records [post]
func (h *SubjectRecordHandler) Create(c *gin.Context) {
	var req service.CreateSubjectRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleTeacher {
		req.TeacherID = claims.LinkedID
	}
	record, err := h.records.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// AddStudent godoc
// @Summary Add a student to the roster
// @Tags SubjectRecords
// @Accept json
// @Produce json
// @Param id path string true "Subject record ID"
// @Success 204
// @Router /subject-records/{id}/students [post]
func (h *SubjectRecordHandler) AddStudent(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.records.AddStudent(c.Request.Context(), c.Param("id"), req.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveStudent godoc
// @Summary Remove a student from the roster
// @Tags SubjectRecords
// @Produce json
// @Param id path string true "Subject record ID"
// @Param studentId path string true "Student record ID"
// @Success 204
// @Router /subject-records/{id}/students/{studentId} [delete]
func (h *SubjectRecordHandler) RemoveStudent(c *gin.Context) {
	if err := h.records.RemoveStudent(c.Request.Context(), c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a class offering with its grades
// @Tags SubjectRecords
// @Produce json
// @Param id path string true "Subject record ID"
// @Success 204
// @Router /subject-records/{id} [delete]
func (h *SubjectRecordHandler) Delete(c *gin.Context) {
	if err := h.records.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpsertGrade godoc
// @Summary Write one student's marks
// @Tags SubjectRecords
// @Accept json
// @Produce json
// @Param id path string true "Subject record ID"
// @Param payload body service.UpsertGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /subject-records/{id}/grades [put]
func (h *SubjectRecordHandler) UpsertGrade(c *gin.Context) {
	var req service.UpsertGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	teacherID := ""
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleTeacher {
		teacherID = claims.LinkedID
	}
	grade, err := h.records.UpsertGrade(c.Request.Context(), c.Param("id"), req, teacherID, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// GradeSheet godoc
// @Summary Roster with grades for an offering
// @Tags SubjectRecords
// @Produce json
// @Param id path string true "Subject record ID"
// @Success 200 {object} response.Envelope
// @Router /subject-records/{id}/grades [get]
func (h *SubjectRecordHandler) GradeSheet(c *gin.Context) {
	rows, err := h.records.GradeSheet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Export godoc
// @Summary Export the grade sheet
// @Tags SubjectRecords
// @Produce octet-stream
// @Param id path string true "Subject record ID"
// @Param format query string false "csv or pdf"
// @Success 200
// @Router /subject-records/{id}/export [get]
func (h *SubjectRecordHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.records.ExportGradeSheet(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("grade-sheet-%s.%s", c.Param("id"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// StudentGrades godoc
// @Summary A student's grades across offerings
// @Tags SubjectRecords
// @Produce json
// @Param id path string true "Student record ID"
// @Param semester query string false "Semester"
// @Param schoolYear query string false "School year"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/grades [get]
func (h *SubjectRecordHandler) StudentGrades(c *gin.Context) {
	studentID := c.Param("id")
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent && studentID != claims.LinkedID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	grades, err := h.records.StudentGrades(c.Request.Context(), studentID, c.Query("semester"), c.Query("schoolYear"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}
