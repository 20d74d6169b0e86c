package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/novasec/secaware-api/internal/service"
	appErrors "github.com/novasec/secaware-api/pkg/errors"
	"github.com/novasec/secaware-api/pkg/response"
)

// AssignmentHandler exposes admin assignment endpoints.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// AssignExam godoc
// @Summary Assign an exam to an employee or department
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body service.AssignExamRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /admin/assignments/exams [post]
func (h *AssignmentHandler) AssignExam(c *gin.Context) {
	var req service.AssignExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.AssignExam(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// EnrollCourse godoc
// @Summary Enroll an employee or department into a course
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body service.EnrollCourseRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /admin/assignments/courses [post]
func (h *AssignmentHandler) EnrollCourse(c *gin.Context) {
	var req service.EnrollCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrolled, err := h.assignments.EnrollCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"enrolled": enrolled})
}
