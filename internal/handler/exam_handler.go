package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/novasec/secaware-api/internal/service"
	appErrors "github.com/novasec/secaware-api/pkg/errors"
	"github.com/novasec/secaware-api/pkg/response"
)

// ExamHandler exposes exam session endpoints.
type ExamHandler struct {
	sessions    *service.ExamSessionService
	assignments *service.AssignmentService
}

// NewExamHandler constructs handler.
func NewExamHandler(sessions *service.ExamSessionService, assignments *service.AssignmentService) *ExamHandler {
	return &ExamHandler{sessions: sessions, assignments: assignments}
}

// Eligibility godoc
// @Summary Check exam eligibility for the caller
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/eligibility [get]
func (h *ExamHandler) Eligibility(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	eligibility, err := h.sessions.CheckEligibility(c.Request.Context(), claims.UserID, claims.DepartmentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, eligibility, nil)
}

// Start godoc
// @Summary Start a time-boxed exam attempt
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/start [post]
func (h *ExamHandler) Start(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	session, err := h.sessions.StartAttempt(c.Request.Context(), claims.UserID, claims.DepartmentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Submit godoc
// @Summary Submit answers for the live exam session
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.SubmitAttemptRequest true "Answers"
// @Success 201 {object} response.Envelope
// @Router /exams/{id}/submit [post]
func (h *ExamHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	attempt, err := h.sessions.SubmitAttempt(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attempt)
}

// Attempts godoc
// @Summary List the caller's attempts for an exam
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/attempts [get]
func (h *ExamHandler) Attempts(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	attempts, err := h.sessions.ListAttempts(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempts, nil)
}

// MyAssignments godoc
// @Summary List the caller's exam assignments
// @Tags Exams
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /my/assignments [get]
func (h *ExamHandler) MyAssignments(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	assignments, err := h.assignments.ListForEmployee(c.Request.Context(), claims.UserID, claims.DepartmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}
