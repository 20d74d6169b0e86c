package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/novasec/secaware-api/internal/models"
	"github.com/novasec/secaware-api/internal/service"
	appErrors "github.com/novasec/secaware-api/pkg/errors"
	"github.com/novasec/secaware-api/pkg/response"
)

// CourseHandler exposes catalog and progression endpoints.
type CourseHandler struct {
	courses     *service.CourseService
	progression *service.ProgressionService
}

// NewCourseHandler constructs handler.
func NewCourseHandler(courses *service.CourseService, progression *service.ProgressionService) *CourseHandler {
	return &CourseHandler{courses: courses, progression: progression}
}

// List godoc
// @Summary List published courses
// @Tags Courses
// @Produce json
// @Param search query string false "Title search"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("pageSize"))
	filter := models.CourseFilter{Search: c.Query("search"), Page: page, PageSize: size}
	courses, pagination, err := h.courses.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Detail godoc
// @Summary Course detail with ordered sections
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Detail(c *gin.Context) {
	detail, err := h.courses.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// MyCourses godoc
// @Summary List the caller's assigned courses with progress
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /my/courses [get]
func (h *CourseHandler) MyCourses(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	courses, err := h.courses.ListForEmployee(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// EnrollmentStatus godoc
// @Summary Current enrollment snapshot for a course
// @Tags Progression
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollment [get]
func (h *CourseHandler) EnrollmentStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	snapshot, err := h.progression.EnrollmentStatus(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// SectionAccess godoc
// @Summary Check whether a section is unlocked
// @Tags Progression
// @Produce json
// @Param id path string true "Course ID"
// @Param index path int true "Zero-based section position"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/access/{index} [get]
func (h *CourseHandler) SectionAccess(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid section index"))
		return
	}
	canAccess, err := h.progression.CanAccessSection(c.Request.Context(), claims.UserID, c.Param("id"), index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"can_access": canAccess}, nil)
}

// CompleteSection godoc
// @Summary Mark a video or article section complete
// @Tags Progression
// @Produce json
// @Param id path string true "Course ID"
// @Param sectionId path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/sections/{sectionId}/complete [post]
func (h *CourseHandler) CompleteSection(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	snapshot, err := h.progression.CompleteSection(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("sectionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// QuizSubmission carries quiz answers keyed by question order index.
type QuizSubmission struct {
	Answers map[int]string `json:"answers"`
}

// SubmitQuiz godoc
// @Summary Submit answers for an in-course quiz section
// @Tags Progression
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param sectionId path string true "Section ID"
// @Param payload body QuizSubmission true "Answers"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/sections/{sectionId}/quiz [post]
func (h *CourseHandler) SubmitQuiz(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req QuizSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.progression.SubmitQuizSection(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("sectionId"), req.Answers)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
