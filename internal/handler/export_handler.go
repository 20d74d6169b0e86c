package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/novasec/secaware-api/internal/service"
	"github.com/novasec/secaware-api/pkg/response"
)

// ExportHandler exposes admin result export endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Attempts godoc
// @Summary Export an exam's attempts as CSV or PDF
// @Tags Admin
// @Produce octet-stream
// @Param id path string true "Exam ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /admin/exams/{id}/attempts/export [get]
func (h *ExportHandler) Attempts(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	payload, filename, err := h.exports.AttemptsExport(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	contentType := "text/csv"
	if format == service.ExportFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
