package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/novasec/secaware-api/internal/service"
	appErrors "github.com/novasec/secaware-api/pkg/errors"
	"github.com/novasec/secaware-api/pkg/response"
)

// CertificateHandler exposes certificate record endpoints. Rendering is a
// downstream concern; only the records are served here.
type CertificateHandler struct {
	certificates *service.CertificateService
}

// NewCertificateHandler constructs handler.
func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// List godoc
// @Summary List the caller's certificates
// @Tags Certificates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /certificates [get]
func (h *CertificateHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	certs, err := h.certificates.ListForEmployee(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, nil)
}

// Verify godoc
// @Summary Verify a certificate by its public number
// @Tags Certificates
// @Produce json
// @Param number path string true "Certificate number"
// @Success 200 {object} response.Envelope
// @Router /certificates/verify/{number} [get]
func (h *CertificateHandler) Verify(c *gin.Context) {
	detail, err := h.certificates.Verify(c.Request.Context(), c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
