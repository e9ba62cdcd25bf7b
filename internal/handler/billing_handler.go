package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/khurram-Shahid09/CourseMat/internal/service"
	"github.com/khurram-Shahid09/CourseMat/pkg/response"
)

// BillingHandler exposes billing and installment endpoints.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler constructs BillingHandler.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// Summary godoc
// @Summary Billing summary of an enrollment
// @Tags Billing
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/billing [get]
func (h *BillingHandler) Summary(c *gin.Context) {
	summary, err := h.billing.Summarize(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ListInstallments godoc
// @Summary Installment schedule of an enrollment
// @Tags Billing
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/installments [get]
func (h *BillingHandler) ListInstallments(c *gin.Context) {
	installments, err := h.billing.ListInstallments(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, installments, nil)
}

// MarkPaid godoc
// @Summary Mark an installment as paid
// @Tags Billing
// @Produce json
// @Param id path string true "Installment ID"
// @Success 200 {object} response.Envelope
// @Router /installments/{id}/pay [post]
func (h *BillingHandler) MarkPaid(c *gin.Context) {
	installment, err := h.billing.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, installment, nil)
}

// Regenerate godoc
// @Summary Rebuild the installment schedule of an enrollment
// @Tags Billing
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param confirm query bool false "Discard already-paid installments"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/installments/regenerate [post]
func (h *BillingHandler) Regenerate(c *gin.Context) {
	confirm, _ := strconv.ParseBool(c.Query("confirm"))
	installments, err := h.billing.Regenerate(c.Request.Context(), c.Param("id"), confirm)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, installments, nil)
}
