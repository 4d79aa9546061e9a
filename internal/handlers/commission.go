// internal/handlers/commission.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/corretorpro/crm-backend/internal/services"
	"github.com/corretorpro/crm-backend/internal/utils"
)

type CommissionHandler struct {
	commissionService *services.CommissionService
}

func NewCommissionHandler(commissionService *services.CommissionService) *CommissionHandler {
	return &CommissionHandler{
		commissionService: commissionService,
	}
}

// GET /sales/:id/commissions
func (h *CommissionHandler) ListForSale(c *gin.Context) {
	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid sale ID", nil)
		return
	}

	commissions, err := h.commissionService.ListForSale(c.Request.Context(), saleID)
	if err != nil {
		handleServiceError(c, err, "sale")
		return
	}

	var total float64
	for _, commission := range commissions {
		total += commission.Amount
	}

	utils.SuccessResponse(c, gin.H{
		"commissions": commissions,
		"total":       total,
	})
}

// POST /sales/:id/commissions/calculate
func (h *CommissionHandler) Calculate(c *gin.Context) {
	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid sale ID", nil)
		return
	}

	result, err := h.commissionService.CalculateForSale(c.Request.Context(), saleID)
	if err != nil {
		handleServiceError(c, err, "sale")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"commissions": result.Commissions,
		"total":       result.Total,
	})
}
