// internal/handlers/sale.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/corretorpro/crm-backend/internal/i18n"
	"github.com/corretorpro/crm-backend/internal/services"
	"github.com/corretorpro/crm-backend/internal/utils"
)

type SaleHandler struct {
	saleService    *services.SaleService
	paymentService *services.PaymentService
}

func NewSaleHandler(saleService *services.SaleService, paymentService *services.PaymentService) *SaleHandler {
	return &SaleHandler{
		saleService:    saleService,
		paymentService: paymentService,
	}
}

// POST /sales
func (h *SaleHandler) CreateSale(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	sale, err := h.saleService.CreateSale(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "sale")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeySaleCreated),
		"sale":    sale,
	})
}

// GET /sales
func (h *SaleHandler) ListSales(c *gin.Context) {
	params := services.SaleSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}
	if sellerID, err := uuid.Parse(c.Query("seller_id")); err == nil {
		params.SellerID = &sellerID
	}
	if clientID, err := uuid.Parse(c.Query("client_id")); err == nil {
		params.ClientID = &clientID
	}

	sales, total, err := h.saleService.ListSales(c.Request.Context(), params)
	if err != nil {
		handleServiceError(c, err, "sale")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(sales, total, params.PaginationParams))
}

// GET /sales/:id
func (h *SaleHandler) GetSale(c *gin.Context) {
	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid sale ID", nil)
		return
	}

	sale, err := h.saleService.GetSale(c.Request.Context(), saleID)
	if err != nil {
		handleServiceError(c, err, "sale")
		return
	}

	utils.SuccessResponse(c, gin.H{"sale": sale})
}

// PATCH /sales/:id/status
func (h *SaleHandler) Transition(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid sale ID", nil)
		return
	}

	var req services.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	sale, err := h.saleService.Transition(c.Request.Context(), saleID, &req)
	if err != nil {
		handleServiceError(c, err, "sale")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeySaleTransitioned),
		"sale":    sale,
	})
}

// POST /sales/:id/checkout
func (h *SaleHandler) CreateCheckout(c *gin.Context) {
	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid sale ID", nil)
		return
	}

	checkout, err := h.paymentService.CreateCheckout(c.Request.Context(), saleID)
	if err != nil {
		handleServiceError(c, err, "sale")
		return
	}

	utils.CreatedResponse(c, gin.H{"checkout": checkout})
}
