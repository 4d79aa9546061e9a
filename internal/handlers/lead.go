// internal/handlers/lead.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/corretorpro/crm-backend/internal/i18n"
	"github.com/corretorpro/crm-backend/internal/services"
	"github.com/corretorpro/crm-backend/internal/utils"
)

type LeadHandler struct {
	leadService *services.LeadService
}

func NewLeadHandler(leadService *services.LeadService) *LeadHandler {
	return &LeadHandler{
		leadService: leadService,
	}
}

// POST /leads
func (h *LeadHandler) IntakeLead(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.IntakeLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	lead, err := h.leadService.IntakeLead(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "lead")
		return
	}

	utils.CreatedResponse(c, gin.H{"lead": lead})
}

// GET /leads
func (h *LeadHandler) ListLeads(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	leads, total, err := h.leadService.ListLeads(c.Request.Context(), params)
	if err != nil {
		handleServiceError(c, err, "lead")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(leads, total, params))
}

// GET /leads/:id
func (h *LeadHandler) GetLead(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid lead ID", nil)
		return
	}

	lead, err := h.leadService.GetLead(c.Request.Context(), leadID)
	if err != nil {
		handleServiceError(c, err, "lead")
		return
	}

	utils.SuccessResponse(c, gin.H{"lead": lead})
}

// POST /leads/:id/qualify
func (h *LeadHandler) QualifyLead(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid lead ID", nil)
		return
	}

	outcome, err := h.leadService.QualifyLead(c.Request.Context(), leadID)
	if err != nil {
		handleServiceError(c, err, "lead")
		return
	}

	response := gin.H{
		"qualified":  outcome.Qualified,
		"intent":     outcome.Intent,
		"confidence": outcome.Confidence,
		"lead":       outcome.Lead,
	}
	if outcome.Qualified {
		response["message"] = i18n.T(lang, i18n.KeyLeadQualified)
		response["sale"] = outcome.Sale
	}

	utils.SuccessResponse(c, response)
}
