// internal/handlers/policy.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/corretorpro/crm-backend/internal/i18n"
	"github.com/corretorpro/crm-backend/internal/services"
	"github.com/corretorpro/crm-backend/internal/utils"
)

type PolicyHandler struct {
	policyService *services.PolicyService
}

func NewPolicyHandler(policyService *services.PolicyService) *PolicyHandler {
	return &PolicyHandler{
		policyService: policyService,
	}
}

// GET /policies
func (h *PolicyHandler) ListPolicies(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	policies, total, err := h.policyService.ListPolicies(c.Request.Context(), params)
	if err != nil {
		handleServiceError(c, err, "policy")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(policies, total, params))
}

// GET /policies/:id
func (h *PolicyHandler) GetPolicy(c *gin.Context) {
	policyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid policy ID", nil)
		return
	}

	policy, err := h.policyService.GetPolicy(c.Request.Context(), policyID)
	if err != nil {
		handleServiceError(c, err, "policy")
		return
	}

	utils.SuccessResponse(c, gin.H{"policy": policy})
}

// POST /sales/:id/policy
func (h *PolicyHandler) IssuePolicy(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid sale ID", nil)
		return
	}

	policy, err := h.policyService.IssuePolicy(c.Request.Context(), saleID)
	if err != nil {
		handleServiceError(c, err, "sale")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPolicyIssued),
		"policy":  policy,
	})
}
