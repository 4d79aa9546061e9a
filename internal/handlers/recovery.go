// internal/handlers/recovery.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/corretorpro/crm-backend/internal/i18n"
	"github.com/corretorpro/crm-backend/internal/models"
	"github.com/corretorpro/crm-backend/internal/services"
	"github.com/corretorpro/crm-backend/internal/utils"
)

type RecoveryHandler struct {
	recoveryService *services.RecoveryService
}

func NewRecoveryHandler(recoveryService *services.RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{
		recoveryService: recoveryService,
	}
}

type triggerRecoveryRequest struct {
	LeadID uuid.UUID             `json:"lead_id" validate:"required"`
	Reason models.RecoveryReason `json:"reason" validate:"required,oneof=abandono sem_resposta checkout_expirado pagamento_falhou"`
}

// POST /recovery/trigger
func (h *RecoveryHandler) Trigger(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req triggerRecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	campaign, err := h.recoveryService.TriggerRecovery(c.Request.Context(), req.LeadID, req.Reason)
	if err != nil {
		handleServiceError(c, err, "lead")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyRecoveryTriggered),
		"campaign": campaign,
	})
}

// POST /recovery/send
func (h *RecoveryHandler) Send(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req triggerRecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.recoveryService.SendRecoveryMessage(c.Request.Context(), req.LeadID, req.Reason)
	if err != nil {
		handleServiceError(c, err, "recovery")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyRecoverySent),
		"sent":     result.Sent,
		"campaign": result.Campaign,
	})
}

// GET /recovery/due
func (h *RecoveryHandler) ListDue(c *gin.Context) {
	campaigns, err := h.recoveryService.ListDue(c.Request.Context(), time.Now())
	if err != nil {
		handleServiceError(c, err, "recovery")
		return
	}

	utils.SuccessResponse(c, gin.H{"campaigns": campaigns})
}

// POST /recovery/process-due
func (h *RecoveryHandler) ProcessDue(c *gin.Context) {
	summary, err := h.recoveryService.ProcessDue(c.Request.Context())
	if err != nil {
		handleServiceError(c, err, "recovery")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"processed": len(summary),
		"results":   summary,
	})
}

type markRecoveredRequest struct {
	LeadID         uuid.UUID `json:"lead_id" validate:"required"`
	RecoveredValue float64   `json:"recovered_value"`
}

// POST /recovery/recovered
func (h *RecoveryHandler) MarkRecovered(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req markRecoveredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	campaign, err := h.recoveryService.MarkRecovered(c.Request.Context(), req.LeadID, req.RecoveredValue)
	if err != nil {
		handleServiceError(c, err, "recovery")
		return
	}

	utils.SuccessResponse(c, gin.H{"campaign": campaign})
}
