// internal/handlers/workflow.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/corretorpro/crm-backend/internal/i18n"
	"github.com/corretorpro/crm-backend/internal/models"
	"github.com/corretorpro/crm-backend/internal/services"
	"github.com/corretorpro/crm-backend/internal/utils"
)

type WorkflowHandler struct {
	workflowService *services.WorkflowService
}

func NewWorkflowHandler(workflowService *services.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: workflowService,
	}
}

type runWorkflowRequest struct {
	WorkflowID  string       `json:"workflow_id" validate:"required"`
	TriggerType string       `json:"trigger_type" validate:"omitempty,oneof=webhook schedule event manual"`
	Payload     models.JSONB `json:"payload"`
}

// POST /workflows/run
func (h *WorkflowHandler) Run(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req runWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	trigger := models.TriggerType(req.TriggerType)
	if trigger == "" {
		trigger = models.TriggerTypeManual
	}

	execution, err := h.workflowService.Execute(c.Request.Context(), req.WorkflowID, trigger, req.Payload)
	if err != nil {
		// The failed execution row is part of the response; clients see
		// both the HTTP error and the recorded execution.
		handleServiceError(c, err, "workflow")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":   i18n.T(lang, i18n.KeyWorkflowStarted),
		"execution": execution,
	})
}

// GET /workflows/executions
func (h *WorkflowHandler) ListExecutions(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	workflowID := c.Query("workflow_id")
	status := models.WorkflowStatus(params.Status)

	executions, total, err := h.workflowService.ListExecutions(c.Request.Context(), workflowID, status, params)
	if err != nil {
		handleServiceError(c, err, "workflow")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(executions, total, params))
}

// POST /workflows/follow-ups/process
func (h *WorkflowHandler) ProcessFollowUps(c *gin.Context) {
	processed, err := h.workflowService.ProcessFollowUps(c.Request.Context(), 50)
	if err != nil {
		handleServiceError(c, err, "workflow")
		return
	}

	utils.SuccessResponse(c, gin.H{"processed": processed})
}
