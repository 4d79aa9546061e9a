// internal/handlers/webhook.go
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/corretorpro/crm-backend/internal/config"
	"github.com/corretorpro/crm-backend/internal/models"
	"github.com/corretorpro/crm-backend/internal/services"
	"github.com/corretorpro/crm-backend/internal/utils"
)

const maxWebhookBodyBytes = 64 * 1024

type WebhookHandler struct {
	config         *config.Config
	paymentService *services.PaymentService
	leadService    *services.LeadService
	dispatcher     services.Dispatcher
}

func NewWebhookHandler(cfg *config.Config, paymentService *services.PaymentService, leadService *services.LeadService, dispatcher services.Dispatcher) *WebhookHandler {
	return &WebhookHandler{
		config:         cfg,
		paymentService: paymentService,
		leadService:    leadService,
		dispatcher:     dispatcher,
	}
}

// POST /webhooks/stripe
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read webhook body", nil)
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.config.Payment.StripeWebhookSecret)
	if err != nil {
		logrus.WithError(err).Warn("Stripe webhook signature verification failed")
		utils.BadRequestResponse(c, "Invalid webhook signature", nil)
		return
	}

	if err := h.paymentService.HandleStripeEvent(c.Request.Context(), event); err != nil {
		// Non-2xx makes Stripe redeliver; every branch is replay safe.
		logrus.WithError(err).WithField("event_type", event.Type).
			Error("Failed to process Stripe event")
		utils.InternalErrorResponse(c, "Failed to process event")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

type whatsAppInboundRequest struct {
	From string `json:"from" validate:"required"`
	Name string `json:"name"`
	Text string `json:"text"`
}

// POST /webhooks/whatsapp
//
// Inbound WhatsApp messages create or update the lead and schedule the
// qualification workflow asynchronously, so the provider gets its 200
// without waiting on classification.
func (h *WebhookHandler) HandleWhatsApp(c *gin.Context) {
	if h.config.WhatsApp.WebhookToken != "" &&
		c.GetHeader("X-Webhook-Token") != h.config.WhatsApp.WebhookToken {
		utils.UnauthorizedResponse(c, "Invalid webhook token")
		return
	}

	var req whatsAppInboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid webhook payload", err.Error())
		return
	}

	lead, err := h.leadService.IntakeLead(c.Request.Context(), &services.IntakeLeadRequest{
		Name:    req.Name,
		Phone:   req.From,
		Source:  "whatsapp",
		Message: req.Text,
	})
	if err != nil {
		handleServiceError(c, err, "lead")
		return
	}

	if lead.Status == models.LeadStatusNovo {
		h.dispatcher.DispatchAsync(services.WorkflowLeadQualification, models.TriggerTypeWebhook,
			models.JSONB{"lead_id": lead.ID.String()})
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "lead_id": lead.ID})
}

// GET /webhooks/whatsapp is the provider's verification ping.
func (h *WebhookHandler) VerifyWhatsApp(c *gin.Context) {
	token := c.Query("token")
	if h.config.WhatsApp.WebhookToken != "" && token != h.config.WhatsApp.WebhookToken {
		utils.UnauthorizedResponse(c, "Invalid webhook token")
		return
	}
	c.String(http.StatusOK, c.Query("challenge"))
}
