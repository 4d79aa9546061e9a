// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/corretorpro/crm-backend/internal/config"
	"github.com/corretorpro/crm-backend/internal/handlers"
	"github.com/corretorpro/crm-backend/internal/middleware"
	"github.com/corretorpro/crm-backend/internal/services"
	"github.com/corretorpro/crm-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	messenger := services.NewWhatsAppClient(cfg.WhatsApp)
	documentService, err := services.NewDocumentService(cfg)
	if err != nil {
		panic(err)
	}

	notificationService := services.NewNotificationService(cfg)
	authService := services.NewAuthService(db, cfg)
	leadService := services.NewLeadService(db, nil)
	saleService := services.NewSaleService(db)
	policyService := services.NewPolicyService(db, cfg, documentService, messenger, notificationService)
	commissionService := services.NewCommissionService(db)
	recoveryService := services.NewRecoveryService(db, messenger, cfg.Recovery.MaxAttempts)
	workflowService := services.NewWorkflowService(db, leadService, saleService, policyService, commissionService, recoveryService, messenger, notificationService)
	paymentService := services.NewPaymentService(db, cfg, saleService, recoveryService)

	// The sale service schedules workflows and the orchestrator runs sale
	// operations; the dispatcher is wired after both exist.
	saleService.SetDispatcher(workflowService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	leadHandler := handlers.NewLeadHandler(leadService)
	saleHandler := handlers.NewSaleHandler(saleService, paymentService)
	policyHandler := handlers.NewPolicyHandler(policyService)
	commissionHandler := handlers.NewCommissionHandler(commissionService)
	recoveryHandler := handlers.NewRecoveryHandler(recoveryService)
	workflowHandler := handlers.NewWorkflowHandler(workflowService)
	webhookHandler := handlers.NewWebhookHandler(cfg, paymentService, leadService, workflowService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// Webhooks are authenticated by signature or token, not JWT.
	webhooks := r.Group("/webhooks")
	webhooks.Use(middleware.WebhookRateLimit())
	{
		webhooks.POST("/stripe", webhookHandler.HandleStripe)
		webhooks.GET("/whatsapp", webhookHandler.VerifyWhatsApp)
		webhooks.POST("/whatsapp", webhookHandler.HandleWhatsApp)
	}

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
		}

		// Lead routes
		leads := v1.Group("/leads")
		leads.Use(middleware.AuthRequired())
		{
			leads.POST("", leadHandler.IntakeLead)
			leads.GET("", leadHandler.ListLeads)
			leads.GET("/:id", leadHandler.GetLead)
			leads.POST("/:id/qualify", leadHandler.QualifyLead)
		}

		// Sale routes
		sales := v1.Group("/sales")
		sales.Use(middleware.AuthRequired())
		{
			sales.POST("", saleHandler.CreateSale)
			sales.GET("", saleHandler.ListSales)
			sales.GET("/:id", saleHandler.GetSale)
			sales.PATCH("/:id/status", saleHandler.Transition)
			sales.POST("/:id/checkout", saleHandler.CreateCheckout)
			sales.POST("/:id/policy", policyHandler.IssuePolicy)
			sales.GET("/:id/commissions", commissionHandler.ListForSale)
			sales.POST("/:id/commissions/calculate", commissionHandler.Calculate)
		}

		// Policy routes
		policies := v1.Group("/policies")
		policies.Use(middleware.AuthRequired())
		{
			policies.GET("", policyHandler.ListPolicies)
			policies.GET("/:id", policyHandler.GetPolicy)
		}

		// Recovery campaign routes
		recovery := v1.Group("/recovery")
		recovery.Use(middleware.AuthRequired())
		{
			recovery.POST("/trigger", recoveryHandler.Trigger)
			recovery.POST("/send", recoveryHandler.Send)
			recovery.GET("/due", recoveryHandler.ListDue)
			recovery.POST("/process-due", recoveryHandler.ProcessDue)
			recovery.POST("/recovered", recoveryHandler.MarkRecovered)
		}

		// Workflow routes
		workflows := v1.Group("/workflows")
		workflows.Use(middleware.AuthRequired())
		{
			workflows.POST("/run", workflowHandler.Run)
			workflows.GET("/executions", workflowHandler.ListExecutions)
			workflows.POST("/follow-ups/process", middleware.AdminRequired(), workflowHandler.ProcessFollowUps)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", cfg.Policy.LocalStoragePath)
	}

	return r
}
