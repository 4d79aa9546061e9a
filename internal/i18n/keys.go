// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAdminAccessDenied      = "auth.admin_access_denied"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// Sales
	KeySaleNotFound          = "sale.not_found"
	KeySaleCreated           = "sale.created"
	KeySaleTransitioned      = "sale.transitioned"
	KeySaleInvalidTransition = "sale.invalid_transition"
	KeySaleConflict          = "sale.conflict"

	// Policies
	KeyPolicyNotFound = "policy.not_found"
	KeyPolicyIssued   = "policy.issued"

	// Payments
	KeyPaymentSuccess  = "payment.success"
	KeyPaymentNotFound = "payment.not_found"

	// Recovery
	KeyRecoveryNotFound  = "recovery.not_found"
	KeyRecoveryTriggered = "recovery.triggered"
	KeyRecoverySent      = "recovery.sent"

	// Leads
	KeyLeadNotFound  = "lead.not_found"
	KeyLeadQualified = "lead.qualified"

	// Workflows
	KeyWorkflowNotFound = "workflow.not_found"
	KeyWorkflowStarted  = "workflow.started"
)
