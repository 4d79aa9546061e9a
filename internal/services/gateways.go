// internal/services/gateways.go
package services

import (
	"context"

	"github.com/corretorpro/crm-backend/internal/models"
)

// Messenger is the outbound messaging gateway. The core renders message
// text and hands it off; delivery mechanics (WhatsApp API, SMTP) live in
// the implementation.
type Messenger interface {
	Send(ctx context.Context, to, text string) error
}

// DocumentGenerator produces the policy document artifact and returns a
// reference URL. The caller measures wall-clock duration.
type DocumentGenerator interface {
	Generate(ctx context.Context, policy *models.Policy, sale *models.Sale) (string, error)
}

// Dispatcher schedules a named workflow without blocking the caller.
// WorkflowService implements it; SaleService uses it to trigger the
// dependent workflows after a sale is paid.
type Dispatcher interface {
	DispatchAsync(workflowID string, triggerType models.TriggerType, payload models.JSONB)
}
