// internal/services/workflow_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/corretorpro/crm-backend/internal/models"
	"github.com/corretorpro/crm-backend/internal/utils"
)

// Workflow identifiers. These are persisted on execution rows and appear
// in API payloads; renaming one is a breaking change.
const (
	WorkflowLeadQualification     = "lead-qualification"
	WorkflowPaymentFollowUp       = "payment-follow-up"
	WorkflowPolicyEmission        = "policy-emission"
	WorkflowRecoveryCampaign      = "recovery-campaign"
	WorkflowCommissionCalculation = "commission-calculation"
)

// ErrUnknownWorkflow is kept separate from ErrValidation so callers can
// distinguish a bad workflow id from a bad payload.
var ErrUnknownWorkflow = errors.New("unknown workflow")

type WorkflowService struct {
	db            *gorm.DB
	leads         *LeadService
	sales         *SaleService
	policies      *PolicyService
	commissions   *CommissionService
	recovery      *RecoveryService
	messenger     Messenger
	notifications *NotificationService
	now           func() time.Time
}

func NewWorkflowService(
	db *gorm.DB,
	leads *LeadService,
	sales *SaleService,
	policies *PolicyService,
	commissions *CommissionService,
	recovery *RecoveryService,
	messenger Messenger,
	notifications *NotificationService,
) *WorkflowService {
	return &WorkflowService{
		db:            db,
		leads:         leads,
		sales:         sales,
		policies:      policies,
		commissions:   commissions,
		recovery:      recovery,
		messenger:     messenger,
		notifications: notifications,
		now:           time.Now,
	}
}

// newExecutionID builds "exec_{epoch ms}_{random base36}". The random
// suffix keeps executions started in the same millisecond distinct.
func newExecutionID(now time.Time) (string, error) {
	suffix, err := utils.GenerateBase36(9)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("exec_%d_%s", now.UnixMilli(), suffix), nil
}

// Execute runs a workflow synchronously: a running execution row is
// recorded first, then exactly one terminal update follows, completed
// with the result or failed with the error. The error is still returned
// to the caller after being recorded.
func (s *WorkflowService) Execute(ctx context.Context, workflowID string, triggerType models.TriggerType, payload models.JSONB) (*models.WorkflowExecution, error) {
	start := s.now()
	executionID, err := newExecutionID(start)
	if err != nil {
		return nil, fmt.Errorf("failed to generate execution id: %w", err)
	}

	execution := &models.WorkflowExecution{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		TriggerType: triggerType,
		TriggerData: payload,
		Status:      models.WorkflowStatusRunning,
		StartedAt:   start,
	}
	if err := s.db.WithContext(ctx).Create(execution).Error; err != nil {
		return nil, fmt.Errorf("failed to record workflow execution: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"execution_id": executionID,
		"workflow_id":  workflowID,
		"trigger":      triggerType,
	}).Info("Workflow execution started")

	result, runErr := s.dispatch(ctx, workflowID, payload)

	finished := s.now()
	duration := finished.Sub(start).Milliseconds()

	if runErr != nil {
		patch := map[string]interface{}{
			"status":        models.WorkflowStatusFailed,
			"error_message": runErr.Error(),
			"finished_at":   &finished,
			"duration_ms":   duration,
		}
		if err := s.db.WithContext(ctx).Model(execution).Updates(patch).Error; err != nil {
			logrus.WithError(err).WithField("execution_id", executionID).
				Error("Failed to record workflow failure")
		}
		execution.Status = models.WorkflowStatusFailed
		execution.ErrorMessage = runErr.Error()
		execution.FinishedAt = &finished
		execution.DurationMs = duration

		logrus.WithError(runErr).WithFields(logrus.Fields{
			"execution_id": executionID,
			"workflow_id":  workflowID,
			"duration_ms":  duration,
		}).Error("Workflow execution failed")

		return execution, runErr
	}

	patch := map[string]interface{}{
		"status":      models.WorkflowStatusCompleted,
		"result":      result,
		"finished_at": &finished,
		"duration_ms": duration,
	}
	if err := s.db.WithContext(ctx).Model(execution).Updates(patch).Error; err != nil {
		return nil, fmt.Errorf("failed to record workflow completion: %w", err)
	}
	execution.Status = models.WorkflowStatusCompleted
	execution.Result = result
	execution.FinishedAt = &finished
	execution.DurationMs = duration

	logrus.WithFields(logrus.Fields{
		"execution_id": executionID,
		"workflow_id":  workflowID,
		"duration_ms":  duration,
	}).Info("Workflow execution completed")

	return execution, nil
}

// DispatchAsync satisfies the Dispatcher interface. Failures are already
// persisted on the execution row by Execute, so here they are only logged.
func (s *WorkflowService) DispatchAsync(workflowID string, triggerType models.TriggerType, payload models.JSONB) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if _, err := s.Execute(ctx, workflowID, triggerType, payload); err != nil {
			logrus.WithError(err).WithField("workflow_id", workflowID).
				Error("Async workflow dispatch failed")
		}
	}()
}

func (s *WorkflowService) dispatch(ctx context.Context, workflowID string, payload models.JSONB) (models.JSONB, error) {
	switch workflowID {
	case WorkflowLeadQualification:
		return s.runLeadQualification(ctx, payload)
	case WorkflowPolicyEmission:
		return s.runPolicyEmission(ctx, payload)
	case WorkflowCommissionCalculation:
		return s.runCommissionCalculation(ctx, payload)
	case WorkflowRecoveryCampaign:
		return s.runRecoveryCampaign(ctx, payload)
	case WorkflowPaymentFollowUp:
		return s.runPaymentFollowUp(ctx, payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorkflow, workflowID)
	}
}

func payloadUUID(payload models.JSONB, key string) (uuid.UUID, error) {
	raw, ok := payload[key]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing %q in trigger payload", ErrValidation, key)
	}
	str, ok := raw.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %q must be a string", ErrValidation, key)
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a valid id: %v", ErrValidation, key, err)
	}
	return id, nil
}

func (s *WorkflowService) runLeadQualification(ctx context.Context, payload models.JSONB) (models.JSONB, error) {
	leadID, err := payloadUUID(payload, "lead_id")
	if err != nil {
		return nil, err
	}

	outcome, err := s.leads.QualifyLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	result := models.JSONB{
		"lead_id":    leadID.String(),
		"qualified":  outcome.Qualified,
		"intent":     outcome.Intent,
		"confidence": outcome.Confidence,
	}
	if outcome.Sale != nil {
		result["sale_id"] = outcome.Sale.ID.String()
	}
	return result, nil
}

func (s *WorkflowService) runPolicyEmission(ctx context.Context, payload models.JSONB) (models.JSONB, error) {
	saleID, err := payloadUUID(payload, "sale_id")
	if err != nil {
		return nil, err
	}

	policy, err := s.policies.IssuePolicy(ctx, saleID)
	if err != nil {
		return nil, err
	}

	return models.JSONB{
		"sale_id":       saleID.String(),
		"policy_id":     policy.ID.String(),
		"policy_number": policy.PolicyNumber,
		"insurer":       policy.Insurer,
		"status":        string(policy.Status),
	}, nil
}

func (s *WorkflowService) runCommissionCalculation(ctx context.Context, payload models.JSONB) (models.JSONB, error) {
	saleID, err := payloadUUID(payload, "sale_id")
	if err != nil {
		return nil, err
	}

	calc, err := s.commissions.CalculateForSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	return models.JSONB{
		"sale_id": saleID.String(),
		"count":   len(calc.Commissions),
		"total":   calc.Total,
	}, nil
}

func (s *WorkflowService) runRecoveryCampaign(ctx context.Context, payload models.JSONB) (models.JSONB, error) {
	leadID, err := payloadUUID(payload, "lead_id")
	if err != nil {
		return nil, err
	}

	reasonRaw, _ := payload["reason"].(string)
	reason := models.RecoveryReason(reasonRaw)
	if reason == "" {
		reason = models.RecoveryReasonAbandono
	}

	campaign, err := s.recovery.TriggerRecovery(ctx, leadID, reason)
	if err != nil {
		return nil, err
	}

	return models.JSONB{
		"lead_id":     leadID.String(),
		"campaign_id": campaign.ID.String(),
		"reason":      string(campaign.Reason),
		"status":      string(campaign.Status),
	}, nil
}

// runPaymentFollowUp sends a gentle nudge for a sale sitting in proposta.
// A sale that already moved on is a no-op, not an error.
func (s *WorkflowService) runPaymentFollowUp(ctx context.Context, payload models.JSONB) (models.JSONB, error) {
	saleID, err := payloadUUID(payload, "sale_id")
	if err != nil {
		return nil, err
	}

	var sale models.Sale
	if err := s.db.WithContext(ctx).
		Preload("Client").
		First(&sale, "id = ?", saleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sale %s", ErrNotFound, saleID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if sale.Status != models.SaleStatusProposta {
		return models.JSONB{
			"sale_id": saleID.String(),
			"sent":    false,
			"status":  string(sale.Status),
		}, nil
	}

	message := fmt.Sprintf(
		"Olá %s! Sua proposta de seguro está pronta e aguardando o pagamento. Qualquer dúvida, é só responder por aqui.",
		sale.Client.Name,
	)
	if err := s.messenger.Send(ctx, sale.Client.Phone, message); err != nil {
		return nil, fmt.Errorf("%w: payment follow-up send failed: %v", ErrIntegration, err)
	}

	return models.JSONB{
		"sale_id": saleID.String(),
		"sent":    true,
	}, nil
}

// ListExecutions returns recorded executions, optionally filtered by
// workflow id and status.
func (s *WorkflowService) ListExecutions(ctx context.Context, workflowID string, status models.WorkflowStatus, params utils.PaginationParams) ([]models.WorkflowExecution, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.WorkflowExecution{})
	if workflowID != "" {
		query = query.Where("workflow_id = ?", workflowID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count executions: %w", err)
	}

	allowedSortFields := []string{"started_at", "duration_ms", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var executions []models.WorkflowExecution
	if err := query.Find(&executions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch executions: %w", err)
	}

	return executions, total, nil
}

// ProcessFollowUps drains pending outbox tasks. Each task is marked
// processed or failed individually; one bad task never blocks the rest.
func (s *WorkflowService) ProcessFollowUps(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}

	var tasks []models.FollowUpTask
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.FollowUpStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch follow-up tasks: %w", err)
	}

	processed := 0
	for _, task := range tasks {
		if err := s.runFollowUp(ctx, &task); err != nil {
			patch := map[string]interface{}{
				"status":      models.FollowUpStatusFailed,
				"retry_count": gorm.Expr("retry_count + 1"),
				"last_error":  err.Error(),
			}
			if dbErr := s.db.WithContext(ctx).Model(&task).Updates(patch).Error; dbErr != nil {
				logrus.WithError(dbErr).WithField("task_id", task.ID).
					Error("Failed to mark follow-up task failed")
			}
			logrus.WithError(err).WithFields(logrus.Fields{
				"task_id":   task.ID,
				"task_type": task.TaskType,
			}).Warn("Follow-up task failed")
			continue
		}

		now := s.now()
		patch := map[string]interface{}{
			"status":       models.FollowUpStatusProcessed,
			"processed_at": &now,
		}
		if err := s.db.WithContext(ctx).Model(&task).Updates(patch).Error; err != nil {
			logrus.WithError(err).WithField("task_id", task.ID).
				Error("Failed to mark follow-up task processed")
			continue
		}
		processed++
	}

	return processed, nil
}

func (s *WorkflowService) runFollowUp(ctx context.Context, task *models.FollowUpTask) error {
	switch task.TaskType {
	case TaskTypeWelcomeKit:
		name, _ := task.Payload["client_name"].(string)
		phone, _ := task.Payload["client_phone"].(string)
		number, _ := task.Payload["policy_number"].(string)
		if phone == "" {
			return fmt.Errorf("%w: welcome kit task missing client_phone", ErrValidation)
		}

		message := fmt.Sprintf(
			"Bem-vindo(a), %s! Sua apólice %s está ativa. Guarde este número e conte com a gente para qualquer sinistro ou dúvida.",
			name, number,
		)
		if err := s.messenger.Send(ctx, phone, message); err != nil {
			return err
		}

		// Email copy is best-effort.
		if email, _ := task.Payload["client_email"].(string); email != "" && s.notifications != nil {
			if err := s.notifications.SendWelcomeKitEmail(email, name, number); err != nil {
				logrus.WithError(err).WithField("task_id", task.ID).
					Warn("Welcome kit email failed")
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown task type %q", ErrValidation, task.TaskType)
	}
}
