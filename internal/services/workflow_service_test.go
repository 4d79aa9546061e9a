package services

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/corretorpro/crm-backend/internal/models"
	"github.com/corretorpro/crm-backend/internal/utils"
)

var executionIDPattern = regexp.MustCompile(`^exec_\d+_[a-z0-9]+$`)

func newWorkflowFixture(t *testing.T, db *gorm.DB, messenger *fakeMessenger, docs *fakeDocuments) *WorkflowService {
	t.Helper()
	cfg := newTestConfig()
	notifications := NewNotificationService(cfg)
	leads := NewLeadService(db, nil)
	sales := NewSaleService(db)
	policies := NewPolicyService(db, cfg, docs, messenger, notifications)
	commissions := NewCommissionService(db)
	recovery := NewRecoveryService(db, messenger, cfg.Recovery.MaxAttempts)
	return NewWorkflowService(db, leads, sales, policies, commissions, recovery, messenger, notifications)
}

func TestExecute_UnknownWorkflowRecordsFailure(t *testing.T) {
	db := newTestDB(t)
	svc := newWorkflowFixture(t, db, &fakeMessenger{}, &fakeDocuments{})

	execution, err := svc.Execute(context.Background(), "nonexistent", models.TriggerTypeManual, models.JSONB{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownWorkflow))

	// The failure must be recorded on exactly one terminal row.
	require.NotNil(t, execution)
	var rows []models.WorkflowExecution
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, models.WorkflowStatusFailed, rows[0].Status)
	assert.Contains(t, rows[0].ErrorMessage, "nonexistent")
	assert.NotNil(t, rows[0].FinishedAt)
}

func TestExecute_PolicyEmissionCompletes(t *testing.T) {
	db := newTestDB(t)
	seedInsurerRules(t, db)
	messenger := &fakeMessenger{}
	svc := newWorkflowFixture(t, db, messenger, &fakeDocuments{})
	sale := seedSale(t, db, models.SaleStatusPago, 2500)

	execution, err := svc.Execute(context.Background(), WorkflowPolicyEmission, models.TriggerTypeEvent,
		models.JSONB{"sale_id": sale.ID.String()})
	require.NoError(t, err)

	assert.True(t, executionIDPattern.MatchString(execution.ExecutionID), "got %q", execution.ExecutionID)
	assert.Equal(t, models.WorkflowStatusCompleted, execution.Status)
	assert.Equal(t, string(models.PolicyStatusEntregue), execution.Result["status"])
	assert.NotEmpty(t, execution.Result["policy_number"])
	require.NotNil(t, execution.FinishedAt)
	assert.GreaterOrEqual(t, execution.DurationMs, int64(0))
	assert.Equal(t, 1, messenger.count())
}

func TestExecute_ExecutionIDsAreUnique(t *testing.T) {
	db := newTestDB(t)
	svc := newWorkflowFixture(t, db, &fakeMessenger{}, &fakeDocuments{})
	lead := seedLead(t, db, "quero seguro para meu carro")

	first, err := svc.Execute(context.Background(), WorkflowRecoveryCampaign, models.TriggerTypeManual,
		models.JSONB{"lead_id": lead.ID.String()})
	require.NoError(t, err)

	second, err := svc.Execute(context.Background(), WorkflowRecoveryCampaign, models.TriggerTypeManual,
		models.JSONB{"lead_id": lead.ID.String()})
	require.NoError(t, err)

	assert.NotEqual(t, first.ExecutionID, second.ExecutionID)
	assert.True(t, executionIDPattern.MatchString(first.ExecutionID))
	assert.True(t, executionIDPattern.MatchString(second.ExecutionID))
}

func TestExecute_MissingPayloadKeyFails(t *testing.T) {
	db := newTestDB(t)
	svc := newWorkflowFixture(t, db, &fakeMessenger{}, &fakeDocuments{})

	_, err := svc.Execute(context.Background(), WorkflowPolicyEmission, models.TriggerTypeManual, models.JSONB{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var row models.WorkflowExecution
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, models.WorkflowStatusFailed, row.Status)
	assert.Contains(t, row.ErrorMessage, "sale_id")
}

func TestExecute_RecoveryCampaignDefaultsReason(t *testing.T) {
	db := newTestDB(t)
	svc := newWorkflowFixture(t, db, &fakeMessenger{}, &fakeDocuments{})
	lead := seedLead(t, db, "quero um seguro")

	execution, err := svc.Execute(context.Background(), WorkflowRecoveryCampaign, models.TriggerTypeEvent,
		models.JSONB{"lead_id": lead.ID.String()})
	require.NoError(t, err)

	assert.Equal(t, string(models.RecoveryReasonAbandono), execution.Result["reason"])
	assert.Equal(t, string(models.CampaignStatusAtivo), execution.Result["status"])
}

func TestExecute_PaymentFollowUp(t *testing.T) {
	db := newTestDB(t)
	messenger := &fakeMessenger{}
	svc := newWorkflowFixture(t, db, messenger, &fakeDocuments{})

	proposta := seedSale(t, db, models.SaleStatusProposta, 1500)
	execution, err := svc.Execute(context.Background(), WorkflowPaymentFollowUp, models.TriggerTypeSchedule,
		models.JSONB{"sale_id": proposta.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, true, execution.Result["sent"])
	assert.Equal(t, 1, messenger.count())

	// A sale that already moved past proposta is a no-op, not an error.
	pago := seedSale(t, db, models.SaleStatusPago, 1500)
	execution, err = svc.Execute(context.Background(), WorkflowPaymentFollowUp, models.TriggerTypeSchedule,
		models.JSONB{"sale_id": pago.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, false, execution.Result["sent"])
	assert.Equal(t, 1, messenger.count())
}

func TestListExecutions_Filters(t *testing.T) {
	db := newTestDB(t)
	svc := newWorkflowFixture(t, db, &fakeMessenger{}, &fakeDocuments{})
	lead := seedLead(t, db, "quero um seguro")

	_, err := svc.Execute(context.Background(), WorkflowRecoveryCampaign, models.TriggerTypeManual,
		models.JSONB{"lead_id": lead.ID.String()})
	require.NoError(t, err)
	_, _ = svc.Execute(context.Background(), "nonexistent", models.TriggerTypeManual, models.JSONB{})

	params := utils.PaginationParams{Page: 1, Limit: 20, Order: "desc"}

	all, total, err := svc.ListExecutions(context.Background(), "", "", params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	failed, total, err := svc.ListExecutions(context.Background(), "", models.WorkflowStatusFailed, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, failed, 1)
	assert.Equal(t, "nonexistent", failed[0].WorkflowID)

	byID, total, err := svc.ListExecutions(context.Background(), WorkflowRecoveryCampaign, "", params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, byID, 1)
	assert.Equal(t, models.WorkflowStatusCompleted, byID[0].Status)
}

func TestProcessFollowUps_WelcomeKit(t *testing.T) {
	db := newTestDB(t)
	messenger := &fakeMessenger{}
	svc := newWorkflowFixture(t, db, messenger, &fakeDocuments{})

	good := &models.FollowUpTask{
		TaskType: TaskTypeWelcomeKit,
		Payload: models.JSONB{
			"client_name":   "Maria Souza",
			"client_phone":  "+5511999990000",
			"policy_number": "202612345678",
		},
	}
	require.NoError(t, db.Create(good).Error)

	// Missing phone cannot be delivered and must be marked failed.
	bad := &models.FollowUpTask{
		TaskType: TaskTypeWelcomeKit,
		Payload:  models.JSONB{"client_name": "Sem Telefone"},
	}
	require.NoError(t, db.Create(bad).Error)

	processed, err := svc.ProcessFollowUps(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	require.Equal(t, 1, messenger.count())
	assert.Equal(t, "+5511999990000", messenger.sent[0].To)
	assert.Contains(t, messenger.sent[0].Text, "202612345678")

	var reloaded models.FollowUpTask
	require.NoError(t, db.First(&reloaded, "id = ?", good.ID).Error)
	assert.Equal(t, models.FollowUpStatusProcessed, reloaded.Status)
	assert.NotNil(t, reloaded.ProcessedAt)

	reloaded = models.FollowUpTask{}
	require.NoError(t, db.First(&reloaded, "id = ?", bad.ID).Error)
	assert.Equal(t, models.FollowUpStatusFailed, reloaded.Status)
	assert.Equal(t, 1, reloaded.RetryCount)
	assert.Contains(t, reloaded.LastError, "client_phone")
}
