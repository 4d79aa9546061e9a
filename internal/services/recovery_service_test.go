package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corretorpro/crm-backend/internal/models"
)

func TestTriggerRecovery_CreatesActiveCampaign(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecoveryService(db, &fakeMessenger{}, 3)
	fixed := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	lead := seedLead(t, db, "quero um seguro")

	campaign, err := svc.TriggerRecovery(context.Background(), lead.ID, models.RecoveryReasonAbandono)
	require.NoError(t, err)

	assert.Equal(t, models.CampaignStatusAtivo, campaign.Status)
	assert.Equal(t, 0, campaign.Attempts)
	assert.Equal(t, 3, campaign.MaxAttempts)
	require.NotNil(t, campaign.NextAttemptAt)
	assert.True(t, campaign.NextAttemptAt.Equal(fixed.Add(time.Hour)))
}

func TestTriggerRecovery_ReTriggerReusesActiveRow(t *testing.T) {
	db := newTestDB(t)
	messenger := &fakeMessenger{}
	svc := NewRecoveryService(db, messenger, 3)
	lead := seedLead(t, db, "quero um seguro")

	first, err := svc.TriggerRecovery(context.Background(), lead.ID, models.RecoveryReasonAbandono)
	require.NoError(t, err)

	// A send moves the counter forward; the re-trigger must reset it.
	_, err = svc.SendRecoveryMessage(context.Background(), lead.ID, models.RecoveryReasonAbandono)
	require.NoError(t, err)

	second, err := svc.TriggerRecovery(context.Background(), lead.ID, models.RecoveryReasonPagamentoFalhou)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0, second.Attempts)
	assert.Equal(t, models.RecoveryReasonPagamentoFalhou, second.Reason)

	var count int64
	db.Model(&models.RecoveryCampaign{}).Where("lead_id = ?", lead.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestTriggerRecovery_UnknownLead(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecoveryService(db, &fakeMessenger{}, 3)

	_, err := svc.TriggerRecovery(context.Background(), newUUID(t), models.RecoveryReasonAbandono)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSendRecoveryMessage_BackoffSchedule(t *testing.T) {
	db := newTestDB(t)
	messenger := &fakeMessenger{}
	svc := NewRecoveryService(db, messenger, 3)
	fixed := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	lead := seedLead(t, db, "quero um seguro")

	_, err := svc.TriggerRecovery(context.Background(), lead.ID, models.RecoveryReasonAbandono)
	require.NoError(t, err)

	waits := []time.Duration{60 * time.Minute, 360 * time.Minute, 1440 * time.Minute}
	for i, wait := range waits {
		result, err := svc.SendRecoveryMessage(context.Background(), lead.ID, models.RecoveryReasonAbandono)
		require.NoError(t, err)

		assert.True(t, result.Sent)
		assert.Equal(t, i+1, result.Campaign.Attempts)
		require.NotNil(t, result.Campaign.NextAttemptAt)
		assert.True(t, result.Campaign.NextAttemptAt.Equal(fixed.Add(wait)),
			"attempt %d: want next at +%s, got %s", i+1, wait, result.Campaign.NextAttemptAt)
		assert.Equal(t, RecoveryMessageFor(models.RecoveryReasonAbandono, i+1), result.Message)
	}
	assert.Equal(t, 3, messenger.count())

	// The fourth step cancels without sending.
	result, err := svc.SendRecoveryMessage(context.Background(), lead.ID, models.RecoveryReasonAbandono)
	require.NoError(t, err)
	assert.False(t, result.Sent)
	assert.Equal(t, models.CampaignStatusCancelado, result.Campaign.Status)
	assert.Equal(t, 3, messenger.count())

	// Nothing active remains for this lead.
	_, err = svc.SendRecoveryMessage(context.Background(), lead.ID, models.RecoveryReasonAbandono)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSendRecoveryMessage_SendFailureLeavesCounter(t *testing.T) {
	db := newTestDB(t)
	messenger := &fakeMessenger{failErr: errors.New("whatsapp 503")}
	svc := NewRecoveryService(db, messenger, 3)
	lead := seedLead(t, db, "quero um seguro")

	_, err := svc.TriggerRecovery(context.Background(), lead.ID, models.RecoveryReasonSemResposta)
	require.NoError(t, err)

	_, err = svc.SendRecoveryMessage(context.Background(), lead.ID, models.RecoveryReasonSemResposta)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIntegration))

	var campaign models.RecoveryCampaign
	require.NoError(t, db.Where("lead_id = ?", lead.ID).First(&campaign).Error)
	assert.Equal(t, 0, campaign.Attempts, "a failed send must not consume an attempt")
}

func TestRecoveryMessageFor_Clamping(t *testing.T) {
	last := RecoveryMessageFor(models.RecoveryReasonAbandono, 3)
	assert.Equal(t, last, RecoveryMessageFor(models.RecoveryReasonAbandono, 5))
	assert.Equal(t, RecoveryMessageFor(models.RecoveryReasonAbandono, 1), RecoveryMessageFor(models.RecoveryReasonAbandono, 0))

	// Unknown reasons reuse the abandono copy.
	assert.Equal(t, RecoveryMessageFor(models.RecoveryReasonAbandono, 2), RecoveryMessageFor(models.RecoveryReason("outro"), 2))

	for _, reason := range []models.RecoveryReason{
		models.RecoveryReasonAbandono,
		models.RecoveryReasonSemResposta,
		models.RecoveryReasonCheckoutExpirado,
		models.RecoveryReasonPagamentoFalhou,
	} {
		for attempt := 1; attempt <= 3; attempt++ {
			assert.NotEmpty(t, RecoveryMessageFor(reason, attempt))
		}
	}
}

func TestBackoffFor_Clamping(t *testing.T) {
	assert.Equal(t, 60*time.Minute, BackoffFor(0))
	assert.Equal(t, 360*time.Minute, BackoffFor(1))
	assert.Equal(t, 1440*time.Minute, BackoffFor(2))
	assert.Equal(t, 1440*time.Minute, BackoffFor(7))
	assert.Equal(t, 60*time.Minute, BackoffFor(-1))
}

func TestListDueAndProcessDue(t *testing.T) {
	db := newTestDB(t)
	messenger := &fakeMessenger{}
	svc := NewRecoveryService(db, messenger, 3)
	fixed := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	dueLead := seedLead(t, db, "quero um seguro")
	_, err := svc.TriggerRecovery(context.Background(), dueLead.ID, models.RecoveryReasonAbandono)
	require.NoError(t, err)

	futureLead := &models.Lead{Name: "Ana Lima", Phone: "+5511977776666", Source: "whatsapp", Status: models.LeadStatusNovo}
	require.NoError(t, db.Create(futureLead).Error)
	_, err = svc.TriggerRecovery(context.Background(), futureLead.ID, models.RecoveryReasonAbandono)
	require.NoError(t, err)

	// Only the first campaign is past its next_attempt_at.
	past := fixed.Add(-time.Minute)
	require.NoError(t, db.Model(&models.RecoveryCampaign{}).
		Where("lead_id = ?", dueLead.ID).
		Update("next_attempt_at", &past).Error)

	due, err := svc.ListDue(context.Background(), fixed)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, dueLead.ID, due[0].LeadID)

	summary, err := svc.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, dueLead.ID, summary[0].LeadID)
	assert.True(t, summary[0].Sent)
	assert.Empty(t, summary[0].Error)
	assert.Equal(t, 1, messenger.count())
}

func TestProcessDue_ContinuesPastFailures(t *testing.T) {
	db := newTestDB(t)
	messenger := &fakeMessenger{failErr: errors.New("whatsapp 503")}
	svc := NewRecoveryService(db, messenger, 3)
	fixed := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	leadA := seedLead(t, db, "quero um seguro")
	leadB := &models.Lead{Name: "Ana Lima", Phone: "+5511977776666", Source: "whatsapp", Status: models.LeadStatusNovo}
	require.NoError(t, db.Create(leadB).Error)

	_, err := svc.TriggerRecovery(context.Background(), leadA.ID, models.RecoveryReasonAbandono)
	require.NoError(t, err)
	_, err = svc.TriggerRecovery(context.Background(), leadB.ID, models.RecoveryReasonAbandono)
	require.NoError(t, err)

	past := fixed.Add(-time.Minute)
	require.NoError(t, db.Model(&models.RecoveryCampaign{}).
		Where("status = ?", models.CampaignStatusAtivo).
		Update("next_attempt_at", &past).Error)

	summary, err := svc.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 2)
	for _, item := range summary {
		assert.False(t, item.Sent)
		assert.Contains(t, item.Error, "recovery send failed")
	}
}

func TestMarkRecovered(t *testing.T) {
	db := newTestDB(t)
	svc := NewRecoveryService(db, &fakeMessenger{}, 3)
	lead := seedLead(t, db, "quero um seguro")

	_, err := svc.TriggerRecovery(context.Background(), lead.ID, models.RecoveryReasonCheckoutExpirado)
	require.NoError(t, err)

	campaign, err := svc.MarkRecovered(context.Background(), lead.ID, 1890.50)
	require.NoError(t, err)

	assert.Equal(t, models.CampaignStatusConcluido, campaign.Status)
	assert.True(t, campaign.Success)
	assert.Equal(t, 1890.50, campaign.RecoveredValue)

	_, err = svc.MarkRecovered(context.Background(), lead.ID, 0)
	assert.True(t, errors.Is(err, ErrNotFound))
}
