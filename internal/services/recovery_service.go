// internal/services/recovery_service.go
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
)

type RecoveryService struct {
	db          *gorm.DB
	messenger   Messenger
	maxAttempts int
	now         func() time.Time
}

// recoveryBackoff is the retry schedule in minutes, indexed by the attempt
// count before the send. Clamped to the last entry once exhausted. Must
// stay [60, 360, 1440] for behavioral parity with live campaigns.
var recoveryBackoff = []int{60, 360, 1440}

// recoveryMessages maps (reason, attempt) to the outbound text. Attempts
// are 1-indexed; attempts beyond the table repeat the last message.
var recoveryMessages = map[models.RecoveryReason][]string{
	models.RecoveryReasonAbandono: {
		"Oi! Vimos que você não concluiu o pagamento do seu seguro. Posso te ajudar a finalizar?",
		"Sua proposta de seguro ainda está reservada. Que tal garantir sua proteção hoje?",
		"Última chance! Sua proposta expira em breve. Finalize agora e fique protegido.",
	},
	models.RecoveryReasonSemResposta: {
		"Oi! Ficou alguma dúvida sobre a proposta de seguro que enviamos?",
		"Estamos à disposição para ajustar a proposta ao seu orçamento. Vamos conversar?",
		"Última chance! Sua proposta expira em breve. Responda para mantermos suas condições.",
	},
	models.RecoveryReasonCheckoutExpirado: {
		"Seu link de pagamento expirou, mas geramos um novo para você. Quer finalizar?",
		"Seu seguro está a um passo de ser ativado. O novo link de pagamento continua válido.",
		"Última chance! Depois de hoje as condições da sua proposta serão recalculadas.",
	},
	models.RecoveryReasonPagamentoFalhou: {
		"Seu pagamento não foi aprovado. Quer tentar com outro cartão ou forma de pagamento?",
		"Ainda não conseguimos confirmar seu pagamento. Posso te ajudar a resolver?",
		"Última chance! Regularize o pagamento para não perder as condições da sua proposta.",
	},
}

type RecoverySendResult struct {
	Campaign *models.RecoveryCampaign `json:"campaign"`
	Sent     bool                     `json:"sent"`
	Message  string                   `json:"message,omitempty"`
}

type RecoveryBatchItem struct {
	LeadID  uuid.UUID `json:"lead_id"`
	Sent    bool      `json:"sent"`
	Error   string    `json:"error,omitempty"`
}

func NewRecoveryService(db *gorm.DB, messenger Messenger, maxAttempts int) *RecoveryService {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &RecoveryService{
		db:          db,
		messenger:   messenger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// RecoveryMessageFor returns the message for a 1-indexed attempt, clamping
// past the end of the table.
func RecoveryMessageFor(reason models.RecoveryReason, attempt int) string {
	messages, ok := recoveryMessages[reason]
	if !ok {
		messages = recoveryMessages[models.RecoveryReasonAbandono]
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(messages) {
		attempt = len(messages)
	}
	return messages[attempt-1]
}

// BackoffFor returns the wait before the next attempt, indexed by the
// attempt count before the current send.
func BackoffFor(attemptsBefore int) time.Duration {
	idx := attemptsBefore
	if idx >= len(recoveryBackoff) {
		idx = len(recoveryBackoff) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return time.Duration(recoveryBackoff[idx]) * time.Minute
}

// TriggerRecovery upserts the campaign for a lead: at most one active
// campaign per lead exists, so two concurrent triggers collapse into one
// row. A re-trigger resets the attempt counter.
func (s *RecoveryService) TriggerRecovery(ctx context.Context, leadID uuid.UUID, reason models.RecoveryReason) (*models.RecoveryCampaign, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).First(&lead, "id = ?", leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: lead %s", ErrNotFound, leadID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	nextAttempt := s.now().Add(time.Hour)
	var campaign models.RecoveryCampaign

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("lead_id = ? AND status = ?", leadID, models.CampaignStatusAtivo).
			First(&campaign).Error
		if err == nil {
			return tx.Model(&campaign).Updates(map[string]interface{}{
				"reason":          reason,
				"attempts":        0,
				"next_attempt_at": &nextAttempt,
			}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		campaign = models.RecoveryCampaign{
			LeadID:        leadID,
			Reason:        reason,
			Status:        models.CampaignStatusAtivo,
			Attempts:      0,
			MaxAttempts:   s.maxAttempts,
			NextAttemptAt: &nextAttempt,
		}
		return tx.Create(&campaign).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert recovery campaign: %w", err)
	}

	campaign.Reason = reason
	campaign.Attempts = 0
	campaign.NextAttemptAt = &nextAttempt

	logrus.WithFields(logrus.Fields{
		"lead_id": leadID,
		"reason":  reason,
	}).Info("Recovery campaign triggered")

	return &campaign, nil
}

// SendRecoveryMessage performs one retry step for the lead's active
// campaign. It does not gate on next_attempt_at; schedulers should select
// work through ListDue. A campaign whose attempts are exhausted is
// canceled without sending.
func (s *RecoveryService) SendRecoveryMessage(ctx context.Context, leadID uuid.UUID, reason models.RecoveryReason) (*RecoverySendResult, error) {
	var campaign models.RecoveryCampaign
	if err := s.db.WithContext(ctx).
		Preload("Lead").
		Where("lead_id = ? AND status = ?", leadID, models.CampaignStatusAtivo).
		Order("created_at DESC").
		First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no active recovery campaign for lead %s", ErrNotFound, leadID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if campaign.Attempts >= campaign.MaxAttempts {
		if err := s.db.WithContext(ctx).Model(&campaign).
			Update("status", models.CampaignStatusCancelado).Error; err != nil {
			return nil, fmt.Errorf("failed to cancel campaign: %w", err)
		}
		campaign.Status = models.CampaignStatusCancelado

		logrus.WithFields(logrus.Fields{
			"lead_id":  leadID,
			"attempts": campaign.Attempts,
		}).Info("Recovery campaign canceled, attempts exhausted")

		return &RecoverySendResult{Campaign: &campaign, Sent: false}, nil
	}

	attemptNumber := campaign.Attempts + 1
	message := RecoveryMessageFor(reason, attemptNumber)

	if err := s.messenger.Send(ctx, campaign.Lead.Phone, message); err != nil {
		return nil, fmt.Errorf("%w: recovery send failed: %v", ErrIntegration, err)
	}

	nextAttempt := s.now().Add(BackoffFor(campaign.Attempts))
	if err := s.db.WithContext(ctx).Model(&campaign).Updates(map[string]interface{}{
		"attempts":        attemptNumber,
		"next_attempt_at": &nextAttempt,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to persist campaign attempt: %w", err)
	}
	campaign.Attempts = attemptNumber
	campaign.NextAttemptAt = &nextAttempt

	logrus.WithFields(logrus.Fields{
		"lead_id":      leadID,
		"attempt":      attemptNumber,
		"next_attempt": nextAttempt,
	}).Info("Recovery message sent")

	return &RecoverySendResult{Campaign: &campaign, Sent: true, Message: message}, nil
}

// ListDue returns active campaigns whose next attempt is ready, the
// readiness gate schedulers are expected to use.
func (s *RecoveryService) ListDue(ctx context.Context, now time.Time) ([]models.RecoveryCampaign, error) {
	var campaigns []models.RecoveryCampaign
	if err := s.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.CampaignStatusAtivo, now).
		Order("next_attempt_at ASC").
		Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}
	return campaigns, nil
}

// ProcessDue runs one send step for every due campaign. A failure for one
// lead never aborts the batch; the summary carries per-lead outcomes.
func (s *RecoveryService) ProcessDue(ctx context.Context) ([]RecoveryBatchItem, error) {
	due, err := s.ListDue(ctx, s.now())
	if err != nil {
		return nil, err
	}

	summary := make([]RecoveryBatchItem, 0, len(due))
	for _, campaign := range due {
		item := RecoveryBatchItem{LeadID: campaign.LeadID}

		result, err := s.SendRecoveryMessage(ctx, campaign.LeadID, campaign.Reason)
		if err != nil {
			item.Error = err.Error()
			logrus.WithError(err).WithField("lead_id", campaign.LeadID).
				Warn("Recovery send failed, continuing batch")
		} else {
			item.Sent = result.Sent
		}

		summary = append(summary, item)
	}

	return summary, nil
}

// MarkRecovered closes the lead's active campaign as successful.
func (s *RecoveryService) MarkRecovered(ctx context.Context, leadID uuid.UUID, recoveredValue float64) (*models.RecoveryCampaign, error) {
	var campaign models.RecoveryCampaign
	if err := s.db.WithContext(ctx).
		Where("lead_id = ? AND status = ?", leadID, models.CampaignStatusAtivo).
		Order("created_at DESC").
		First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no active recovery campaign for lead %s", ErrNotFound, leadID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&campaign).Updates(map[string]interface{}{
		"status":          models.CampaignStatusConcluido,
		"success":         true,
		"recovered_value": recoveredValue,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to mark campaign recovered: %w", err)
	}
	campaign.Status = models.CampaignStatusConcluido
	campaign.Success = true
	campaign.RecoveredValue = recoveredValue

	logrus.WithFields(logrus.Fields{
		"lead_id": leadID,
		"value":   recoveredValue,
	}).Info("Recovery campaign completed")

	return &campaign, nil
}
