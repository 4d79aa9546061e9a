// internal/services/policy_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/corretorpro/crm-backend/internal/config"
	"github.com/corretorpro/crm-backend/internal/models"
	"github.com/corretorpro/crm-backend/internal/utils"
)

type PolicyService struct {
	db            *gorm.DB
	config        *config.Config
	documents     DocumentGenerator
	messenger     Messenger
	notifications *NotificationService
	now           func() time.Time
}

func NewPolicyService(db *gorm.DB, cfg *config.Config, documents DocumentGenerator, messenger Messenger, notifications *NotificationService) *PolicyService {
	return &PolicyService{
		db:            db,
		config:        cfg,
		documents:     documents,
		messenger:     messenger,
		notifications: notifications,
		now:           time.Now,
	}
}

// GeneratePolicyNumber builds {4-digit year}{last 6 digits of epoch ms}
// {2-digit random}. The format is persisted and must stay stable.
func GeneratePolicyNumber(now time.Time) (string, error) {
	year := strconv.Itoa(now.Year())

	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}

	suffix, err := utils.RandomTwoDigits()
	if err != nil {
		return "", err
	}

	return year + ms + suffix, nil
}

// SelectInsurer picks the insurer for a (category, value) pair from the
// configured rule rows: highest-priority active rule whose category matches
// and whose MinValue the sale value exceeds. Falls back to defaultInsurer.
func SelectInsurer(rules []models.InsurerRule, category string, value float64, defaultInsurer string) string {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})

	for _, rule := range rules {
		if !rule.IsActive || rule.Category != category {
			continue
		}
		if value > rule.MinValue {
			return rule.Insurer
		}
	}
	return defaultInsurer
}

// IssuePolicy runs the full emission workflow for a paid sale. Step
// failures abort the workflow: the policy row is moved to erro and the
// error is returned, never swallowed. Re-invoking for a sale that already
// has a non-erro policy returns that policy, so recovery after a crash
// between payment and emission is a plain re-run.
func (s *PolicyService) IssuePolicy(ctx context.Context, saleID uuid.UUID) (*models.Policy, error) {
	var sale models.Sale
	if err := s.db.WithContext(ctx).
		Preload("Client").Preload("Product").
		First(&sale, "id = ?", saleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sale %s", ErrNotFound, saleID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if sale.Status != models.SaleStatusPago {
		return nil, fmt.Errorf("%w: sale %s is %s, policy emission requires pago", ErrValidation, saleID, sale.Status)
	}

	// Idempotent re-invocation: an existing policy that did not fail is the
	// result of a previous run.
	var existing models.Policy
	err := s.db.WithContext(ctx).
		Where("sale_id = ? AND status <> ?", saleID, models.PolicyStatusErro).
		First(&existing).Error
	if err == nil {
		logrus.WithFields(logrus.Fields{
			"sale_id":   saleID,
			"policy_id": existing.ID,
			"status":    existing.Status,
		}).Info("Policy emission skipped, policy already exists")
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	policy, err := s.createProcessingPolicy(ctx, &sale)
	if err != nil {
		return nil, err
	}

	if err := s.emitAndDeliver(ctx, policy, &sale); err != nil {
		s.markFailed(policy, err)
		return nil, err
	}

	return policy, nil
}

func (s *PolicyService) createProcessingPolicy(ctx context.Context, sale *models.Sale) (*models.Policy, error) {
	today := s.now().Truncate(24 * time.Hour)

	var insurerRules []models.InsurerRule
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&insurerRules).Error; err != nil {
		return nil, fmt.Errorf("failed to load insurer rules: %w", err)
	}
	insurer := SelectInsurer(insurerRules, sale.Product.Category, sale.Value, s.config.Policy.DefaultInsurer)

	policy := &models.Policy{
		SaleID:        sale.ID,
		ClientID:      sale.ClientID,
		ProductID:     sale.ProductID,
		Insurer:       insurer,
		Status:        models.PolicyStatusProcessando,
		CoverageStart: today,
		CoverageEnd:   today.AddDate(0, 0, s.config.Policy.CoverageDays),
	}

	// The number is time-plus-random; retry on the unique index instead of
	// trusting the scheme.
	for attempt := 0; attempt < 5; attempt++ {
		number, err := GeneratePolicyNumber(s.now())
		if err != nil {
			return nil, fmt.Errorf("failed to generate policy number: %w", err)
		}
		policy.PolicyNumber = number

		err = s.db.WithContext(ctx).Create(policy).Error
		if err == nil {
			return policy, nil
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create policy: %w", err)
		}
		policy.ID = uuid.Nil
	}

	return nil, fmt.Errorf("failed to create policy: exhausted policy number retries")
}

func (s *PolicyService) emitAndDeliver(ctx context.Context, policy *models.Policy, sale *models.Sale) error {
	// Document generation is timed; emission_time is a tracked metric.
	start := s.now()
	documentURL, err := s.documents.Generate(ctx, policy, sale)
	if err != nil {
		return fmt.Errorf("%w: document generation failed: %v", ErrIntegration, err)
	}
	emissionMs := time.Since(start).Milliseconds()

	patch := map[string]interface{}{
		"status":           models.PolicyStatusEmitida,
		"document_url":     documentURL,
		"emission_time_ms": emissionMs,
	}
	if err := s.db.WithContext(ctx).Model(policy).Updates(patch).Error; err != nil {
		return fmt.Errorf("failed to mark policy issued: %w", err)
	}
	policy.Status = models.PolicyStatusEmitida
	policy.DocumentURL = documentURL
	policy.EmissionTimeMs = emissionMs

	if err := s.deliverPolicy(ctx, policy, sale); err != nil {
		return err
	}

	document := &models.PolicyDocument{
		PolicyID:    policy.ID,
		FileURL:     documentURL,
		ContentType: "text/html; charset=utf-8",
	}
	if err := s.db.WithContext(ctx).Create(document).Error; err != nil {
		return fmt.Errorf("failed to create policy document record: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"policy_id":     policy.ID,
		"policy_number": policy.PolicyNumber,
		"insurer":       policy.Insurer,
		"emission_ms":   emissionMs,
	}).Info("Policy issued and delivered")

	// Welcome kit generation is deferred through the outbox; its failure
	// must not fail the emission.
	s.enqueueWelcomeKit(policy, sale)

	return nil
}

func (s *PolicyService) deliverPolicy(ctx context.Context, policy *models.Policy, sale *models.Sale) error {
	message := fmt.Sprintf(
		"Olá %s! Sua apólice %s (%s) foi emitida. Vigência: %s a %s. Documento: %s",
		sale.Client.Name,
		policy.PolicyNumber,
		policy.Insurer,
		policy.CoverageStart.Format("02/01/2006"),
		policy.CoverageEnd.Format("02/01/2006"),
		policy.DocumentURL,
	)

	if err := s.messenger.Send(ctx, sale.Client.Phone, message); err != nil {
		return fmt.Errorf("%w: policy delivery failed: %v", ErrIntegration, err)
	}

	now := s.now()
	patch := map[string]interface{}{
		"status":             models.PolicyStatusEntregue,
		"delivered_whatsapp": true,
		"delivery_attempts":  gorm.Expr("delivery_attempts + 1"),
		"last_delivery_at":   &now,
	}
	if err := s.db.WithContext(ctx).Model(policy).Updates(patch).Error; err != nil {
		return fmt.Errorf("failed to update delivery fields: %w", err)
	}
	policy.Status = models.PolicyStatusEntregue
	policy.DeliveredWhatsApp = true
	policy.DeliveryAttempts++
	policy.LastDeliveryAt = &now

	// Email is the secondary channel and strictly best-effort.
	if s.notifications != nil && sale.Client.Email != "" {
		err := s.notifications.SendPolicyEmail(
			sale.Client.Email, sale.Client.Name,
			policy.PolicyNumber, policy.Insurer, policy.DocumentURL,
		)
		if err != nil {
			logrus.WithError(err).WithField("policy_id", policy.ID).
				Warn("Policy email delivery failed")
		} else if err := s.db.WithContext(ctx).Model(policy).
			Update("delivered_email", true).Error; err == nil {
			policy.DeliveredEmail = true
		}
	}

	return nil
}

func (s *PolicyService) enqueueWelcomeKit(policy *models.Policy, sale *models.Sale) {
	task := &models.FollowUpTask{
		TaskType: TaskTypeWelcomeKit,
		Payload: models.JSONB{
			"policy_id":     policy.ID.String(),
			"sale_id":       sale.ID.String(),
			"client_name":   sale.Client.Name,
			"client_phone":  sale.Client.Phone,
			"client_email":  sale.Client.Email,
			"policy_number": policy.PolicyNumber,
		},
	}
	if err := s.db.Create(task).Error; err != nil {
		logrus.WithError(err).WithField("policy_id", policy.ID).
			Error("Failed to enqueue welcome kit task")
	}
}

func (s *PolicyService) markFailed(policy *models.Policy, cause error) {
	patch := map[string]interface{}{
		"status":        models.PolicyStatusErro,
		"error_message": cause.Error(),
	}
	if err := s.db.Model(policy).Updates(patch).Error; err != nil {
		logrus.WithError(err).WithField("policy_id", policy.ID).
			Error("Failed to mark policy as errored")
	}
	policy.Status = models.PolicyStatusErro
}

func (s *PolicyService) GetPolicy(ctx context.Context, policyID uuid.UUID) (*models.Policy, error) {
	var policy models.Policy
	if err := s.db.WithContext(ctx).
		Preload("Client").Preload("Product").Preload("Documents").
		First(&policy, "id = ?", policyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: policy %s", ErrNotFound, policyID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &policy, nil
}

func (s *PolicyService) ListPolicies(ctx context.Context, params utils.PaginationParams) ([]models.Policy, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Policy{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count policies: %w", err)
	}

	allowedSortFields := []string{"created_at", "policy_number", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var policies []models.Policy
	if err := query.Preload("Client").Find(&policies).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch policies: %w", err)
	}

	return policies, total, nil
}
