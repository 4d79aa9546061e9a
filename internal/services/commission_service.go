// internal/services/commission_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/corretorpro/crm-backend/internal/models"
)

type CommissionService struct {
	db  *gorm.DB
	now func() time.Time
}

type CommissionResult struct {
	Commissions []models.Commission `json:"commissions"`
	Total       float64             `json:"total"`
}

func NewCommissionService(db *gorm.DB) *CommissionService {
	return &CommissionService{db: db, now: time.Now}
}

// ParseHoursInterval parses "HH:MM:SS" where HH may exceed 24 (e.g.
// "48:00:00" is two days).
func ParseHoursInterval(value string) (time.Duration, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid interval %q, want HH:MM:SS", value)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q: %w", value, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", value, err)
	}
	seconds, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("invalid seconds in %q: %w", value, err)
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second, nil
}

// CalculateForSale evaluates all active rules for a paid sale and inserts
// one pending commission per eligible rule. The (sale_id, rule_id) unique
// index makes re-runs and concurrent invocations safe: a duplicate insert
// is skipped, not an error.
func (s *CommissionService) CalculateForSale(ctx context.Context, saleID uuid.UUID) (*CommissionResult, error) {
	var sale models.Sale
	if err := s.db.WithContext(ctx).
		Preload("Product").Preload("Seller").
		First(&sale, "id = ?", saleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sale %s", ErrNotFound, saleID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if sale.Status != models.SaleStatusPago {
		return nil, fmt.Errorf("%w: sale %s is %s, commission requires pago", ErrValidation, saleID, sale.Status)
	}

	today := s.now()
	var rules []models.CommissionRule
	if err := s.db.WithContext(ctx).
		Where("product_id = ? AND is_active = ?", sale.ProductID, true).
		Where("valid_from <= ?", today).
		Where("(valid_until IS NULL OR valid_until >= ?)", today).
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to load commission rules: %w", err)
	}

	result := &CommissionResult{Commissions: []models.Commission{}}

	for _, rule := range rules {
		eligible, err := s.isEligible(&sale, &rule)
		if err != nil {
			return nil, err
		}
		if !eligible {
			continue
		}

		commission := models.Commission{
			SaleID:     sale.ID,
			RuleID:     rule.ID,
			PayeeID:    sale.SellerID,
			Amount:     sale.Value * rule.Percentage / 100,
			Percentage: rule.Percentage,
			BaseValue:  sale.Value,
			Status:     models.CommissionStatusPendente,
		}

		if err := s.db.WithContext(ctx).Create(&commission).Error; err != nil {
			if isUniqueViolation(err) {
				logrus.WithFields(logrus.Fields{
					"sale_id": sale.ID,
					"rule_id": rule.ID,
				}).Info("Commission already calculated, skipping")
				continue
			}
			return nil, fmt.Errorf("failed to create commission: %w", err)
		}

		result.Commissions = append(result.Commissions, commission)
		result.Total += commission.Amount
	}

	logrus.WithFields(logrus.Fields{
		"sale_id": sale.ID,
		"count":   len(result.Commissions),
		"total":   result.Total,
	}).Info("Commissions calculated")

	return result, nil
}

func (s *CommissionService) isEligible(sale *models.Sale, rule *models.CommissionRule) (bool, error) {
	if rule.MinAmount != nil && sale.Value < *rule.MinAmount {
		return false, nil
	}
	if rule.MaxAmount != nil && sale.Value > *rule.MaxAmount {
		return false, nil
	}

	if rule.SellerType != "" && sale.Seller.UserType != rule.SellerType {
		return false, nil
	}
	if rule.ProductCategory != "" && sale.Product.Category != rule.ProductCategory {
		return false, nil
	}

	if rule.MinConversionTime != "" {
		minDuration, err := ParseHoursInterval(rule.MinConversionTime)
		if err != nil {
			return false, fmt.Errorf("rule %s has invalid min_conversion_time: %w", rule.ID, err)
		}
		if sale.ClosedAt == nil {
			return false, nil
		}
		if sale.ClosedAt.Sub(sale.CreatedAt) < minDuration {
			return false, nil
		}
	}

	return true, nil
}

func (s *CommissionService) ListForSale(ctx context.Context, saleID uuid.UUID) ([]models.Commission, error) {
	var commissions []models.Commission
	if err := s.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Preload("Rule").Preload("Payee").
		Order("created_at ASC").
		Find(&commissions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch commissions: %w", err)
	}
	return commissions, nil
}
