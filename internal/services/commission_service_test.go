package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/corretorpro/crm-backend/internal/models"
)

func TestParseHoursInterval(t *testing.T) {
	d, err := ParseHoursInterval("48:00:00")
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, d)

	d, err = ParseHoursInterval("01:30:15")
	require.NoError(t, err)
	assert.Equal(t, time.Hour+30*time.Minute+15*time.Second, d)

	_, err = ParseHoursInterval("48:00")
	assert.Error(t, err)

	_, err = ParseHoursInterval("abc:00:00")
	assert.Error(t, err)
}

func seedCommissionRule(t *testing.T, db *gorm.DB, percentage float64, mutate func(*models.CommissionRule)) *models.CommissionRule {
	t.Helper()
	rule := &models.CommissionRule{
		Percentage: percentage,
		ValidFrom:  time.Now().AddDate(0, -1, 0),
		IsActive:   true,
	}
	if mutate != nil {
		mutate(rule)
	}
	// GORM replaces a zero-valued bool with its `default:true` tag value on
	// insert (and writes it back to the struct), so IsActive=false needs an
	// explicit update to persist.
	inactive := !rule.IsActive
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("seed commission rule: %v", err)
	}
	if inactive {
		if err := db.Model(rule).Update("is_active", false).Error; err != nil {
			t.Fatalf("seed commission rule is_active: %v", err)
		}
		rule.IsActive = false
	}
	return rule
}

func TestCalculateForSale_BasicPercentage(t *testing.T) {
	db := newTestDB(t)
	svc := NewCommissionService(db)
	sale := seedSale(t, db, models.SaleStatusPago, 1000)

	seedCommissionRule(t, db, 5, func(r *models.CommissionRule) {
		r.ProductID = sale.ProductID
	})

	result, err := svc.CalculateForSale(context.Background(), sale.ID)
	require.NoError(t, err)

	require.Len(t, result.Commissions, 1)
	commission := result.Commissions[0]
	assert.Equal(t, 50.0, commission.Amount)
	assert.Equal(t, 5.0, commission.Percentage)
	assert.Equal(t, 1000.0, commission.BaseValue)
	assert.Equal(t, sale.SellerID, commission.PayeeID)
	assert.Equal(t, models.CommissionStatusPendente, commission.Status)
	assert.Equal(t, 50.0, result.Total)
}

func TestCalculateForSale_Idempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewCommissionService(db)
	sale := seedSale(t, db, models.SaleStatusPago, 1000)
	seedCommissionRule(t, db, 5, func(r *models.CommissionRule) {
		r.ProductID = sale.ProductID
	})

	_, err := svc.CalculateForSale(context.Background(), sale.ID)
	require.NoError(t, err)

	// Re-run inserts nothing; the unique index absorbs the duplicate.
	second, err := svc.CalculateForSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Empty(t, second.Commissions)
	assert.Equal(t, 0.0, second.Total)

	var count int64
	db.Model(&models.Commission{}).Where("sale_id = ?", sale.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCalculateForSale_FiltersByRuleConditions(t *testing.T) {
	db := newTestDB(t)
	svc := NewCommissionService(db)
	sale := seedSale(t, db, models.SaleStatusPago, 1000)

	minAmount := 2000.0
	seedCommissionRule(t, db, 10, func(r *models.CommissionRule) {
		r.ProductID = sale.ProductID
		r.MinAmount = &minAmount
	})

	maxAmount := 500.0
	seedCommissionRule(t, db, 8, func(r *models.CommissionRule) {
		r.ProductID = sale.ProductID
		r.MaxAmount = &maxAmount
	})

	seedCommissionRule(t, db, 7, func(r *models.CommissionRule) {
		r.ProductID = sale.ProductID
		r.SellerType = models.UserTypeAutomatico
	})

	seedCommissionRule(t, db, 6, func(r *models.CommissionRule) {
		r.ProductID = sale.ProductID
		r.ProductCategory = "vida"
	})

	// The only matching rule.
	seedCommissionRule(t, db, 3, func(r *models.CommissionRule) {
		r.ProductID = sale.ProductID
		r.ProductCategory = "auto"
	})

	result, err := svc.CalculateForSale(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, result.Commissions, 1)
	assert.Equal(t, 30.0, result.Commissions[0].Amount)
}

func TestCalculateForSale_ExpiredAndInactiveRulesSkipped(t *testing.T) {
	db := newTestDB(t)
	svc := NewCommissionService(db)
	sale := seedSale(t, db, models.SaleStatusPago, 1000)

	expired := time.Now().AddDate(0, 0, -2)
	seedCommissionRule(t, db, 10, func(r *models.CommissionRule) {
		r.ProductID = sale.ProductID
		r.ValidUntil = &expired
	})

	seedCommissionRule(t, db, 9, func(r *models.CommissionRule) {
		r.ProductID = sale.ProductID
		r.IsActive = false
	})

	seedCommissionRule(t, db, 8, func(r *models.CommissionRule) {
		r.ProductID = sale.ProductID
		r.ValidFrom = time.Now().AddDate(0, 1, 0)
	})

	result, err := svc.CalculateForSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Empty(t, result.Commissions)
}

func TestCalculateForSale_MinConversionTime(t *testing.T) {
	db := newTestDB(t)
	svc := NewCommissionService(db)
	sale := seedSale(t, db, models.SaleStatusPago, 1000)

	// Sale closed immediately; a 48h minimum conversion window excludes it.
	seedCommissionRule(t, db, 5, func(r *models.CommissionRule) {
		r.ProductID = sale.ProductID
		r.MinConversionTime = "48:00:00"
	})

	result, err := svc.CalculateForSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Empty(t, result.Commissions)

	// Backdate the sale so the window is satisfied.
	require.NoError(t, db.Model(&models.Sale{}).Where("id = ?", sale.ID).
		Update("created_at", time.Now().Add(-72*time.Hour)).Error)

	result, err = svc.CalculateForSale(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, result.Commissions, 1)
	assert.Equal(t, 50.0, result.Commissions[0].Amount)
}

func TestCalculateForSale_RequiresPaidSale(t *testing.T) {
	db := newTestDB(t)
	svc := NewCommissionService(db)
	sale := seedSale(t, db, models.SaleStatusProposta, 1000)

	_, err := svc.CalculateForSale(context.Background(), sale.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.CalculateForSale(context.Background(), newUUID(t))
	assert.True(t, errors.Is(err, ErrNotFound))
}
