package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/corretorpro/crm-backend/internal/models"
)

func seedQualificationFixtures(t *testing.T, db *gorm.DB) *models.InsuranceProduct {
	t.Helper()

	seller := &models.User{
		Username: "vendedor-automatico",
		Email:    "bot@test.com",
		UserType: models.UserTypeAutomatico,
		Status:   models.UserStatusActive,
	}
	require.NoError(t, seller.SetPassword("Secret123!"))
	require.NoError(t, db.Create(seller).Error)

	// Two auto products; qualification must pick the cheaper one.
	cheap := &models.InsuranceProduct{Name: "Seguro Auto Essencial", Category: "auto", BasePrice: 1200, IsActive: true}
	require.NoError(t, db.Create(cheap).Error)
	premium := &models.InsuranceProduct{Name: "Seguro Auto Premium", Category: "auto", BasePrice: 3500, IsActive: true}
	require.NoError(t, db.Create(premium).Error)

	return cheap
}

func TestKeywordClassifier(t *testing.T) {
	classifier := KeywordClassifier{}

	cases := []struct {
		text   string
		intent string
	}{
		{"quero seguro para meu carro", "auto"},
		{"preciso de um seguro de vida", "vida"},
		{"seguro para minha casa nova", "residencial"},
		{"plano de saúde para a família", "saude"},
		{"bom dia", ""},
	}

	for _, tc := range cases {
		intent, confidence := classifier.Classify(tc.text)
		assert.Equal(t, tc.intent, intent, "text=%q", tc.text)
		if tc.intent == "" {
			assert.Zero(t, confidence)
		} else {
			assert.GreaterOrEqual(t, confidence, 0.5)
		}
	}

	// Confidence grows with hits but never exceeds the cap.
	_, low := classifier.Classify("carro")
	_, high := classifier.Classify("carro auto moto veículo caminhão")
	assert.Greater(t, high, low)
	assert.LessOrEqual(t, high, 0.95)
}

func TestIntakeLead_DedupsByPhone(t *testing.T) {
	db := newTestDB(t)
	svc := NewLeadService(db, nil)

	first, err := svc.IntakeLead(context.Background(), &IntakeLeadRequest{
		Phone:   "+5511988887777",
		Message: "quero um seguro",
	})
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusNovo, first.Status)
	assert.Equal(t, "whatsapp", first.Source)

	second, err := svc.IntakeLead(context.Background(), &IntakeLeadRequest{
		Name:    "João Pereira",
		Phone:   "+5511988887777",
		Message: "seguro para meu carro",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "seguro para meu carro", second.LastMessage)

	var count int64
	db.Model(&models.Lead{}).Count(&count)
	assert.Equal(t, int64(1), count)

	// The later message filled in the missing name.
	var reloaded models.Lead
	require.NoError(t, db.First(&reloaded, "id = ?", first.ID).Error)
	assert.Equal(t, "João Pereira", reloaded.Name)
}

func TestIntakeLead_RejectsInvalidPhone(t *testing.T) {
	db := newTestDB(t)
	svc := NewLeadService(db, nil)

	_, err := svc.IntakeLead(context.Background(), &IntakeLeadRequest{Phone: "12345", Message: "oi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestQualifyLead_OpensSaleForClearIntent(t *testing.T) {
	db := newTestDB(t)
	cheap := seedQualificationFixtures(t, db)
	svc := NewLeadService(db, nil)
	lead := seedLead(t, db, "quero seguro para meu carro")

	outcome, err := svc.QualifyLead(context.Background(), lead.ID)
	require.NoError(t, err)

	assert.True(t, outcome.Qualified)
	assert.Equal(t, "auto", outcome.Intent)
	assert.GreaterOrEqual(t, outcome.Confidence, 0.5)

	assert.Equal(t, models.LeadStatusQualificado, outcome.Lead.Status)
	assert.Equal(t, "auto", outcome.Lead.InterestCategory)
	assert.NotNil(t, outcome.Lead.QualifiedAt)

	require.NotNil(t, outcome.Sale)
	assert.Equal(t, models.SaleStatusPendente, outcome.Sale.Status)
	assert.Equal(t, cheap.ID, outcome.Sale.ProductID)
	assert.Equal(t, cheap.BasePrice, outcome.Sale.Value)
	require.NotNil(t, outcome.Sale.LeadID)
	assert.Equal(t, lead.ID, *outcome.Sale.LeadID)

	// A client record now exists for the lead's phone.
	var client models.Client
	require.NoError(t, db.Where("phone = ?", lead.Phone).First(&client).Error)
	assert.Equal(t, client.ID, outcome.Sale.ClientID)
}

func TestQualifyLead_NoIntentLeavesLeadUntouched(t *testing.T) {
	db := newTestDB(t)
	seedQualificationFixtures(t, db)
	svc := NewLeadService(db, nil)
	lead := seedLead(t, db, "bom dia, tudo bem?")

	outcome, err := svc.QualifyLead(context.Background(), lead.ID)
	require.NoError(t, err)

	assert.False(t, outcome.Qualified)
	assert.Nil(t, outcome.Sale)

	var reloaded models.Lead
	require.NoError(t, db.First(&reloaded, "id = ?", lead.ID).Error)
	assert.Equal(t, models.LeadStatusNovo, reloaded.Status)

	var saleCount int64
	db.Model(&models.Sale{}).Count(&saleCount)
	assert.Equal(t, int64(0), saleCount)
}

func TestQualifyLead_NoProductForCategory(t *testing.T) {
	db := newTestDB(t)
	// Seller exists but no residencial product does.
	seedQualificationFixtures(t, db)
	svc := NewLeadService(db, nil)
	lead := seedLead(t, db, "seguro para minha casa")

	outcome, err := svc.QualifyLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.False(t, outcome.Qualified)
	assert.Equal(t, "residencial", outcome.Intent)
}

func TestQualifyLead_UnknownLead(t *testing.T) {
	db := newTestDB(t)
	svc := NewLeadService(db, nil)

	_, err := svc.QualifyLead(context.Background(), newUUID(t))
	assert.True(t, errors.Is(err, ErrNotFound))
}
