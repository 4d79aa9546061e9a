// internal/services/lead_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/corretorpro/crm-backend/internal/models"
	"github.com/corretorpro/crm-backend/internal/utils"
)

// Classifier extracts an insurance intent from inbound lead text.
type Classifier interface {
	Classify(text string) (intent string, confidence float64)
}

// KeywordClassifier matches category keywords in the message. The longest
// keyword hit wins; confidence grows with the number of matches.
type KeywordClassifier struct{}

var intentKeywords = map[string][]string{
	"auto":        {"carro", "auto", "veículo", "veiculo", "moto", "caminhão", "caminhao"},
	"vida":        {"vida", "morte", "invalidez", "funeral"},
	"residencial": {"casa", "residência", "residencia", "apartamento", "imóvel", "imovel", "incêndio", "incendio"},
	"saude":       {"saúde", "saude", "plano", "médico", "medico", "hospital", "consulta"},
}

func (KeywordClassifier) Classify(text string) (string, float64) {
	normalized := strings.ToLower(text)

	bestIntent := ""
	bestHits := 0
	for intent, keywords := range intentKeywords {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(normalized, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestIntent = intent
		}
	}

	if bestIntent == "" {
		return "", 0
	}

	confidence := 0.5 + 0.15*float64(bestHits)
	if confidence > 0.95 {
		confidence = 0.95
	}
	return bestIntent, confidence
}

type LeadService struct {
	db         *gorm.DB
	classifier Classifier
}

type IntakeLeadRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone" validate:"required,br_phone"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

type QualifyOutcome struct {
	Lead       *models.Lead `json:"lead"`
	Qualified  bool         `json:"qualified"`
	Intent     string       `json:"intent,omitempty"`
	Confidence float64      `json:"confidence"`
	Sale       *models.Sale `json:"sale,omitempty"`
}

func NewLeadService(db *gorm.DB, classifier Classifier) *LeadService {
	if classifier == nil {
		classifier = KeywordClassifier{}
	}
	return &LeadService{db: db, classifier: classifier}
}

// IntakeLead registers an inbound contact, deduplicating by phone. A
// repeat message from a known phone updates the lead instead of creating
// a duplicate.
func (s *LeadService) IntakeLead(ctx context.Context, req *IntakeLeadRequest) (*models.Lead, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var lead models.Lead
	err := s.db.WithContext(ctx).Where("phone = ?", req.Phone).First(&lead).Error
	if err == nil {
		patch := map[string]interface{}{"last_message": req.Message}
		if req.Name != "" && lead.Name == "" {
			patch["name"] = req.Name
		}
		if err := s.db.WithContext(ctx).Model(&lead).Updates(patch).Error; err != nil {
			return nil, fmt.Errorf("failed to update lead: %w", err)
		}
		lead.LastMessage = req.Message
		return &lead, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	source := req.Source
	if source == "" {
		source = "whatsapp"
	}

	lead = models.Lead{
		Name:        req.Name,
		Phone:       req.Phone,
		Source:      source,
		Status:      models.LeadStatusNovo,
		LastMessage: req.Message,
	}
	if err := s.db.WithContext(ctx).Create(&lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"source":  source,
	}).Info("Lead created")

	return &lead, nil
}

// QualifyLead classifies the lead's last message; a recognized intent
// moves the lead to qualificado and opens a pending sale against the
// cheapest active product of the matched category.
func (s *LeadService) QualifyLead(ctx context.Context, leadID uuid.UUID) (*QualifyOutcome, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).First(&lead, "id = ?", leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: lead %s", ErrNotFound, leadID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	intent, confidence := s.classifier.Classify(lead.LastMessage)
	outcome := &QualifyOutcome{Lead: &lead, Intent: intent, Confidence: confidence}

	if intent == "" || confidence < 0.5 {
		logrus.WithFields(logrus.Fields{
			"lead_id":    leadID,
			"confidence": confidence,
		}).Info("Lead not qualified, no clear intent")
		return outcome, nil
	}

	var product models.InsuranceProduct
	err := s.db.WithContext(ctx).
		Where("category = ? AND is_active = ?", intent, true).
		Order("base_price ASC").
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithField("category", intent).Warn("No active product for qualified intent")
			return outcome, nil
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var seller models.User
	if err := s.db.WithContext(ctx).
		Where("user_type = ? AND status = ?", models.UserTypeAutomatico, models.UserStatusActive).
		First(&seller).Error; err != nil {
		return nil, fmt.Errorf("no automatic seller configured: %w", err)
	}

	var client models.Client
	err = s.db.WithContext(ctx).Where("phone = ?", lead.Phone).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		client = models.Client{Name: lead.Name, Phone: lead.Phone}
		if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
			return nil, fmt.Errorf("failed to create client: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	now := s.db.NowFunc()
	if err := s.db.WithContext(ctx).Model(&lead).Updates(map[string]interface{}{
		"status":            models.LeadStatusQualificado,
		"interest_category": intent,
		"qualified_at":      &now,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to qualify lead: %w", err)
	}
	lead.Status = models.LeadStatusQualificado
	lead.InterestCategory = intent
	lead.QualifiedAt = &now

	sale := &models.Sale{
		ClientID:     client.ID,
		ProductID:    product.ID,
		SellerID:     seller.ID,
		LeadID:       &lead.ID,
		Value:        product.BasePrice,
		Installments: 1,
		Status:       models.SaleStatusPendente,
	}
	if err := s.db.WithContext(ctx).Create(sale).Error; err != nil {
		return nil, fmt.Errorf("failed to open sale for lead: %w", err)
	}

	outcome.Qualified = true
	outcome.Sale = sale

	logrus.WithFields(logrus.Fields{
		"lead_id": leadID,
		"intent":  intent,
		"sale_id": sale.ID,
	}).Info("Lead qualified, sale opened")

	return outcome, nil
}

func (s *LeadService) GetLead(ctx context.Context, leadID uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).
		Preload("Campaigns").
		First(&lead, "id = ?", leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: lead %s", ErrNotFound, leadID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &lead, nil
}

func (s *LeadService) ListLeads(ctx context.Context, params utils.PaginationParams) ([]models.Lead, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Lead{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	allowedSortFields := []string{"created_at", "status", "qualified_at"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var leads []models.Lead
	if err := query.Find(&leads).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch leads: %w", err)
	}

	return leads, total, nil
}
