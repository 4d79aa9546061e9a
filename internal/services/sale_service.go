// internal/services/sale_service.go
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

type SaleService struct {
	db         *gorm.DB
	dispatcher Dispatcher
}

type CreateSaleRequest struct {
	ClientID     uuid.UUID  `json:"client_id" validate:"required"`
	ProductID    uuid.UUID  `json:"product_id" validate:"required"`
	SellerID     uuid.UUID  `json:"seller_id" validate:"required"`
	LeadID       *uuid.UUID `json:"lead_id,omitempty"`
	Value        float64    `json:"value" validate:"required,gt=0"`
	Installments int        `json:"installments,omitempty"`
}

type TransitionRequest struct {
	Status     models.SaleStatus `json:"status" validate:"required,oneof=pendente qualificado proposta pago perdido"`
	LossReason string            `json:"loss_reason,omitempty"`
}

type SaleSearchParams struct {
	utils.PaginationParams
	SellerID *uuid.UUID
	ClientID *uuid.UUID
}

func NewSaleService(db *gorm.DB) *SaleService {
	return &SaleService{db: db}
}

// SetDispatcher wires the workflow dispatcher after construction; the
// orchestrator itself depends on this service, so the cycle is broken here.
func (s *SaleService) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

func (s *SaleService) CreateSale(ctx context.Context, req *CreateSaleRequest) (*models.Sale, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	installments := req.Installments
	if installments < 1 {
		installments = 1
	}

	sale := &models.Sale{
		ClientID:     req.ClientID,
		ProductID:    req.ProductID,
		SellerID:     req.SellerID,
		LeadID:       req.LeadID,
		Value:        req.Value,
		Installments: installments,
		Status:       models.SaleStatusPendente,
	}

	if err := s.db.WithContext(ctx).Create(sale).Error; err != nil {
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"sale_id": sale.ID,
		"value":   sale.Value,
	}).Info("Sale created")

	return sale, nil
}

func (s *SaleService) GetSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := s.db.WithContext(ctx).
		Preload("Client").Preload("Product").Preload("Seller").
		First(&sale, "id = ?", saleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sale %s", ErrNotFound, saleID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sale, nil
}

func (s *SaleService) ListSales(ctx context.Context, params SaleSearchParams) ([]models.Sale, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Sale{})

	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.SellerID != nil {
		query = query.Where("seller_id = ?", *params.SellerID)
	}
	if params.ClientID != nil {
		query = query.Where("client_id = ?", *params.ClientID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sales: %w", err)
	}

	allowedSortFields := []string{"created_at", "value", "status", "closed_at"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var sales []models.Sale
	if err := query.Preload("Client").Preload("Product").Find(&sales).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch sales: %w", err)
	}

	return sales, total, nil
}

// Transition moves a sale to a new status. The write is conditional on the
// status observed at read time, so of two racing callers exactly one
// succeeds; the loser gets ErrConflict and must not trigger side effects.
// A transition into pago commits first and then schedules policy emission
// and commission calculation without blocking.
func (s *SaleService) Transition(ctx context.Context, saleID uuid.UUID, req *TransitionRequest) (*models.Sale, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var sale models.Sale
	if err := s.db.WithContext(ctx).First(&sale, "id = ?", saleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sale %s", ErrNotFound, saleID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	current := sale.Status
	target := req.Status

	if current.IsTerminal() {
		return nil, fmt.Errorf("%w: sale %s is already %s", ErrInvalidTransition, saleID, current)
	}
	if !current.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
	}

	patch := map[string]interface{}{"status": target}
	if target.IsTerminal() {
		now := time.Now()
		patch["closed_at"] = &now
	}
	if target == models.SaleStatusPerdido {
		patch["loss_reason"] = req.LossReason
	}

	result := s.db.WithContext(ctx).Model(&models.Sale{}).
		Where("id = ? AND status = ?", saleID, current).
		Updates(patch)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update sale status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Another writer moved the row between our read and write.
		return nil, fmt.Errorf("%w: sale %s no longer in status %s", ErrConflict, saleID, current)
	}

	logrus.WithFields(logrus.Fields{
		"sale_id": saleID,
		"from":    current,
		"to":      target,
	}).Info("Sale status transitioned")

	// The status write is committed; dependent workflows run after it so a
	// crash here leaves a recoverable "paid but not yet issued" state.
	if target == models.SaleStatusPago && s.dispatcher != nil {
		payload := models.JSONB{"sale_id": saleID.String()}
		s.dispatcher.DispatchAsync(WorkflowPolicyEmission, models.TriggerTypeEvent, payload)
		s.dispatcher.DispatchAsync(WorkflowCommissionCalculation, models.TriggerTypeEvent, payload)
	}

	if err := s.db.WithContext(ctx).First(&sale, "id = ?", saleID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload sale: %w", err)
	}

	return &sale, nil
}
