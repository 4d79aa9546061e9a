// internal/models/sale.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Sale struct {
	BaseModel
	ClientID     uuid.UUID  `json:"client_id" gorm:"type:uuid;not null;index"`
	ProductID    uuid.UUID  `json:"product_id" gorm:"type:uuid;not null;index"`
	SellerID     uuid.UUID  `json:"seller_id" gorm:"type:uuid;not null;index"`
	LeadID       *uuid.UUID `json:"lead_id" gorm:"type:uuid;index"`
	Value        float64    `json:"value" gorm:"type:decimal(10,2);not null"`
	Installments int        `json:"installments" gorm:"default:1"`
	Status       SaleStatus `json:"status" gorm:"type:varchar(20);default:'pendente';index"`
	LossReason   string     `json:"loss_reason,omitempty" gorm:"type:text"`
	ClosedAt     *time.Time `json:"closed_at"`

	// Relationships
	Client      Client           `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Product     InsuranceProduct `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Seller      User             `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Payments    []Payment        `json:"payments,omitempty" gorm:"foreignKey:SaleID"`
	Commissions []Commission     `json:"commissions,omitempty" gorm:"foreignKey:SaleID"`
}

// saleTransitions is the single source of truth for allowed status moves.
// Terminal states have no outgoing edges.
var saleTransitions = map[SaleStatus][]SaleStatus{
	SaleStatusPendente:    {SaleStatusQualificado, SaleStatusProposta, SaleStatusPago, SaleStatusPerdido},
	SaleStatusQualificado: {SaleStatusProposta, SaleStatusPago, SaleStatusPerdido},
	SaleStatusProposta:    {SaleStatusPago, SaleStatusPerdido},
	SaleStatusPago:        {},
	SaleStatusPerdido:     {},
}

func (s SaleStatus) IsTerminal() bool {
	return s == SaleStatusPago || s == SaleStatusPerdido
}

func (s SaleStatus) CanTransitionTo(target SaleStatus) bool {
	for _, allowed := range saleTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

type Payment struct {
	BaseModel
	SaleID          uuid.UUID     `json:"sale_id" gorm:"type:uuid;not null;index"`
	StripeSessionID string        `json:"stripe_session_id" gorm:"size:255;index"`
	StripeIntentID  string        `json:"stripe_intent_id" gorm:"size:255;index"`
	Amount          float64       `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency        string        `json:"currency" gorm:"size:3;default:'brl'"`
	Status          PaymentStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	PaidAt          *time.Time    `json:"paid_at"`

	// Relationships
	Sale Sale `json:"sale,omitempty" gorm:"foreignKey:SaleID"`
}

func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentStatusSucceeded || p == PaymentStatusFailed || p == PaymentStatusCanceled
}
