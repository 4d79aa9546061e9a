// internal/models/commission.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Commission struct {
	BaseModel
	SaleID     uuid.UUID        `json:"sale_id" gorm:"type:uuid;not null;uniqueIndex:idx_commissions_sale_rule"`
	RuleID     uuid.UUID        `json:"rule_id" gorm:"type:uuid;not null;uniqueIndex:idx_commissions_sale_rule"`
	PayeeID    uuid.UUID        `json:"payee_id" gorm:"type:uuid;not null;index"`
	Amount     float64          `json:"amount" gorm:"type:decimal(10,2);not null"`
	Percentage float64          `json:"percentage" gorm:"type:decimal(5,2);not null"`
	BaseValue  float64          `json:"base_value" gorm:"type:decimal(10,2);not null"`
	Status     CommissionStatus `json:"status" gorm:"type:varchar(20);default:'pendente';index"`

	// Relationships
	Sale  Sale           `json:"sale,omitempty" gorm:"foreignKey:SaleID"`
	Rule  CommissionRule `json:"rule,omitempty" gorm:"foreignKey:RuleID"`
	Payee User           `json:"payee,omitempty" gorm:"foreignKey:PayeeID"`
}

type CommissionRule struct {
	BaseModel
	ProductID  uuid.UUID  `json:"product_id" gorm:"type:uuid;not null;index"`
	Percentage float64    `json:"percentage" gorm:"type:decimal(5,2);not null"`
	MinAmount  *float64   `json:"min_amount" gorm:"type:decimal(10,2)"`
	MaxAmount  *float64   `json:"max_amount" gorm:"type:decimal(10,2)"`
	ValidFrom  time.Time  `json:"valid_from" gorm:"not null;index"`
	ValidUntil *time.Time `json:"valid_until" gorm:"index"`

	// Extra conditions; zero values mean "not specified".
	SellerType      UserType `json:"seller_type" gorm:"type:varchar(20)"`
	ProductCategory string   `json:"product_category" gorm:"size:50"`
	// Minimum time between sale creation and closing, "HH:MM:SS" hours format.
	MinConversionTime string `json:"min_conversion_time" gorm:"size:20"`

	IsActive bool `json:"is_active" gorm:"default:true"`

	// Relationships
	Product InsuranceProduct `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}
