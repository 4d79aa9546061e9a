// internal/models/policy.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Policy struct {
	BaseModel
	PolicyNumber      string       `json:"policy_number" gorm:"size:20;uniqueIndex;not null"`
	SaleID            uuid.UUID    `json:"sale_id" gorm:"type:uuid;not null;index"`
	ClientID          uuid.UUID    `json:"client_id" gorm:"type:uuid;not null;index"`
	ProductID         uuid.UUID    `json:"product_id" gorm:"type:uuid;not null;index"`
	Insurer           string       `json:"insurer" gorm:"size:100;not null"`
	Status            PolicyStatus `json:"status" gorm:"type:varchar(20);default:'processando';index"`
	CoverageStart     time.Time    `json:"coverage_start"`
	CoverageEnd       time.Time    `json:"coverage_end"`
	DocumentURL       string       `json:"document_url" gorm:"size:512"`
	EmissionTimeMs    int64        `json:"emission_time_ms"`
	DeliveryAttempts  int          `json:"delivery_attempts" gorm:"default:0"`
	DeliveredWhatsApp bool         `json:"delivered_whatsapp" gorm:"column:delivered_whatsapp;default:false"`
	DeliveredEmail    bool         `json:"delivered_email" gorm:"default:false"`
	LastDeliveryAt    *time.Time   `json:"last_delivery_at"`
	ErrorMessage      string       `json:"error_message,omitempty" gorm:"type:text"`

	// Relationships
	Sale      Sale             `json:"sale,omitempty" gorm:"foreignKey:SaleID"`
	Client    Client           `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Product   InsuranceProduct `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Documents []PolicyDocument `json:"documents,omitempty" gorm:"foreignKey:PolicyID"`
}

type PolicyDocument struct {
	BaseModel
	PolicyID    uuid.UUID `json:"policy_id" gorm:"type:uuid;not null;index"`
	FileURL     string    `json:"file_url" gorm:"size:512;not null"`
	ContentType string    `json:"content_type" gorm:"size:100"`
	SizeBytes   int64     `json:"size_bytes"`
}

// InsurerRule maps (product category, minimum sale value) to an insurer.
// Rows are configuration data so each tenant can adjust routing without a
// code change. Higher priority wins; MinValue is an exclusive lower bound
// checked against the sale value.
type InsurerRule struct {
	BaseModel
	Category string  `json:"category" gorm:"size:50;not null;index"`
	MinValue float64 `json:"min_value" gorm:"type:decimal(10,2);default:0"`
	Insurer  string  `json:"insurer" gorm:"size:100;not null"`
	Priority int     `json:"priority" gorm:"default:0"`
	IsActive bool    `json:"is_active" gorm:"default:true"`
}
