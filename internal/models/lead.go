// internal/models/lead.go
package models

import (
	"time"
)

type Lead struct {
	BaseModel
	Name             string     `json:"name" gorm:"size:255;not null"`
	Phone            string     `json:"phone" gorm:"size:20;not null;index"`
	Email            string     `json:"email" gorm:"size:255"`
	Source           string     `json:"source" gorm:"size:50;index"` // whatsapp, webhook, manual
	Status           LeadStatus `json:"status" gorm:"type:varchar(20);default:'novo';index"`
	InterestCategory string     `json:"interest_category" gorm:"size:50"`
	LastMessage      string     `json:"last_message" gorm:"type:text"`
	QualifiedAt      *time.Time `json:"qualified_at"`

	// Relationships
	Campaigns []RecoveryCampaign `json:"campaigns,omitempty" gorm:"foreignKey:LeadID"`
}

type Client struct {
	BaseModel
	Name  string `json:"name" gorm:"size:255;not null"`
	Phone string `json:"phone" gorm:"size:20;not null;index"`
	Email string `json:"email" gorm:"size:255"`
	CPF   string `json:"cpf" gorm:"size:14;index"`
}

type InsuranceProduct struct {
	BaseModel
	Name      string  `json:"name" gorm:"size:255;not null"`
	Category  string  `json:"category" gorm:"size:50;not null;index"` // auto, vida, residencial, saude
	BasePrice float64 `json:"base_price" gorm:"type:decimal(10,2)"`
	IsActive  bool    `json:"is_active" gorm:"default:true"`
}

