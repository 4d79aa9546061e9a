// internal/models/recovery.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type RecoveryCampaign struct {
	BaseModel
	LeadID         uuid.UUID      `json:"lead_id" gorm:"type:uuid;not null;index"`
	Reason         RecoveryReason `json:"reason" gorm:"type:varchar(30);not null"`
	Status         CampaignStatus `json:"status" gorm:"type:varchar(20);default:'ativo';index"`
	Attempts       int            `json:"attempts" gorm:"default:0"`
	MaxAttempts    int            `json:"max_attempts" gorm:"default:3"`
	NextAttemptAt  *time.Time     `json:"next_attempt_at" gorm:"index"`
	Success        bool           `json:"success" gorm:"default:false"`
	RecoveredValue float64        `json:"recovered_value" gorm:"type:decimal(10,2);default:0"`

	// Relationships
	Lead Lead `json:"lead,omitempty" gorm:"foreignKey:LeadID"`
}
