// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns a uuid when the database does not (sqlite in tests).
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL (plain JSON on sqlite)
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeAdmin      UserType = "admin"
	UserTypeCorretor   UserType = "corretor"
	UserTypeAutomatico UserType = "automatico"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type LeadStatus string

const (
	LeadStatusNovo        LeadStatus = "novo"
	LeadStatusQualificado LeadStatus = "qualificado"
	LeadStatusConvertido  LeadStatus = "convertido"
	LeadStatusPerdido     LeadStatus = "perdido"
)

type SaleStatus string

const (
	SaleStatusPendente    SaleStatus = "pendente"
	SaleStatusQualificado SaleStatus = "qualificado"
	SaleStatusProposta    SaleStatus = "proposta"
	SaleStatusPago        SaleStatus = "pago"
	SaleStatusPerdido     SaleStatus = "perdido"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCanceled  PaymentStatus = "canceled"
)

type PolicyStatus string

const (
	PolicyStatusProcessando PolicyStatus = "processando"
	PolicyStatusEmitida     PolicyStatus = "emitida"
	PolicyStatusErro        PolicyStatus = "erro"
	PolicyStatusEntregue    PolicyStatus = "entregue"
)

type CommissionStatus string

const (
	CommissionStatusPendente CommissionStatus = "pendente"
	CommissionStatusAprovada CommissionStatus = "aprovada"
	CommissionStatusPaga     CommissionStatus = "paga"
)

type CampaignStatus string

const (
	CampaignStatusAtivo     CampaignStatus = "ativo"
	CampaignStatusConcluido CampaignStatus = "concluido"
	CampaignStatusCancelado CampaignStatus = "cancelado"
)

type RecoveryReason string

const (
	RecoveryReasonAbandono         RecoveryReason = "abandono"
	RecoveryReasonSemResposta      RecoveryReason = "sem_resposta"
	RecoveryReasonCheckoutExpirado RecoveryReason = "checkout_expirado"
	RecoveryReasonPagamentoFalhou  RecoveryReason = "pagamento_falhou"
)

type WorkflowStatus string

const (
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
)

type TriggerType string

const (
	TriggerTypeWebhook  TriggerType = "webhook"
	TriggerTypeSchedule TriggerType = "schedule"
	TriggerTypeEvent    TriggerType = "event"
	TriggerTypeManual   TriggerType = "manual"
)

type FollowUpStatus string

const (
	FollowUpStatusPending   FollowUpStatus = "pending"
	FollowUpStatusProcessed FollowUpStatus = "processed"
	FollowUpStatusFailed    FollowUpStatus = "failed"
)
