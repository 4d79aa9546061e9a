// internal/models/workflow.go
package models

import (
	"time"
)

// WorkflowExecution is the append-only audit record of one orchestrator
// invocation. A row is inserted as running and receives exactly one terminal
// update (completed or failed); it is never mutated afterwards.
type WorkflowExecution struct {
	BaseModel
	ExecutionID  string         `json:"execution_id" gorm:"size:64;uniqueIndex;not null"`
	WorkflowID   string         `json:"workflow_id" gorm:"size:50;not null;index"`
	TriggerType  TriggerType    `json:"trigger_type" gorm:"type:varchar(20);not null"`
	TriggerData  JSONB          `json:"trigger_data" gorm:"type:jsonb"`
	Status       WorkflowStatus `json:"status" gorm:"type:varchar(20);default:'running';index"`
	Result       JSONB          `json:"result" gorm:"type:jsonb"`
	ErrorMessage string         `json:"error_message,omitempty" gorm:"type:text"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at"`
	DurationMs   int64          `json:"duration_ms"`
}

// FollowUpTask is a durable outbox row for deferred side effects (welcome
// kit generation, secondary notifications). A scheduled consumer picks
// pending rows up, so the trigger survives a process restart.
type FollowUpTask struct {
	BaseModel
	TaskType    string         `json:"task_type" gorm:"size:50;not null;index"`
	Payload     JSONB          `json:"payload" gorm:"type:jsonb"`
	Status      FollowUpStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	RetryCount  int            `json:"retry_count" gorm:"default:0"`
	LastError   string         `json:"last_error,omitempty" gorm:"type:text"`
	ProcessedAt *time.Time     `json:"processed_at"`
}
