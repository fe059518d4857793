package model

import (
	"time"

	"gorm.io/datatypes"
)

// SyncLogStatus represents the lifecycle state of one batch run
type SyncLogStatus string

const (
	SyncLogStatusRunning   SyncLogStatus = "running"
	SyncLogStatusCompleted SyncLogStatus = "completed"
	SyncLogStatusFailed    SyncLogStatus = "failed"
)

// SyncLog is the append-only audit record of one batch execution.
// A row is created with status=running before the page fetch and finalized
// exactly once; it is never reopened.
type SyncLog struct {
	BaseModel
	RunID         string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"run_id"`
	TenantID      int64          `gorm:"not null;index:idx_sync_logs_tenant" json:"tenant_id"`
	BatchNumber   int            `gorm:"not null" json:"batch_number"`
	Found         int            `gorm:"not null;default:0" json:"found"`
	Processed     int            `gorm:"not null;default:0" json:"processed"`
	Added         int            `gorm:"not null;default:0" json:"added"`
	Updated       int            `gorm:"not null;default:0" json:"updated"`
	Errors        int            `gorm:"not null;default:0" json:"errors"`
	TotalReported int            `gorm:"not null;default:0" json:"total_reported"`
	BatchStart    int            `gorm:"not null;default:0" json:"batch_start"`
	BatchEnd      int            `gorm:"not null;default:0" json:"batch_end"`
	Status        SyncLogStatus  `gorm:"type:varchar(16);not null;default:'running'" json:"status"`
	ErrorMessage  *string        `gorm:"type:varchar(1024)" json:"error_message"`
	ErrorDetail   datatypes.JSON `gorm:"type:json" json:"error_detail"`
	StartedAt     time.Time      `gorm:"not null" json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at"`
}

// TableName specifies the table name for SyncLog model
func (SyncLog) TableName() string {
	return "sync_logs"
}
