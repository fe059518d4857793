package model

import (
	"time"

	"gorm.io/datatypes"
)

// DomainStatus represents the registration status reported by the upstream registrar
type DomainStatus string

const (
	DomainStatusActive          DomainStatus = "Active"
	DomainStatusExpired         DomainStatus = "Expired"
	DomainStatusPending         DomainStatus = "Pending"
	DomainStatusCancelled       DomainStatus = "Cancelled"
	DomainStatusGrace           DomainStatus = "Grace"
	DomainStatusRedemption      DomainStatus = "Redemption"
	DomainStatusTransferredAway DomainStatus = "TransferredAway"
	DomainStatusUnknown         DomainStatus = "Unknown"
)

// Domain mirrors one registered domain as known by the upstream registrar.
// Optional columns are pointers so that values absent upstream stay NULL.
type Domain struct {
	BaseModel
	TenantID         int64           `gorm:"uniqueIndex:idx_domains_tenant_external;not null;index" json:"tenant_id"`
	ExternalID       string          `gorm:"type:varchar(64);uniqueIndex:idx_domains_tenant_external;not null" json:"external_id"`
	Name             string          `gorm:"type:varchar(255);not null;index:idx_domains_name" json:"name"`
	Status           DomainStatus    `gorm:"type:varchar(32);not null;default:'Unknown'" json:"status"`
	Registrar        *string         `gorm:"type:varchar(128)" json:"registrar"`
	RegistrationDate *datatypes.Date `gorm:"type:date" json:"registration_date"`
	ExpiryDate       *datatypes.Date `gorm:"type:date" json:"expiry_date"`
	NextDueDate      *datatypes.Date `gorm:"type:date" json:"next_due_date"`
	Amount           *float64        `gorm:"type:decimal(10,2)" json:"amount"`
	Currency         *string         `gorm:"type:varchar(3)" json:"currency"`
	Notes            *string         `gorm:"type:text" json:"notes"`
	BatchNumber      int             `gorm:"not null;default:0" json:"batch_number"`
	LastSyncedAt     time.Time       `gorm:"not null" json:"last_synced_at"`
	RawPayload       datatypes.JSON  `gorm:"type:json" json:"-"`
}

// TableName specifies the table name for Domain model
func (Domain) TableName() string {
	return "domains"
}
