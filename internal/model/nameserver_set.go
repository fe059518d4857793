package model

import (
	"time"
)

// NameserverSet holds up to five nameserver hostnames for one domain.
// Slot order follows the upstream response, not alphabetical order.
// Unset slots are NULL, never empty string.
type NameserverSet struct {
	BaseModel
	TenantID         int64     `gorm:"uniqueIndex:idx_nameservers_tenant_external;not null" json:"tenant_id"`
	DomainExternalID string    `gorm:"type:varchar(64);uniqueIndex:idx_nameservers_tenant_external;not null" json:"domain_external_id"`
	NS1              *string   `gorm:"type:varchar(255)" json:"ns1"`
	NS2              *string   `gorm:"type:varchar(255)" json:"ns2"`
	NS3              *string   `gorm:"type:varchar(255)" json:"ns3"`
	NS4              *string   `gorm:"type:varchar(255)" json:"ns4"`
	NS5              *string   `gorm:"type:varchar(255)" json:"ns5"`
	LastUpdatedAt    time.Time `gorm:"not null" json:"last_updated_at"`
}

// TableName specifies the table name for NameserverSet model
func (NameserverSet) TableName() string {
	return "domain_nameservers"
}
