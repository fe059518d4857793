package model

// UpstreamSetting holds one tenant's upstream API configuration.
// The secret is stored encrypted; decryption is delegated to the
// secrets capability so the sync core never handles key material.
type UpstreamSetting struct {
	BaseModel
	TenantID        int64  `gorm:"uniqueIndex;not null" json:"tenant_id"`
	APIURL          string `gorm:"type:varchar(512);not null" json:"api_url"`
	Identifier      string `gorm:"type:varchar(128);not null" json:"identifier"`
	SecretEncrypted string `gorm:"type:varchar(1024);not null" json:"-"`
	CacheTTLSec     int    `gorm:"not null;default:0" json:"cache_ttl_sec"`
}

// TableName specifies the table name for UpstreamSetting model
func (UpstreamSetting) TableName() string {
	return "upstream_settings"
}
