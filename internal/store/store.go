package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"domainsync/internal/model"
)

// Store is the reconciliation store: the local persisted view of
// domains, their nameservers, per-tenant upstream settings and the
// append-only sync run log.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new reconciliation store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DomainUpsert carries the normalized fields for one domain upsert.
// Optional fields are pointers; nil means NULL, never empty string.
type DomainUpsert struct {
	ExternalID       string
	Name             string
	Status           model.DomainStatus
	Registrar        *string
	RegistrationDate *datatypes.Date
	ExpiryDate       *datatypes.Date
	NextDueDate      *datatypes.Date
	Amount           *float64
	Currency         *string
	Notes            *string
	BatchNumber      int
	RawPayload       datatypes.JSON
}

// NameserverUpdate carries the five ordered nameserver slots.
// Slot order reflects the upstream response.
type NameserverUpdate struct {
	NS1 *string
	NS2 *string
	NS3 *string
	NS4 *string
	NS5 *string
}

// UpsertDomain inserts or updates one domain keyed on (tenant,
// external_id) in a single atomic statement. Added/Updated is derived
// from the statement's own affected-rows report, never from a separate
// existence check, so concurrent batches cannot race into duplicates.
func (s *Store) UpsertDomain(ctx context.Context, tenantID int64, rec DomainUpsert) (Outcome, error) {
	row := model.Domain{
		TenantID:         tenantID,
		ExternalID:       rec.ExternalID,
		Name:             rec.Name,
		Status:           rec.Status,
		Registrar:        rec.Registrar,
		RegistrationDate: rec.RegistrationDate,
		ExpiryDate:       rec.ExpiryDate,
		NextDueDate:      rec.NextDueDate,
		Amount:           rec.Amount,
		Currency:         rec.Currency,
		Notes:            rec.Notes,
		BatchNumber:      rec.BatchNumber,
		LastSyncedAt:     time.Now(),
		RawPayload:       rec.RawPayload,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"},
			{Name: "external_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"status",
			"registrar",
			"registration_date",
			"expiry_date",
			"next_due_date",
			"amount",
			"currency",
			"notes",
			"batch_number",
			"last_synced_at",
			"raw_payload",
			"updated_at",
		}),
	}).Create(&row)

	if result.Error != nil {
		return 0, fmt.Errorf("failed to upsert domain %s: %w", rec.ExternalID, result.Error)
	}

	return outcomeFromRowsAffected(result.RowsAffected), nil
}

// UpsertNameservers overwrites the nameserver set for one domain with
// the same atomic discipline as UpsertDomain. Callers only invoke this
// after a successful fetch, so a failed fetch never nulls prior slots.
func (s *Store) UpsertNameservers(ctx context.Context, tenantID int64, domainExternalID string, ns NameserverUpdate) error {
	row := model.NameserverSet{
		TenantID:         tenantID,
		DomainExternalID: domainExternalID,
		NS1:              ns.NS1,
		NS2:              ns.NS2,
		NS3:              ns.NS3,
		NS4:              ns.NS4,
		NS5:              ns.NS5,
		LastUpdatedAt:    time.Now(),
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"},
			{Name: "domain_external_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"ns1",
			"ns2",
			"ns3",
			"ns4",
			"ns5",
			"last_updated_at",
			"updated_at",
		}),
	}).Create(&row)

	if result.Error != nil {
		return fmt.Errorf("failed to upsert nameservers for domain %s: %w", domainExternalID, result.Error)
	}
	return nil
}

// GetSettings returns the tenant's upstream settings, or
// gorm.ErrRecordNotFound if none are configured
func (s *Store) GetSettings(ctx context.Context, tenantID int64) (*model.UpstreamSetting, error) {
	var setting model.UpstreamSetting
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

// UpsertSettings stores the tenant's upstream settings
func (s *Store) UpsertSettings(ctx context.Context, setting *model.UpstreamSetting) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"api_url",
			"identifier",
			"secret_encrypted",
			"cache_ttl_sec",
			"updated_at",
		}),
	}).Create(setting)

	if result.Error != nil {
		return fmt.Errorf("failed to upsert settings for tenant %d: %w", setting.TenantID, result.Error)
	}
	return nil
}
