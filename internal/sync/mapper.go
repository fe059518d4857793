package sync

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"domainsync/internal/model"
	"domainsync/internal/store"
	"domainsync/internal/upstream"
	"domainsync/internal/utils"
)

// MapDomain normalizes one raw upstream record into the store's upsert
// contract. Dates, amounts and optional strings that the upstream left
// empty or unparseable become nil, never sentinels.
func MapDomain(raw upstream.DomainRecord, batchNumber int) (store.DomainUpsert, error) {
	externalID := strings.TrimSpace(raw.ID)
	name := strings.TrimSpace(raw.DomainName)

	if externalID == "" && name == "" {
		return store.DomainUpsert{}, fmt.Errorf("record carries neither an id nor a domain name")
	}
	// Some upstream deployments omit the numeric id; the domain name is
	// the only remaining stable identifier for those records.
	if externalID == "" {
		externalID = name
	}
	if name == "" {
		name = externalID
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return store.DomainUpsert{}, fmt.Errorf("failed to preserve raw payload: %w", err)
	}

	return store.DomainUpsert{
		ExternalID:       externalID,
		Name:             name,
		Status:           mapStatus(raw.Status),
		Registrar:        utils.NullableString(raw.Registrar),
		RegistrationDate: parseDate(raw.RegistrationDate),
		ExpiryDate:       parseDate(raw.ExpiryDate),
		NextDueDate:      parseDate(raw.NextDueDate),
		Amount:           parseAmount(raw.RecurringAmount),
		Currency:         parseCurrency(raw.Currency),
		Notes:            utils.NullableString(raw.Notes),
		BatchNumber:      batchNumber,
		RawPayload:       datatypes.JSON(payload),
	}, nil
}

// MapNameservers converts the wire payload's empty slots to NULLs,
// preserving upstream slot order
func MapNameservers(ns upstream.Nameservers) store.NameserverUpdate {
	return store.NameserverUpdate{
		NS1: utils.NullableString(ns.NS1),
		NS2: utils.NullableString(ns.NS2),
		NS3: utils.NullableString(ns.NS3),
		NS4: utils.NullableString(ns.NS4),
		NS5: utils.NullableString(ns.NS5),
	}
}

var statusByUpstream = map[string]model.DomainStatus{
	"active":           model.DomainStatusActive,
	"expired":          model.DomainStatusExpired,
	"pending":          model.DomainStatusPending,
	"pending transfer": model.DomainStatusPending,
	"cancelled":        model.DomainStatusCancelled,
	"grace":            model.DomainStatusGrace,
	"redemption":       model.DomainStatusRedemption,
	"transferred away": model.DomainStatusTransferredAway,
	"transferredaway":  model.DomainStatusTransferredAway,
}

func mapStatus(s string) model.DomainStatus {
	if status, ok := statusByUpstream[strings.ToLower(strings.TrimSpace(s))]; ok {
		return status
	}
	return model.DomainStatusUnknown
}

// parseDate normalizes an upstream calendar date. Empty, zero and
// unparseable values map to nil, never to a sentinel or today's date.
func parseDate(s string) *datatypes.Date {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == "0000-00-00" {
		return nil
	}
	t, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return nil
	}
	d := datatypes.Date(t)
	return &d
}

func parseAmount(s string) *float64 {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	amount, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}
	return &amount
}

// parseCurrency keeps only plausible 3-letter codes
func parseCurrency(s string) *string {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if len(trimmed) != 3 {
		return nil
	}
	return &trimmed
}
