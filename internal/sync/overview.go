package sync

import (
	"context"
	"encoding/json"
	"time"

	"domainsync/internal/cache"
)

// Overview is the read-mostly upstream summary served through the
// response cache
type Overview struct {
	TotalDomains int       `json:"total_domains"`
	FetchedAt    time.Time `json:"fetched_at"`
	FromCache    bool      `json:"from_cache"`
}

// Overview returns the upstream's reported domain total for a tenant,
// serving from the response cache when a fresh entry exists. Only
// successful fetches are cached.
func (o *Orchestrator) Overview(ctx context.Context, tenantID int64) (*Overview, error) {
	creds, err := o.resolveCredentials(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	key := cache.OverviewKey(tenantID)
	if payload, ok := o.cache.Get(ctx, key); ok {
		var cached Overview
		if err := json.Unmarshal(payload, &cached); err == nil {
			cached.FromCache = true
			return &cached, nil
		}
		// Corrupt entry: fall through to a fresh fetch
	}

	// A single-record page is the cheapest way to read the total
	page, err := o.client.FetchDomainsPage(ctx, *creds, 1, 0)
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		TotalDomains: page.TotalResults,
		FetchedAt:    time.Now(),
	}

	if payload, err := json.Marshal(overview); err == nil {
		if err := o.cache.Set(ctx, key, payload, o.opts.CacheTTL); err != nil {
			o.logger.Warnf("Failed to cache overview for tenant %d: %v", tenantID, err)
		}
	}
	return overview, nil
}

// ClearCache drops every cached upstream response for the tenant.
// Called after credential or endpoint changes so stale payloads are
// never served against new settings.
func (o *Orchestrator) ClearCache(ctx context.Context, tenantID int64) (int, error) {
	return o.cache.InvalidateTenant(ctx, tenantID)
}
