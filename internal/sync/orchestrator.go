package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"domainsync/internal/cache"
	"domainsync/internal/model"
	"domainsync/internal/store"
	"domainsync/internal/upstream"
)

// InventoryClient is the upstream API surface the orchestrator consumes
type InventoryClient interface {
	FetchDomainsPage(ctx context.Context, creds upstream.Credentials, pageSize, offset int) (*upstream.DomainsPage, error)
	FetchNameservers(ctx context.Context, creds upstream.Credentials, domainExternalID string) (*upstream.Nameservers, error)
}

// Store is the reconciliation-store surface the orchestrator consumes
type Store interface {
	UpsertDomain(ctx context.Context, tenantID int64, rec store.DomainUpsert) (store.Outcome, error)
	UpsertNameservers(ctx context.Context, tenantID int64, domainExternalID string, ns store.NameserverUpdate) error
	GetSettings(ctx context.Context, tenantID int64) (*model.UpstreamSetting, error)
	CreateRunLog(ctx context.Context, tenantID int64, batchNumber, batchStart, batchEnd int) (*model.SyncLog, error)
	FinalizeRunLog(ctx context.Context, logID int64, final store.RunFinal) error
}

// SecretDecrypter decrypts the stored upstream secret. Key management
// stays behind this capability; the orchestrator only calls it.
type SecretDecrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Options holds orchestrator tunables
type Options struct {
	// MaxBatchSize is the enforced upper bound on one page
	MaxBatchSize int
	// Concurrency bounds the per-record worker pool, which doubles as
	// the per-upstream rate cap
	Concurrency int
	// BatchBudget is the wall-clock limit for one whole batch; zero
	// disables the budget
	BatchBudget time.Duration
	// CacheTTL is the default TTL for cached upstream responses
	CacheTTL time.Duration
	// UsePageCache routes page fetches through the response cache
	UsePageCache bool
}

func (o Options) withDefaults() Options {
	if o.MaxBatchSize < 1 {
		o.MaxBatchSize = 250
	}
	if o.Concurrency < 1 {
		o.Concurrency = 4
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 5 * time.Minute
	}
	return o
}

// RunResult is what one batch invocation reports back to the caller.
// Success means the batch ran to exhaustion; a completed batch with
// per-record errors still reports Success=true.
type RunResult struct {
	Success       bool                `json:"success"`
	LogID         int64               `json:"log_id"`
	RunID         string              `json:"run_id"`
	Status        model.SyncLogStatus `json:"status"`
	Counts        store.RunCounts     `json:"counts"`
	TotalReported int                 `json:"total_reported"`
	ErrorMessage  string              `json:"error_message,omitempty"`
}

// Orchestrator drives one batch of domain synchronization end to end:
// page window arithmetic, page fetch, per-record upserts and nameserver
// fetches, and run-log finalization.
type Orchestrator struct {
	client    InventoryClient
	store     Store
	cache     cache.ResponseCache
	decrypter SecretDecrypter
	logger    *logrus.Entry
	opts      Options
}

// NewOrchestrator creates a batch sync orchestrator
func NewOrchestrator(client InventoryClient, st Store, respCache cache.ResponseCache, decrypter SecretDecrypter, logger *logrus.Entry, opts Options) *Orchestrator {
	return &Orchestrator{
		client:    client,
		store:     st,
		cache:     respCache,
		decrypter: decrypter,
		logger:    logger.WithField("component", "sync-orchestrator"),
		opts:      opts.withDefaults(),
	}
}

// recordResult is one record's outcome, slotted by page index so the
// aggregate stays deterministic under parallel execution
type recordResult struct {
	externalID string
	name       string
	outcome    store.Outcome
	err        error
}

// RunBatch executes one self-contained batch for the tenant.
// batchNumber is 1-based; offset = (batchNumber-1)*batchSize.
func (o *Orchestrator) RunBatch(ctx context.Context, tenantID int64, batchNumber, batchSize int) (*RunResult, error) {
	if batchNumber < 1 {
		return nil, upstream.NewError(upstream.KindConfiguration, fmt.Sprintf("batch number must be >= 1, got %d", batchNumber), nil)
	}
	if batchSize < 1 || batchSize > o.opts.MaxBatchSize {
		return nil, upstream.NewError(upstream.KindConfiguration, fmt.Sprintf("batch size must be in [1, %d], got %d", o.opts.MaxBatchSize, batchSize), nil)
	}

	creds, err := o.resolveCredentials(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	offset := (batchNumber - 1) * batchSize

	logger := o.logger.WithFields(logrus.Fields{
		"tenant_id":    tenantID,
		"batch_number": batchNumber,
		"batch_size":   batchSize,
		"offset":       offset,
	})

	// The run log opens before the page fetch so a crash mid-fetch
	// still leaves an auditable running row.
	logRow, err := o.store.CreateRunLog(ctx, tenantID, batchNumber, offset, offset+batchSize-1)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	logger = logger.WithField("run_id", logRow.RunID)
	logger.Info("Batch started")

	if o.opts.BatchBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.BatchBudget)
		defer cancel()
	}

	page, err := o.fetchPage(ctx, tenantID, *creds, batchSize, offset)
	if err != nil {
		// Any page-level failure aborts the batch before processing
		return o.failBatch(logRow, logger, err)
	}

	results := o.processPage(ctx, tenantID, batchNumber, *creds, page.Domains, logger)

	counts, detail := aggregate(page.Domains, results)

	status := model.SyncLogStatusCompleted
	var errMsg *string
	if errors.Is(ctx.Err(), context.Canceled) {
		status = model.SyncLogStatusFailed
		msg := "batch cancelled by caller"
		errMsg = &msg
	}

	final := store.RunFinal{
		Counts:        counts,
		TotalReported: page.TotalResults,
		Status:        status,
		ErrorMessage:  errMsg,
		ErrorDetail:   detail,
	}
	if err := o.store.FinalizeRunLog(context.WithoutCancel(ctx), logRow.ID, final); err != nil {
		return nil, fmt.Errorf("failed to finalize run log: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"found":     counts.Found,
		"processed": counts.Processed,
		"added":     counts.Added,
		"updated":   counts.Updated,
		"errors":    counts.Errors,
		"status":    status,
	}).Info("Batch finished")

	result := &RunResult{
		Success:       status == model.SyncLogStatusCompleted,
		LogID:         logRow.ID,
		RunID:         logRow.RunID,
		Status:        status,
		Counts:        counts,
		TotalReported: page.TotalResults,
	}
	if errMsg != nil {
		result.ErrorMessage = *errMsg
	}
	return result, nil
}

// resolveCredentials loads and decrypts the tenant's upstream settings.
// Every failure here is a configuration error raised before any run
// log exists.
func (o *Orchestrator) resolveCredentials(ctx context.Context, tenantID int64) (*upstream.Credentials, error) {
	setting, err := o.store.GetSettings(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, upstream.NewError(upstream.KindConfiguration, fmt.Sprintf("no upstream settings configured for tenant %d", tenantID), nil)
		}
		return nil, fmt.Errorf("failed to load upstream settings: %w", err)
	}
	if setting.APIURL == "" || setting.Identifier == "" {
		return nil, upstream.NewError(upstream.KindConfiguration, "upstream settings are incomplete", nil)
	}

	secret, err := o.decrypter.Decrypt(setting.SecretEncrypted)
	if err != nil {
		return nil, upstream.NewError(upstream.KindConfiguration, "failed to decrypt upstream secret", err)
	}

	return &upstream.Credentials{
		APIURL:     setting.APIURL,
		Identifier: setting.Identifier,
		Secret:     secret,
	}, nil
}

// fetchPage fetches one inventory page, optionally through the
// response cache. Only successful pages are ever cached.
func (o *Orchestrator) fetchPage(ctx context.Context, tenantID int64, creds upstream.Credentials, pageSize, offset int) (*upstream.DomainsPage, error) {
	if !o.opts.UsePageCache {
		return o.client.FetchDomainsPage(ctx, creds, pageSize, offset)
	}

	key := cache.PageKey(tenantID, offset, pageSize)
	if payload, ok := o.cache.Get(ctx, key); ok {
		var page upstream.DomainsPage
		if err := json.Unmarshal(payload, &page); err == nil {
			return &page, nil
		}
		// A corrupt entry behaves like a miss
	}

	page, err := o.client.FetchDomainsPage(ctx, creds, pageSize, offset)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(page); err == nil {
		if err := o.cache.Set(ctx, key, payload, o.opts.CacheTTL); err != nil {
			o.logger.Warnf("Failed to cache page for tenant %d: %v", tenantID, err)
		}
	}
	return page, nil
}

// processPage runs per-record work across a bounded worker pool.
// Results land in per-index slots; a failing record never cancels its
// siblings, and cancellation is honored between records.
func (o *Orchestrator) processPage(ctx context.Context, tenantID int64, batchNumber int, creds upstream.Credentials, records []upstream.DomainRecord, logger *logrus.Entry) []recordResult {
	results := make([]recordResult, len(records))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, o.opts.Concurrency)

	for i := range records {
		// Cooperative cancellation point between records
		if err := ctx.Err(); err != nil {
			for j := i; j < len(records); j++ {
				results[j] = recordResult{
					name: records[j].DomainName,
					err:  fmt.Errorf("record not attempted: %w", err),
				}
			}
			break
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(idx int, raw upstream.DomainRecord) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results[idx] = o.processRecord(ctx, tenantID, batchNumber, creds, raw, logger)
		}(i, records[i])
	}

	wg.Wait()
	return results
}

// processRecord maps and upserts one domain, then fetches and upserts
// its nameservers. A nameserver failure leaves prior slots untouched
// and does not fail the record.
func (o *Orchestrator) processRecord(ctx context.Context, tenantID int64, batchNumber int, creds upstream.Credentials, raw upstream.DomainRecord, logger *logrus.Entry) recordResult {
	result := recordResult{externalID: raw.ID, name: raw.DomainName}

	rec, err := MapDomain(raw, batchNumber)
	if err != nil {
		result.err = fmt.Errorf("mapping failed: %w", err)
		return result
	}
	result.externalID = rec.ExternalID
	result.name = rec.Name

	outcome, err := o.store.UpsertDomain(ctx, tenantID, rec)
	if err != nil {
		result.err = fmt.Errorf("upsert failed: %w", err)
		return result
	}
	result.outcome = outcome

	// Nameserver lookups need the upstream's numeric id; records synced
	// by name fallback have nothing to look up.
	if raw.ID == "" {
		return result
	}

	ns, err := o.client.FetchNameservers(ctx, creds, raw.ID)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"domain":      rec.Name,
			"external_id": rec.ExternalID,
		}).Warnf("Nameserver fetch failed, keeping prior set: %v", err)
		return result
	}

	if err := o.store.UpsertNameservers(ctx, tenantID, rec.ExternalID, MapNameservers(*ns)); err != nil {
		logger.WithFields(logrus.Fields{
			"domain":      rec.Name,
			"external_id": rec.ExternalID,
		}).Warnf("Nameserver upsert failed, keeping prior set: %v", err)
	}
	return result
}

// aggregate folds per-index results into final counts and the run-log
// error detail, in upstream page order
func aggregate(records []upstream.DomainRecord, results []recordResult) (store.RunCounts, []store.RecordError) {
	counts := store.RunCounts{Found: len(records)}
	var detail []store.RecordError

	for i, res := range results {
		if res.err != nil {
			counts.Errors++
			detail = append(detail, store.RecordError{
				Index:    i,
				DomainID: res.externalID,
				Domain:   res.name,
				Message:  res.err.Error(),
			})
			continue
		}
		counts.Processed++
		switch res.outcome {
		case store.OutcomeAdded:
			counts.Added++
		case store.OutcomeUpdated:
			counts.Updated++
		}
	}
	return counts, detail
}

// failBatch finalizes the run log as failed with the classified page-
// level error and surfaces the failure to the caller
func (o *Orchestrator) failBatch(logRow *model.SyncLog, logger *logrus.Entry, cause error) (*RunResult, error) {
	msg := cause.Error()
	if ue, ok := upstream.AsError(cause); ok {
		// The upstream's own message is surfaced verbatim for
		// operator diagnosis
		msg = ue.Message
		logger = logger.WithField("classification", ue.Kind.String())
	}

	final := store.RunFinal{
		Status:       model.SyncLogStatusFailed,
		ErrorMessage: &msg,
	}
	if err := o.store.FinalizeRunLog(context.Background(), logRow.ID, final); err != nil {
		logger.Errorf("Failed to finalize failed run log: %v", err)
	}

	logger.Errorf("Batch failed: %v", cause)

	return &RunResult{
		Success:      false,
		LogID:        logRow.ID,
		RunID:        logRow.RunID,
		Status:       model.SyncLogStatusFailed,
		ErrorMessage: msg,
	}, cause
}
