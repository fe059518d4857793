package sync

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"domainsync/internal/cache"
	"domainsync/internal/model"
	"domainsync/internal/secrets"
	"domainsync/internal/store"
	"domainsync/internal/upstream"
)

// fakeClient is an in-memory InventoryClient with injectable failures
type fakeClient struct {
	mu        sync.Mutex
	page      *upstream.DomainsPage
	pageErr   error
	pageDelay time.Duration
	pageCalls []pageCall
	ns        map[string]*upstream.Nameservers
	nsErr     map[string]error
	nsCalls   int
}

type pageCall struct {
	pageSize int
	offset   int
}

func (c *fakeClient) FetchDomainsPage(ctx context.Context, creds upstream.Credentials, pageSize, offset int) (*upstream.DomainsPage, error) {
	if c.pageDelay > 0 {
		time.Sleep(c.pageDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageCalls = append(c.pageCalls, pageCall{pageSize: pageSize, offset: offset})
	if c.pageErr != nil {
		return nil, c.pageErr
	}
	page := *c.page
	return &page, nil
}

func (c *fakeClient) FetchNameservers(ctx context.Context, creds upstream.Credentials, domainExternalID string) (*upstream.Nameservers, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nsCalls++
	if err, ok := c.nsErr[domainExternalID]; ok {
		return nil, err
	}
	if ns, ok := c.ns[domainExternalID]; ok {
		return ns, nil
	}
	return &upstream.Nameservers{}, nil
}

// fakeStore is an in-memory Store mirroring the atomic upsert contract
type fakeStore struct {
	mu           sync.Mutex
	settings     map[int64]*model.UpstreamSetting
	domains      map[string]store.DomainUpsert
	nameservers  map[string]store.NameserverUpdate
	upsertErrFor map[string]error
	logs         []*model.SyncLog
	finals       map[int64]store.RunFinal
	nextLogID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings:     make(map[int64]*model.UpstreamSetting),
		domains:      make(map[string]store.DomainUpsert),
		nameservers:  make(map[string]store.NameserverUpdate),
		upsertErrFor: make(map[string]error),
		finals:       make(map[int64]store.RunFinal),
	}
}

func domainKey(tenantID int64, externalID string) string {
	return fmt.Sprintf("%d/%s", tenantID, externalID)
}

func (s *fakeStore) UpsertDomain(ctx context.Context, tenantID int64, rec store.DomainUpsert) (store.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.upsertErrFor[rec.ExternalID]; ok {
		return 0, err
	}
	key := domainKey(tenantID, rec.ExternalID)
	outcome := store.OutcomeAdded
	if _, exists := s.domains[key]; exists {
		outcome = store.OutcomeUpdated
	}
	s.domains[key] = rec
	return outcome, nil
}

func (s *fakeStore) UpsertNameservers(ctx context.Context, tenantID int64, domainExternalID string, ns store.NameserverUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nameservers[domainKey(tenantID, domainExternalID)] = ns
	return nil
}

func (s *fakeStore) GetSettings(ctx context.Context, tenantID int64) (*model.UpstreamSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setting, ok := s.settings[tenantID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return setting, nil
}

func (s *fakeStore) CreateRunLog(ctx context.Context, tenantID int64, batchNumber, batchStart, batchEnd int) (*model.SyncLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLogID++
	row := &model.SyncLog{
		BaseModel:   model.BaseModel{ID: s.nextLogID},
		RunID:       fmt.Sprintf("run-%d", s.nextLogID),
		TenantID:    tenantID,
		BatchNumber: batchNumber,
		BatchStart:  batchStart,
		BatchEnd:    batchEnd,
		Status:      model.SyncLogStatusRunning,
		StartedAt:   time.Now(),
	}
	s.logs = append(s.logs, row)
	return row, nil
}

func (s *fakeStore) FinalizeRunLog(ctx context.Context, logID int64, final store.RunFinal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.finals[logID]; done {
		return fmt.Errorf("run log %d already finalized", logID)
	}
	s.finals[logID] = final
	return nil
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func testSetting(tenantID int64) *model.UpstreamSetting {
	return &model.UpstreamSetting{
		TenantID:        tenantID,
		APIURL:          "https://billing.example.com/includes/api.php",
		Identifier:      "ident",
		SecretEncrypted: "secret",
	}
}

func newTestOrchestrator(client *fakeClient, st *fakeStore, opts Options) *Orchestrator {
	return NewOrchestrator(client, st, cache.NewMemoryCache(), secrets.Plaintext{}, testLogger(), opts)
}

func TestRunBatch_OffsetArithmetic(t *testing.T) {
	tests := []struct {
		batchNumber int
		batchSize   int
		wantOffset  int
	}{
		{batchNumber: 1, batchSize: 50, wantOffset: 0},
		{batchNumber: 2, batchSize: 50, wantOffset: 50},
		{batchNumber: 3, batchSize: 50, wantOffset: 100},
		{batchNumber: 7, batchSize: 25, wantOffset: 150},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("batch_%d_size_%d", tt.batchNumber, tt.batchSize), func(t *testing.T) {
			client := &fakeClient{page: &upstream.DomainsPage{}}
			st := newFakeStore()
			st.settings[1] = testSetting(1)
			orch := newTestOrchestrator(client, st, Options{})

			if _, err := orch.RunBatch(context.Background(), 1, tt.batchNumber, tt.batchSize); err != nil {
				t.Fatalf("RunBatch() failed: %v", err)
			}

			if len(client.pageCalls) != 1 {
				t.Fatalf("page calls = %d, want 1", len(client.pageCalls))
			}
			call := client.pageCalls[0]
			if call.offset != tt.wantOffset {
				t.Errorf("offset = %d, want %d", call.offset, tt.wantOffset)
			}
			if call.pageSize != tt.batchSize {
				t.Errorf("pageSize = %d, want %d", call.pageSize, tt.batchSize)
			}
		})
	}
}

func TestRunBatch_InvalidParams(t *testing.T) {
	client := &fakeClient{page: &upstream.DomainsPage{}}
	st := newFakeStore()
	st.settings[1] = testSetting(1)
	orch := newTestOrchestrator(client, st, Options{MaxBatchSize: 200})

	tests := []struct {
		name        string
		batchNumber int
		batchSize   int
	}{
		{name: "zero batch number", batchNumber: 0, batchSize: 50},
		{name: "negative batch number", batchNumber: -1, batchSize: 50},
		{name: "zero batch size", batchNumber: 1, batchSize: 0},
		{name: "batch size above bound", batchNumber: 1, batchSize: 201},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orch.RunBatch(context.Background(), 1, tt.batchNumber, tt.batchSize)
			if err == nil {
				t.Fatal("expected error")
			}
			if upstream.KindOf(err) != upstream.KindConfiguration {
				t.Errorf("Kind = %s, want configuration", upstream.KindOf(err))
			}
			if len(st.logs) != 0 {
				t.Error("no run log should be created for invalid parameters")
			}
		})
	}
}

func TestRunBatch_MissingSettings(t *testing.T) {
	client := &fakeClient{page: &upstream.DomainsPage{}}
	st := newFakeStore()
	orch := newTestOrchestrator(client, st, Options{})

	_, err := orch.RunBatch(context.Background(), 42, 1, 50)
	if err == nil {
		t.Fatal("expected error")
	}
	if upstream.KindOf(err) != upstream.KindConfiguration {
		t.Errorf("Kind = %s, want configuration", upstream.KindOf(err))
	}
	if len(st.logs) != 0 {
		t.Error("no run log should be created before settings resolve")
	}
}

func TestRunBatch_MixedScenario(t *testing.T) {
	// Page of three: a.com is new, b.com exists with a changed status,
	// c.com is new but its nameserver fetch times out.
	client := &fakeClient{
		page: &upstream.DomainsPage{
			Domains: []upstream.DomainRecord{
				{ID: "1", DomainName: "a.com", Status: "Active"},
				{ID: "2", DomainName: "b.com", Status: "Expired"},
				{ID: "3", DomainName: "c.com", Status: "Active"},
			},
			TotalResults: 3,
		},
		ns: map[string]*upstream.Nameservers{
			"1": {NS1: "ns1.host.net", NS2: "ns2.host.net"},
			"2": {NS1: "ns1.other.net"},
		},
		nsErr: map[string]error{
			"3": upstream.NewError(upstream.KindTransport, "request failed", context.DeadlineExceeded),
		},
	}
	st := newFakeStore()
	st.settings[1] = testSetting(1)
	st.domains[domainKey(1, "2")] = store.DomainUpsert{ExternalID: "2", Name: "b.com", Status: model.DomainStatusActive}

	orch := newTestOrchestrator(client, st, Options{Concurrency: 3})

	result, err := orch.RunBatch(context.Background(), 1, 1, 50)
	if err != nil {
		t.Fatalf("RunBatch() failed: %v", err)
	}

	if !result.Success {
		t.Error("batch should report success")
	}
	want := store.RunCounts{Found: 3, Processed: 3, Added: 2, Updated: 1, Errors: 0}
	if result.Counts != want {
		t.Errorf("counts = %+v, want %+v", result.Counts, want)
	}

	// b.com's status must reflect the changed upstream value
	if got := st.domains[domainKey(1, "2")].Status; got != model.DomainStatusExpired {
		t.Errorf("b.com status = %s, want Expired", got)
	}

	// c.com's nameservers stay absent after the failed fetch
	if _, ok := st.nameservers[domainKey(1, "3")]; ok {
		t.Error("c.com nameservers must remain absent")
	}

	// a.com's nameservers landed with upstream slot order preserved
	ns, ok := st.nameservers[domainKey(1, "1")]
	if !ok {
		t.Fatal("a.com nameservers missing")
	}
	if ns.NS1 == nil || *ns.NS1 != "ns1.host.net" {
		t.Errorf("a.com ns1 = %v", ns.NS1)
	}
	if ns.NS3 != nil {
		t.Error("unset slot ns3 should be nil")
	}

	final := st.finals[result.LogID]
	if final.Status != model.SyncLogStatusCompleted {
		t.Errorf("final status = %s, want completed", final.Status)
	}
	if final.TotalReported != 3 {
		t.Errorf("total reported = %d, want 3", final.TotalReported)
	}
}

func TestRunBatch_PartialFailureIsolation(t *testing.T) {
	client := &fakeClient{
		page: &upstream.DomainsPage{
			Domains: []upstream.DomainRecord{
				{ID: "1", DomainName: "a.com", Status: "Active"},
				{ID: "2", DomainName: "b.com", Status: "Active"},
				{ID: "3", DomainName: "c.com", Status: "Active"},
				{ID: "4", DomainName: "d.com", Status: "Active"},
			},
		},
	}
	st := newFakeStore()
	st.settings[1] = testSetting(1)
	st.upsertErrFor["2"] = fmt.Errorf("deadlock detected")

	orch := newTestOrchestrator(client, st, Options{Concurrency: 2})

	result, err := orch.RunBatch(context.Background(), 1, 1, 50)
	if err != nil {
		t.Fatalf("RunBatch() failed: %v", err)
	}

	if result.Status != model.SyncLogStatusCompleted {
		t.Errorf("status = %s, want completed", result.Status)
	}
	if result.Counts.Errors != 1 {
		t.Errorf("errors = %d, want 1", result.Counts.Errors)
	}
	if result.Counts.Processed != 3 {
		t.Errorf("processed = %d, want 3", result.Counts.Processed)
	}

	for _, id := range []string{"1", "3", "4"} {
		if _, ok := st.domains[domainKey(1, id)]; !ok {
			t.Errorf("domain %s missing from store", id)
		}
	}
	if _, ok := st.domains[domainKey(1, "2")]; ok {
		t.Error("failed record must not be present")
	}

	// The failing record is identified in the run-log detail
	final := st.finals[result.LogID]
	if len(final.ErrorDetail) != 1 {
		t.Fatalf("error detail entries = %d, want 1", len(final.ErrorDetail))
	}
	if final.ErrorDetail[0].DomainID != "2" {
		t.Errorf("error detail domain id = %s, want 2", final.ErrorDetail[0].DomainID)
	}
	if !strings.Contains(final.ErrorDetail[0].Message, "deadlock") {
		t.Errorf("error detail message = %q", final.ErrorDetail[0].Message)
	}
}

func TestRunBatch_DecodeFailureAbortsBatch(t *testing.T) {
	client := &fakeClient{
		pageErr: upstream.NewError(upstream.KindDecode, "success response missing domains list", nil),
	}
	st := newFakeStore()
	st.settings[1] = testSetting(1)

	orch := newTestOrchestrator(client, st, Options{})

	result, err := orch.RunBatch(context.Background(), 1, 1, 50)
	if err == nil {
		t.Fatal("expected error")
	}
	if upstream.KindOf(err) != upstream.KindDecode {
		t.Errorf("Kind = %s, want decode", upstream.KindOf(err))
	}
	if result == nil || result.Success {
		t.Fatal("result should report failure")
	}
	if len(st.domains) != 0 {
		t.Errorf("zero rows should be touched, got %d", len(st.domains))
	}
	if st.finals[result.LogID].Status != model.SyncLogStatusFailed {
		t.Errorf("run log status = %s, want failed", st.finals[result.LogID].Status)
	}
}

func TestRunBatch_UpstreamErrorSurfacedVerbatim(t *testing.T) {
	client := &fakeClient{
		pageErr: upstream.NewError(upstream.KindUpstream, "Invalid API Credentials", nil),
	}
	st := newFakeStore()
	st.settings[1] = testSetting(1)

	orch := newTestOrchestrator(client, st, Options{})

	result, err := orch.RunBatch(context.Background(), 1, 1, 50)
	if err == nil {
		t.Fatal("expected error")
	}

	final := st.finals[result.LogID]
	if final.Status != model.SyncLogStatusFailed {
		t.Errorf("run log status = %s, want failed", final.Status)
	}
	if final.ErrorMessage == nil || !strings.Contains(*final.ErrorMessage, "Invalid API Credentials") {
		t.Errorf("error message = %v, want verbatim upstream text", final.ErrorMessage)
	}
	if !strings.Contains(result.ErrorMessage, "Invalid API Credentials") {
		t.Errorf("result error message = %q", result.ErrorMessage)
	}
}

func TestRunBatch_Idempotence(t *testing.T) {
	client := &fakeClient{
		page: &upstream.DomainsPage{
			Domains: []upstream.DomainRecord{
				{ID: "1", DomainName: "a.com", Status: "Active"},
				{ID: "2", DomainName: "b.com", Status: "Expired"},
			},
		},
	}
	st := newFakeStore()
	st.settings[1] = testSetting(1)
	orch := newTestOrchestrator(client, st, Options{})

	first, err := orch.RunBatch(context.Background(), 1, 1, 50)
	if err != nil {
		t.Fatalf("first RunBatch() failed: %v", err)
	}
	if first.Counts.Added != 2 || first.Counts.Updated != 0 {
		t.Errorf("first run counts = %+v", first.Counts)
	}

	second, err := orch.RunBatch(context.Background(), 1, 1, 50)
	if err != nil {
		t.Fatalf("second RunBatch() failed: %v", err)
	}
	if second.Counts.Added != 0 || second.Counts.Updated != 2 {
		t.Errorf("second run counts = %+v, want all updated", second.Counts)
	}
	if len(st.domains) != 2 {
		t.Errorf("store rows = %d, want 2", len(st.domains))
	}
}

func TestRunBatch_Cancellation(t *testing.T) {
	client := &fakeClient{
		page: &upstream.DomainsPage{
			Domains: []upstream.DomainRecord{
				{ID: "1", DomainName: "a.com", Status: "Active"},
				{ID: "2", DomainName: "b.com", Status: "Active"},
			},
		},
	}
	st := newFakeStore()
	st.settings[1] = testSetting(1)
	orch := newTestOrchestrator(client, st, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := orch.RunBatch(ctx, 1, 1, 50)
	if err != nil {
		t.Fatalf("RunBatch() failed: %v", err)
	}

	if result.Status != model.SyncLogStatusFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
	if !strings.Contains(result.ErrorMessage, "cancelled") {
		t.Errorf("error message = %q, want cancellation note", result.ErrorMessage)
	}
	if result.Counts.Errors != 2 {
		t.Errorf("errors = %d, want 2 unattempted records", result.Counts.Errors)
	}

	final := st.finals[result.LogID]
	if final.Status != model.SyncLogStatusFailed {
		t.Errorf("run log status = %s, want failed", final.Status)
	}
}

func TestRunBatch_BudgetExhausted(t *testing.T) {
	// The page fetch alone outlasts the budget, so every record is
	// still pending when the deadline fires.
	client := &fakeClient{
		pageDelay: 100 * time.Millisecond,
		page: &upstream.DomainsPage{
			Domains: []upstream.DomainRecord{
				{ID: "1", DomainName: "a.com", Status: "Active"},
				{ID: "2", DomainName: "b.com", Status: "Active"},
			},
			TotalResults: 2,
		},
	}
	st := newFakeStore()
	st.settings[1] = testSetting(1)
	orch := newTestOrchestrator(client, st, Options{BatchBudget: 10 * time.Millisecond})

	result, err := orch.RunBatch(context.Background(), 1, 1, 50)
	if err != nil {
		t.Fatalf("RunBatch() failed: %v", err)
	}

	// An exhausted budget is not a caller cancellation: the run
	// finalizes as completed with the unattempted records as errors.
	if result.Status != model.SyncLogStatusCompleted {
		t.Errorf("status = %s, want completed", result.Status)
	}
	if !result.Success {
		t.Error("budget exhaustion must still report success")
	}
	if result.Counts.Errors != 2 {
		t.Errorf("errors = %d, want 2 unattempted records", result.Counts.Errors)
	}
	if result.Counts.Processed != 0 {
		t.Errorf("processed = %d, want 0", result.Counts.Processed)
	}

	final := st.finals[result.LogID]
	if final.Status != model.SyncLogStatusCompleted {
		t.Errorf("run log status = %s, want completed", final.Status)
	}
	if len(final.ErrorDetail) != 2 {
		t.Fatalf("error detail entries = %d, want 2", len(final.ErrorDetail))
	}
	for _, detail := range final.ErrorDetail {
		if !strings.Contains(detail.Message, "deadline") {
			t.Errorf("error detail message = %q, want deadline note", detail.Message)
		}
	}
}

func TestRunBatch_TenantScoping(t *testing.T) {
	client := &fakeClient{
		page: &upstream.DomainsPage{
			Domains: []upstream.DomainRecord{
				{ID: "1", DomainName: "a.com", Status: "Active"},
			},
		},
	}
	st := newFakeStore()
	st.settings[7] = testSetting(7)
	st.domains[domainKey(9, "1")] = store.DomainUpsert{ExternalID: "1", Name: "a.com"}

	orch := newTestOrchestrator(client, st, Options{})

	result, err := orch.RunBatch(context.Background(), 7, 1, 50)
	if err != nil {
		t.Fatalf("RunBatch() failed: %v", err)
	}

	// The same external id under another tenant must not turn this
	// tenant's insert into an update
	if result.Counts.Added != 1 || result.Counts.Updated != 0 {
		t.Errorf("counts = %+v, want one added", result.Counts)
	}
}

func TestRunBatch_PageCache(t *testing.T) {
	client := &fakeClient{
		page: &upstream.DomainsPage{
			Domains: []upstream.DomainRecord{
				{ID: "1", DomainName: "a.com", Status: "Active"},
			},
			TotalResults: 1,
		},
	}
	st := newFakeStore()
	st.settings[1] = testSetting(1)

	orch := newTestOrchestrator(client, st, Options{UsePageCache: true, CacheTTL: time.Minute})

	if _, err := orch.RunBatch(context.Background(), 1, 1, 50); err != nil {
		t.Fatalf("first RunBatch() failed: %v", err)
	}
	if _, err := orch.RunBatch(context.Background(), 1, 1, 50); err != nil {
		t.Fatalf("second RunBatch() failed: %v", err)
	}

	if len(client.pageCalls) != 1 {
		t.Errorf("page calls = %d, want 1 (second run served from cache)", len(client.pageCalls))
	}
}

func TestOverview_CachedOnSecondCall(t *testing.T) {
	client := &fakeClient{
		page: &upstream.DomainsPage{TotalResults: 1542},
	}
	st := newFakeStore()
	st.settings[1] = testSetting(1)
	orch := newTestOrchestrator(client, st, Options{CacheTTL: time.Minute})

	first, err := orch.Overview(context.Background(), 1)
	if err != nil {
		t.Fatalf("first Overview() failed: %v", err)
	}
	if first.TotalDomains != 1542 || first.FromCache {
		t.Errorf("first overview = %+v", first)
	}

	second, err := orch.Overview(context.Background(), 1)
	if err != nil {
		t.Fatalf("second Overview() failed: %v", err)
	}
	if !second.FromCache {
		t.Error("second overview should come from cache")
	}
	if second.TotalDomains != 1542 {
		t.Errorf("second overview total = %d", second.TotalDomains)
	}
	if len(client.pageCalls) != 1 {
		t.Errorf("page calls = %d, want 1", len(client.pageCalls))
	}
}

func TestOverview_FailureNotCached(t *testing.T) {
	client := &fakeClient{
		pageErr: upstream.NewError(upstream.KindTransport, "request failed", nil),
	}
	st := newFakeStore()
	st.settings[1] = testSetting(1)
	orch := newTestOrchestrator(client, st, Options{CacheTTL: time.Minute})

	if _, err := orch.Overview(context.Background(), 1); err == nil {
		t.Fatal("expected error")
	}

	// After the upstream recovers the next call must fetch, not replay
	// a cached failure
	client.mu.Lock()
	client.pageErr = nil
	client.page = &upstream.DomainsPage{TotalResults: 12}
	client.mu.Unlock()

	overview, err := orch.Overview(context.Background(), 1)
	if err != nil {
		t.Fatalf("Overview() after recovery failed: %v", err)
	}
	if overview.TotalDomains != 12 || overview.FromCache {
		t.Errorf("overview = %+v", overview)
	}
}
