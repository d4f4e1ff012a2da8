package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/primary"
	"github.com/example/procure/internal/ports/secondary"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

// ============================================================================
// mockRequestRepository
// ============================================================================

var (
	_ secondary.RequestRepository    = (*mockRequestRepository)(nil)
	_ secondary.TransitionRepository = (*mockRequestRepository)(nil)
)

// mockRequestRepository implements RequestRepository and TransitionRepository
// in memory. TransitionStage performs the same compare-and-swap the SQL
// adapters do.
type mockRequestRepository struct {
	mu          sync.Mutex
	requests    map[string]*secondary.RequestRecord
	items       map[string][]*secondary.ItemRecord
	transitions []*secondary.TransitionRecord
	seq         int64

	saveErr       error
	transitionErr error
	saveCalls     int
}

func newMockRequestRepository() *mockRequestRepository {
	return &mockRequestRepository{
		requests: make(map[string]*secondary.RequestRecord),
		items:    make(map[string][]*secondary.ItemRecord),
	}
}

func (m *mockRequestRepository) CreateWithItems(ctx context.Context, request *secondary.RequestRecord, items []*secondary.ItemRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *request
	m.requests[r.ID] = &r
	for _, it := range items {
		c := *it
		m.items[r.ID] = append(m.items[r.ID], &c)
	}
	return nil
}

func (m *mockRequestRepository) GetByID(ctx context.Context, id string) (*secondary.RequestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, errs.NotFound("request", id)
	}
	c := *r
	return &c, nil
}

func (m *mockRequestRepository) GetItems(ctx context.Context, requestID string) ([]*secondary.ItemRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*secondary.ItemRecord, 0, len(m.items[requestID]))
	for _, it := range m.items[requestID] {
		c := *it
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineNumber < out[j].LineNumber })
	return out, nil
}

func (m *mockRequestRepository) List(ctx context.Context, filters secondary.RequestFilters) ([]*secondary.RequestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed := make(map[string]bool)
	for _, id := range filters.FacilityIDs {
		allowed[id] = true
	}
	var out []*secondary.RequestRecord
	for _, r := range m.requests {
		if filters.FacilityIDs != nil && !allowed[r.FacilityID] {
			continue
		}
		if filters.Stage != "" && r.CurrentStage != filters.Stage {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRequestRepository) SaveItemsWithTotals(ctx context.Context, change secondary.ItemChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return errs.Persistence("save items", m.saveErr)
	}
	r, ok := m.requests[change.RequestID]
	if !ok {
		return errs.NotFound("request", change.RequestID)
	}
	if r.CurrentStage != change.ExpectedStage {
		return &errs.StaleStageError{RequestID: change.RequestID, Expected: change.ExpectedStage}
	}

	deleted := make(map[string]bool)
	for _, id := range change.DeleteIDs {
		deleted[id] = true
	}
	var kept []*secondary.ItemRecord
	for _, it := range m.items[change.RequestID] {
		if !deleted[it.ID] {
			kept = append(kept, it)
		}
	}
	for _, up := range change.Upserts {
		c := *up
		replaced := false
		for i, it := range kept {
			if it.ID == c.ID {
				kept[i] = &c
				replaced = true
			}
		}
		if !replaced {
			kept = append(kept, &c)
		}
	}
	m.items[change.RequestID] = kept
	r.Subtotal = change.Subtotal
	r.PSMAmount = change.PSMAmount
	r.Total = change.Total
	r.UpdatedAt = change.UpdatedAt
	return nil
}

func (m *mockRequestRepository) TransitionStage(ctx context.Context, change secondary.StageChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitionErr != nil {
		return errs.Persistence("transition", m.transitionErr)
	}
	r, ok := m.requests[change.RequestID]
	if !ok {
		return errs.NotFound("request", change.RequestID)
	}
	if r.CurrentStage != change.ExpectedStage {
		return &errs.StaleStageError{RequestID: change.RequestID, Expected: change.ExpectedStage}
	}
	r.CurrentStage = change.NewStage
	r.Status = change.NewStatus
	r.ClosedAt = change.ClosedAt
	m.seq++
	t := *change.Transition
	t.Sequence = m.seq
	m.transitions = append(m.transitions, &t)
	return nil
}

func (m *mockRequestRepository) ListByRequest(ctx context.Context, requestID string) ([]*secondary.TransitionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.TransitionRecord
	for _, t := range m.transitions {
		if t.RequestID == requestID {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

// corruptTotals overwrites stored totals to simulate a partial write.
func (m *mockRequestRepository) corruptTotals(requestID string, subtotal string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[requestID].Subtotal = dec(subtotal)
}

// ============================================================================
// mockReferenceRepository
// ============================================================================

var _ secondary.ReferenceRepository = (*mockReferenceRepository)(nil)

type mockReferenceRepository struct {
	mu             sync.Mutex
	settings       map[string]*secondary.ProgramSettingsRecord
	allocations    []*secondary.AllocationRecord
	hierarchy      *secondary.HierarchyRecord
	roles          map[string]*secondary.UserRoleRecord
	forecast       map[string]*secondary.ForecastLineRecord
	hierarchyCalls int
	roleErr        error
}

func newMockReferenceRepository() *mockReferenceRepository {
	return &mockReferenceRepository{
		settings: make(map[string]*secondary.ProgramSettingsRecord),
		hierarchy: &secondary.HierarchyRecord{
			FacilityWoreda: map[string]string{},
			WoredaZone:     map[string]string{},
			ZoneRegion:     map[string]string{},
		},
		roles:    make(map[string]*secondary.UserRoleRecord),
		forecast: make(map[string]*secondary.ForecastLineRecord),
	}
}

func settingsKey(programID string, year int) string {
	return fmt.Sprintf("%s/%d", programID, year)
}

func (m *mockReferenceRepository) GetProgramSettings(ctx context.Context, programID string, year int) (*secondary.ProgramSettingsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[settingsKey(programID, year)]
	if !ok {
		return nil, errs.NotFound("program settings", settingsKey(programID, year))
	}
	c := *s
	return &c, nil
}

func (m *mockReferenceRepository) ListAllocations(ctx context.Context, programID string, year int) ([]*secondary.AllocationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.AllocationRecord
	for _, a := range m.allocations {
		if a.ProgramID == programID && a.Year == year {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockReferenceRepository) GetHierarchy(ctx context.Context) (*secondary.HierarchyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hierarchyCalls++
	return m.hierarchy, nil
}

func (m *mockReferenceRepository) GetUserRole(ctx context.Context, userID string) (*secondary.UserRoleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roleErr != nil {
		return nil, m.roleErr
	}
	r, ok := m.roles[userID]
	if !ok {
		return nil, errs.NotFound("user role", userID)
	}
	c := *r
	return &c, nil
}

func (m *mockReferenceRepository) SaveUserRole(ctx context.Context, role *secondary.UserRoleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *role
	m.roles[role.UserID] = &c
	return nil
}

func (m *mockReferenceRepository) GetForecastLines(ctx context.Context, programID string, year int, refs []string) ([]*secondary.ForecastLineRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*secondary.ForecastLineRecord, 0, len(refs))
	for _, ref := range refs {
		l, ok := m.forecast[ref]
		if !ok || l.ProgramID != programID || l.Year != year {
			return nil, errs.NotFound("forecast line", ref)
		}
		c := *l
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockReferenceRepository) hierarchyCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hierarchyCalls
}

// ============================================================================
// mockScopeCache
// ============================================================================

var _ secondary.ScopeCache = (*mockScopeCache)(nil)

type mockScopeCache struct {
	mu            sync.Mutex
	entries       map[string]*secondary.ScopeEntry
	invalidations int
}

func newMockScopeCache() *mockScopeCache {
	return &mockScopeCache{entries: make(map[string]*secondary.ScopeEntry)}
}

func (m *mockScopeCache) Get(ctx context.Context, userID string) (*secondary.ScopeEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	return e, ok, nil
}

func (m *mockScopeCache) Put(ctx context.Context, userID string, entry *secondary.ScopeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = entry
	return nil
}

func (m *mockScopeCache) Invalidate(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidations++
	delete(m.entries, userID)
	return nil
}

// ============================================================================
// fixture
// ============================================================================

// fixture wires every service over shared mocks.
//
// Hierarchy:
//
//	R1 ─ Z1 ─ W1 ─ F1, F2
//	   │    └ W2 ─ F3
//	   └ Z2 ─ W3 ─ F4
//	R2 ─ Z3 ─ W4 ─ F5
//
// Users: alice/bob requesters at F1, fred requester at F5, wanda reviewer at
// W1, walt reviewer at W3, zoe reviewer at Z1, paul procurement officer at
// R1, nina national admin.
type fixture struct {
	requests *mockRequestRepository
	refs     *mockReferenceRepository
	cache    *mockScopeCache

	scope   *ScopeServiceImpl
	request *RequestServiceImpl
	stage   *StageServiceImpl
	audit   *AuditServiceImpl
	budget  *BudgetServiceImpl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	requests := newMockRequestRepository()
	refs := newMockReferenceRepository()
	cache := newMockScopeCache()

	refs.hierarchy = &secondary.HierarchyRecord{
		FacilityWoreda: map[string]string{"F1": "W1", "F2": "W1", "F3": "W2", "F4": "W3", "F5": "W4"},
		WoredaZone:     map[string]string{"W1": "Z1", "W2": "Z1", "W3": "Z2", "W4": "Z3"},
		ZoneRegion:     map[string]string{"Z1": "R1", "Z2": "R1", "Z3": "R2"},
	}
	for _, r := range []*secondary.UserRoleRecord{
		{UserID: "alice", Role: "requester", AdminLevel: "facility", FacilityID: "F1"},
		{UserID: "bob", Role: "requester", AdminLevel: "facility", FacilityID: "F1"},
		{UserID: "fred", Role: "requester", AdminLevel: "facility", FacilityID: "F5"},
		{UserID: "wanda", Role: "reviewer", AdminLevel: "woreda", WoredaID: "W1"},
		{UserID: "walt", Role: "reviewer", AdminLevel: "woreda", WoredaID: "W3"},
		{UserID: "zoe", Role: "reviewer", AdminLevel: "zone", ZoneID: "Z1"},
		{UserID: "paul", Role: "procurement_officer", AdminLevel: "regional", RegionID: "R1"},
		{UserID: "nina", Role: "admin", AdminLevel: "national"},
	} {
		refs.roles[r.UserID] = r
	}
	refs.settings[settingsKey("MAL", 2026)] = &secondary.ProgramSettingsRecord{
		ProgramID: "MAL", Year: 2026, PSMPercent: dec("10"), BudgetTotal: dec("1000"),
	}
	refs.allocations = []*secondary.AllocationRecord{
		{ProgramID: "MAL", Year: 2026, FundingSourceID: "GF", Amount: dec("500")},
		{ProgramID: "MAL", Year: 2026, FundingSourceID: "GOV", Amount: dec("400")},
	}
	for _, l := range []*secondary.ForecastLineRecord{
		{Ref: "FL-1", ProgramID: "MAL", Year: 2026, Product: "Artemether-Lumefantrine", Unit: "pack", Quantity: dec("100"), UnitPrice: dec("2")},
		{Ref: "FL-2", ProgramID: "MAL", Year: 2026, Product: "RDT Malaria", Unit: "kit", Quantity: dec("200"), UnitPrice: dec("1.5")},
		{Ref: "FL-3", ProgramID: "MAL", Year: 2026, Product: "Gloves", Unit: "box", Quantity: dec("50"), UnitPrice: dec("4")},
	} {
		refs.forecast[l.Ref] = l
	}

	logger := zerolog.Nop()
	scopeSvc := NewScopeService(refs, requests, cache, logger)
	return &fixture{
		requests: requests,
		refs:     refs,
		cache:    cache,
		scope:    scopeSvc,
		request:  NewRequestService(requests, refs, scopeSvc, logger),
		stage:    NewStageService(requests, scopeSvc, logger),
		audit:    NewAuditService(requests, requests, scopeSvc),
		budget:   NewBudgetService(requests, refs, scopeSvc),
	}
}

// createThreeLineDraft creates the standard draft owned by alice at F1.
func (f *fixture) createThreeLineDraft(t *testing.T) *primary.Request {
	t.Helper()
	resp, err := f.request.CreateDraft(context.Background(), primary.CreateDraftRequest{
		ActorID:      "alice",
		ProgramID:    "MAL",
		Year:         2026,
		FacilityID:   "F1",
		ForecastRefs: []string{"FL-1", "FL-2", "FL-3"},
	})
	if err != nil {
		t.Fatalf("CreateDraft failed: %v", err)
	}
	return resp.Request
}

// itemByRef finds the item created from a forecast ref.
func itemByRef(t *testing.T, req *primary.Request, ref string) *primary.Item {
	t.Helper()
	for _, it := range req.Items {
		if it.ForecastLineRef == ref {
			return it
		}
	}
	t.Fatalf("no item with ref %s", ref)
	return nil
}

// assertTotalsConsistent checks the stored request against its stored items.
func (f *fixture) assertTotalsConsistent(t *testing.T, requestID string) {
	t.Helper()
	ctx := context.Background()
	r, err := f.requests.GetByID(ctx, requestID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	items, _ := f.requests.GetItems(ctx, requestID)
	sum := decimal.Zero
	for _, it := range items {
		if !it.LineSubtotal.Equal(it.Quantity.Mul(it.UnitPrice)) {
			t.Errorf("item %s subtotal %s != %s x %s", it.ID, it.LineSubtotal, it.Quantity, it.UnitPrice)
		}
		sum = sum.Add(it.LineSubtotal)
	}
	if !sum.Equal(r.Subtotal) {
		t.Errorf("request subtotal = %s, sum of items = %s", r.Subtotal, sum)
	}
	if !r.Total.Equal(r.Subtotal.Add(r.PSMAmount)) {
		t.Errorf("total %s != subtotal %s + psm %s", r.Total, r.Subtotal, r.PSMAmount)
	}
}
