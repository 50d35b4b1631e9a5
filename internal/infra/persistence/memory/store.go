// Package memory provides an in-memory implementation of the lifecycle record
// store used for tests, ephemeral environments, and as the transactional core of
// the snapshotting SQL stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"assetledger/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Asset aliases domain.Asset for in-memory persistence operations.
	Asset = domain.Asset
	// Allocation aliases domain.Allocation.
	Allocation = domain.Allocation
	// MaintenanceRecord aliases domain.MaintenanceRecord.
	MaintenanceRecord = domain.MaintenanceRecord
	// DepreciationEntry aliases domain.DepreciationEntry.
	DepreciationEntry = domain.DepreciationEntry
	// DisposalRecord aliases domain.DisposalRecord.
	DisposalRecord = domain.DisposalRecord
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// Persister durably writes a committed snapshot. Returning an error aborts the
// transaction and leaves the previous state in place.
type Persister func(ctx context.Context, snapshot Snapshot) error

type memoryState struct {
	assets       map[string]Asset
	allocations  map[string]Allocation
	maintenance  map[string]MaintenanceRecord
	depreciation map[string]DepreciationEntry
	disposals    map[string]DisposalRecord
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Assets       map[string]Asset             `json:"assets"`
	Allocations  map[string]Allocation        `json:"allocations"`
	Maintenance  map[string]MaintenanceRecord `json:"maintenance"`
	Depreciation map[string]DepreciationEntry `json:"depreciation"`
	Disposals    map[string]DisposalRecord    `json:"disposals"`
}

func newMemoryState() memoryState {
	return memoryState{
		assets:       make(map[string]Asset),
		allocations:  make(map[string]Allocation),
		maintenance:  make(map[string]MaintenanceRecord),
		depreciation: make(map[string]DepreciationEntry),
		disposals:    make(map[string]DisposalRecord),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{
		Assets:       cloned.assets,
		Allocations:  cloned.allocations,
		Maintenance:  cloned.maintenance,
		Depreciation: cloned.depreciation,
		Disposals:    cloned.disposals,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		assets:       s.Assets,
		allocations:  s.Allocations,
		maintenance:  s.Maintenance,
		depreciation: s.Depreciation,
		disposals:    s.Disposals,
	}
	if state.assets == nil {
		state.assets = make(map[string]Asset)
	}
	if state.allocations == nil {
		state.allocations = make(map[string]Allocation)
	}
	if state.maintenance == nil {
		state.maintenance = make(map[string]MaintenanceRecord)
	}
	if state.depreciation == nil {
		state.depreciation = make(map[string]DepreciationEntry)
	}
	if state.disposals == nil {
		state.disposals = make(map[string]DisposalRecord)
	}
	return state.clone()
}

// normalizeSnapshot repairs records written by older builds: missing statuses
// default to their initial state and NBV is re-derived from the ledger fields.
func normalizeSnapshot(snapshot Snapshot) Snapshot {
	for id, asset := range snapshot.Assets {
		if asset.CurrentStatus == "" {
			asset.CurrentStatus = domain.StatusInStock
		}
		asset.NBV = asset.CostBasis.Sub(asset.AccumulatedDepreciation)
		if asset.ID == "" {
			asset.ID = id
		}
		snapshot.Assets[id] = asset
	}
	for id, allocation := range snapshot.Allocations {
		if allocation.Status == "" {
			allocation.Status = domain.AllocationActive
		}
		if allocation.ID == "" {
			allocation.ID = id
		}
		snapshot.Allocations[id] = allocation
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.assets {
		cloned.assets[k] = v
	}
	for k, v := range s.allocations {
		cloned.allocations[k] = cloneAllocation(v)
	}
	for k, v := range s.maintenance {
		cloned.maintenance[k] = v
	}
	for k, v := range s.depreciation {
		cloned.depreciation[k] = v
	}
	for k, v := range s.disposals {
		cloned.disposals[k] = v
	}
	return cloned
}

func cloneAllocation(a Allocation) Allocation {
	cp := a
	if a.ProjectID != nil {
		v := *a.ProjectID
		cp.ProjectID = &v
	}
	if a.ExpectedReturnDate != nil {
		v := *a.ExpectedReturnDate
		cp.ExpectedReturnDate = &v
	}
	if a.ActualReturnDate != nil {
		v := *a.ActualReturnDate
		cp.ActualReturnDate = &v
	}
	if a.ReusabilityPercentage != nil {
		v := *a.ReusabilityPercentage
		cp.ReusabilityPercentage = &v
	}
	return cp
}

func (s memoryState) hasChildren(assetID string) bool {
	for _, a := range s.allocations {
		if a.AssetID == assetID {
			return true
		}
	}
	for _, m := range s.maintenance {
		if m.AssetID == assetID {
			return true
		}
	}
	for _, d := range s.depreciation {
		if d.AssetID == assetID {
			return true
		}
	}
	for _, d := range s.disposals {
		if d.AssetID == assetID {
			return true
		}
	}
	return false
}

// Store provides an in-memory transactional store for the lifecycle domain.
type Store struct {
	mu        sync.RWMutex
	state     memoryState
	engine    *RulesEngine
	nowFn     func() time.Time
	persister Persister
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(normalizeSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the clock used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetPersister installs the durable write invoked before each commit.
func (s *Store) SetPersister(p Persister) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persister = p
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListAssets returns all assets ordered by business code.
func (v transactionView) ListAssets() []Asset {
	return v.FilterAssets(domain.AssetFilter{})
}

// FilterAssets returns the assets matching filter ordered by business code.
func (v transactionView) FilterAssets(filter domain.AssetFilter) []Asset {
	out := make([]Asset, 0, len(v.state.assets))
	for _, a := range v.state.assets {
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssetCode == out[j].AssetCode {
			return out[i].ID < out[j].ID
		}
		return out[i].AssetCode < out[j].AssetCode
	})
	return out
}

// FindAsset retrieves an asset by ID from the snapshot.
func (v transactionView) FindAsset(id string) (Asset, bool) {
	a, ok := v.state.assets[id]
	return a, ok
}

// FindAssetByCode retrieves an asset by its business code.
func (v transactionView) FindAssetByCode(code string) (Asset, bool) {
	for _, a := range v.state.assets {
		if a.AssetCode == code {
			return a, true
		}
	}
	return Asset{}, false
}

// FindAllocation retrieves an allocation by ID from the snapshot.
func (v transactionView) FindAllocation(id string) (Allocation, bool) {
	a, ok := v.state.allocations[id]
	if !ok {
		return Allocation{}, false
	}
	return cloneAllocation(a), true
}

// ListAllocations returns allocations matching filter ordered by allocation date.
func (v transactionView) ListAllocations(filter domain.AllocationFilter) []Allocation {
	return listAllocations(v.state, filter)
}

// ListMaintenance returns the maintenance history of an asset ordered by date.
func (v transactionView) ListMaintenance(assetID string) []MaintenanceRecord {
	out := make([]MaintenanceRecord, 0)
	for _, m := range v.state.maintenance {
		if m.AssetID == assetID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MaintenanceDate.Equal(out[j].MaintenanceDate) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].MaintenanceDate.Before(out[j].MaintenanceDate)
	})
	return out
}

// ListDepreciation returns the depreciation ledger of an asset ordered by period.
func (v transactionView) ListDepreciation(assetID string) []DepreciationEntry {
	out := make([]DepreciationEntry, 0)
	for _, d := range v.state.depreciation {
		if d.AssetID == assetID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodDate.Before(out[j].PeriodDate) })
	return out
}

// FindDisposalByAsset retrieves the disposal record of an asset.
func (v transactionView) FindDisposalByAsset(assetID string) (DisposalRecord, bool) {
	for _, d := range v.state.disposals {
		if d.AssetID == assetID {
			return d, true
		}
	}
	return DisposalRecord{}, false
}

// ListDisposals returns all disposal records ordered by disposal date.
func (v transactionView) ListDisposals() []DisposalRecord {
	out := make([]DisposalRecord, 0, len(v.state.disposals))
	for _, d := range v.state.disposals {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisposalDate.Before(out[j].DisposalDate) })
	return out
}

func listAllocations(state *memoryState, filter domain.AllocationFilter) []Allocation {
	out := make([]Allocation, 0)
	for _, a := range state.allocations {
		if filter.Matches(a) {
			out = append(out, cloneAllocation(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return allocationBefore(out[i], out[j])
	})
	return out
}

// allocationBefore orders allocations by allocation date then creation time.
// On a tie an open allocation sorts after a closed one, so the last element
// for an asset is always its current loan.
func allocationBefore(a, b Allocation) bool {
	if !a.AllocationDate.Equal(b.AllocationDate) {
		return a.AllocationDate.Before(b.AllocationDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if aOpen, bOpen := a.Status.Open(), b.Status.Open(); aOpen != bOpen {
		return bOpen
	}
	return a.ID < b.ID
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the committed state only when fn succeeds, no rule blocks,
// and the optional persister accepts the new snapshot.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.persister != nil && len(tx.changes) > 0 {
		if err := s.persister(ctx, snapshotFromMemoryState(tx.state)); err != nil {
			return result, fmt.Errorf("persist snapshot: %w", err)
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(entity domain.EntityType, action domain.Action, before, after any) {
	change := Change{
		Entity: entity,
		Action: action,
		Before: domain.UndefinedChangePayload(),
		After:  domain.UndefinedChangePayload(),
	}
	if before != nil {
		payload, err := domain.NewChangePayloadFromValue(before)
		mustApply("encode before", err)
		change.Before = payload
	}
	if after != nil {
		payload, err := domain.NewChangePayloadFromValue(after)
		mustApply("encode after", err)
		change.After = payload
	}
	tx.changes = append(tx.changes, change)
}

func mustApply(label string, err error) {
	if err != nil {
		panic(fmt.Errorf("memory store %s: %w", label, err))
	}
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// Now returns the timestamp stamped on every record written by the transaction.
func (tx *transaction) Now() time.Time {
	return tx.now
}

// FindAsset retrieves an asset by ID within the transaction.
func (tx *transaction) FindAsset(id string) (Asset, bool) {
	a, ok := tx.state.assets[id]
	return a, ok
}

// FindAllocation retrieves an allocation by ID within the transaction.
func (tx *transaction) FindAllocation(id string) (Allocation, bool) {
	a, ok := tx.state.allocations[id]
	if !ok {
		return Allocation{}, false
	}
	return cloneAllocation(a), true
}

// CreateAsset stores a new asset. Business codes are unique.
func (tx *transaction) CreateAsset(a Asset) (Asset, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.assets[a.ID]; exists {
		return Asset{}, fmt.Errorf("asset %q already exists", a.ID)
	}
	for _, existing := range tx.state.assets {
		if existing.AssetCode == a.AssetCode {
			return Asset{}, domain.ConflictError{
				Entity:  domain.EntityAsset,
				ID:      existing.ID,
				Field:   "asset_id",
				Message: fmt.Sprintf("asset code %q already registered", a.AssetCode),
			}
		}
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.assets[a.ID] = a
	tx.recordChange(domain.EntityAsset, domain.ActionCreate, nil, a)
	return a, nil
}

// UpdateAsset mutates an asset using the provided mutator function.
func (tx *transaction) UpdateAsset(id string, mutator func(*Asset) error) (Asset, error) {
	current, ok := tx.state.assets[id]
	if !ok {
		return Asset{}, domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Asset{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.assets[id] = current
	tx.recordChange(domain.EntityAsset, domain.ActionUpdate, before, current)
	return current, nil
}

// DeleteAsset removes an asset that has no lifecycle records.
func (tx *transaction) DeleteAsset(id string) error {
	current, ok := tx.state.assets[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
	}
	if tx.state.hasChildren(id) {
		return domain.ConflictError{
			Entity:  domain.EntityAsset,
			ID:      id,
			Message: "asset has lifecycle records and cannot be deleted",
		}
	}
	delete(tx.state.assets, id)
	tx.recordChange(domain.EntityAsset, domain.ActionDelete, current, nil)
	return nil
}

// CreateAllocation stores a new allocation against an existing asset.
func (tx *transaction) CreateAllocation(a Allocation) (Allocation, error) {
	if _, ok := tx.state.assets[a.AssetID]; !ok {
		return Allocation{}, domain.NotFoundError{Entity: domain.EntityAsset, ID: a.AssetID}
	}
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.allocations[a.ID]; exists {
		return Allocation{}, fmt.Errorf("allocation %q already exists", a.ID)
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.allocations[a.ID] = cloneAllocation(a)
	tx.recordChange(domain.EntityAllocation, domain.ActionCreate, nil, a)
	return cloneAllocation(a), nil
}

// UpdateAllocation mutates an allocation using the provided mutator function.
func (tx *transaction) UpdateAllocation(id string, mutator func(*Allocation) error) (Allocation, error) {
	current, ok := tx.state.allocations[id]
	if !ok {
		return Allocation{}, domain.NotFoundError{Entity: domain.EntityAllocation, ID: id}
	}
	current = cloneAllocation(current)
	before := cloneAllocation(current)
	if err := mutator(&current); err != nil {
		return Allocation{}, err
	}
	current.ID = id
	current.AssetID = before.AssetID
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.allocations[id] = cloneAllocation(current)
	tx.recordChange(domain.EntityAllocation, domain.ActionUpdate, before, current)
	return cloneAllocation(current), nil
}

// CompareAndSetAllocationStatus moves the allocation to next only if its status is expected.
func (tx *transaction) CompareAndSetAllocationStatus(id string, expected, next domain.AllocationStatus) (Allocation, bool, error) {
	current, ok := tx.state.allocations[id]
	if !ok {
		return Allocation{}, false, domain.NotFoundError{Entity: domain.EntityAllocation, ID: id}
	}
	if current.Status != expected {
		return cloneAllocation(current), false, nil
	}
	updated, err := tx.UpdateAllocation(id, func(a *Allocation) error {
		a.Status = next
		return nil
	})
	if err != nil {
		return Allocation{}, false, err
	}
	return updated, true, nil
}

// CreateMaintenance appends a maintenance record.
func (tx *transaction) CreateMaintenance(m MaintenanceRecord) (MaintenanceRecord, error) {
	if _, ok := tx.state.assets[m.AssetID]; !ok {
		return MaintenanceRecord{}, domain.NotFoundError{Entity: domain.EntityAsset, ID: m.AssetID}
	}
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.maintenance[m.ID]; exists {
		return MaintenanceRecord{}, fmt.Errorf("maintenance record %q already exists", m.ID)
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.maintenance[m.ID] = m
	tx.recordChange(domain.EntityMaintenance, domain.ActionCreate, nil, m)
	return m, nil
}

// CreateDepreciation appends a depreciation ledger entry.
func (tx *transaction) CreateDepreciation(d DepreciationEntry) (DepreciationEntry, error) {
	if _, ok := tx.state.assets[d.AssetID]; !ok {
		return DepreciationEntry{}, domain.NotFoundError{Entity: domain.EntityAsset, ID: d.AssetID}
	}
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.depreciation[d.ID]; exists {
		return DepreciationEntry{}, fmt.Errorf("depreciation entry %q already exists", d.ID)
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.depreciation[d.ID] = d
	tx.recordChange(domain.EntityDepreciation, domain.ActionCreate, nil, d)
	return d, nil
}

// CreateDisposal stores the single disposal record of an asset.
func (tx *transaction) CreateDisposal(d DisposalRecord) (DisposalRecord, error) {
	if _, ok := tx.state.assets[d.AssetID]; !ok {
		return DisposalRecord{}, domain.NotFoundError{Entity: domain.EntityAsset, ID: d.AssetID}
	}
	for _, existing := range tx.state.disposals {
		if existing.AssetID == d.AssetID {
			return DisposalRecord{}, domain.ConflictError{
				Entity:  domain.EntityDisposal,
				ID:      existing.ID,
				Message: fmt.Sprintf("asset %s already has a disposal record", d.AssetID),
			}
		}
	}
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.disposals[d.ID] = d
	tx.recordChange(domain.EntityDisposal, domain.ActionCreate, nil, d)
	return d, nil
}

// Read helpers ---------------------------------------------------------------

// GetAsset retrieves an asset by ID from committed state.
func (s *Store) GetAsset(id string) (Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.assets[id]
	return a, ok
}

// ListAssets returns all assets from committed state ordered by business code.
func (s *Store) ListAssets() []Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListAssets()
}

// GetAllocation retrieves an allocation by ID from committed state.
func (s *Store) GetAllocation(id string) (Allocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.allocations[id]
	if !ok {
		return Allocation{}, false
	}
	return cloneAllocation(a), true
}

// ListAllocations returns committed allocations matching filter.
func (s *Store) ListAllocations(filter domain.AllocationFilter) []Allocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAllocations(&s.state, filter)
}
