package domain

import (
	"context"
	"time"
)

// AssetFilter narrows asset queries. Zero values match everything.
type AssetFilter struct {
	Statuses  []AssetStatus
	AssetType AssetType
	AssetCode string
}

// Matches reports whether the asset satisfies the filter.
func (f AssetFilter) Matches(a Asset) bool {
	if f.AssetType != "" && a.AssetType != f.AssetType {
		return false
	}
	if f.AssetCode != "" && a.AssetCode != f.AssetCode {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, status := range f.Statuses {
		if a.CurrentStatus == status {
			return true
		}
	}
	return false
}

// AllocationFilter narrows allocation queries. Zero values match everything.
type AllocationFilter struct {
	AssetID  string
	HolderID string
	Statuses []AllocationStatus
	// DueBefore matches allocations whose expected return date is strictly before it.
	DueBefore *time.Time
}

// Matches reports whether the allocation satisfies the filter.
func (f AllocationFilter) Matches(a Allocation) bool {
	if f.AssetID != "" && a.AssetID != f.AssetID {
		return false
	}
	if f.HolderID != "" && a.AllocatedTo != f.HolderID {
		return false
	}
	if f.DueBefore != nil {
		if a.ExpectedReturnDate == nil || !a.ExpectedReturnDate.Before(*f.DueBefore) {
			return false
		}
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, status := range f.Statuses {
		if a.Status == status {
			return true
		}
	}
	return false
}

// OpenAllocations matches allocations that still hold their asset.
func OpenAllocations(assetID string) AllocationFilter {
	return AllocationFilter{AssetID: assetID, Statuses: []AllocationStatus{AllocationActive, AllocationOverdue}}
}

// Transaction exposes the record operations a persistence implementation must
// support within an atomic scope. Either every write in the scope commits or
// none does.
type Transaction interface {
	Snapshot() TransactionView
	Now() time.Time
	CreateAsset(Asset) (Asset, error)
	UpdateAsset(id string, mutator func(*Asset) error) (Asset, error)
	DeleteAsset(id string) error
	CreateAllocation(Allocation) (Allocation, error)
	UpdateAllocation(id string, mutator func(*Allocation) error) (Allocation, error)
	// CompareAndSetAllocationStatus moves an allocation to next only when its
	// current status equals expected. The bool reports whether it moved.
	CompareAndSetAllocationStatus(id string, expected, next AllocationStatus) (Allocation, bool, error)
	CreateMaintenance(MaintenanceRecord) (MaintenanceRecord, error)
	CreateDepreciation(DepreciationEntry) (DepreciationEntry, error)
	CreateDisposal(DisposalRecord) (DisposalRecord, error)
	FindAsset(id string) (Asset, bool)
	FindAllocation(id string) (Allocation, bool)
}

// TransactionView provides read-only access to snapshot data for workflows and rules.
type TransactionView interface {
	RuleView
	FindAllocation(id string) (Allocation, bool)
	FindAssetByCode(code string) (Asset, bool)
	FilterAssets(filter AssetFilter) []Asset
}

// PersistentStore is the record store consumed by the lifecycle workflows.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetAsset(id string) (Asset, bool)
	ListAssets() []Asset
	GetAllocation(id string) (Allocation, bool)
	ListAllocations(filter AllocationFilter) []Allocation
}
