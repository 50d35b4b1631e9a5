package core

import (
	"fmt"

	"assetledger/pkg/domain"
)

// ComputeStatus derives an asset's lifecycle status from its latest allocation
// and disposal. It is pure and never fails: missing inputs resolve to in_stock.
//
// A disposal wins over everything. An open (active or overdue) allocation means
// allocated. A returned allocation splits on the reusability threshold, which is
// inclusive; a missing percentage counts as below it.
func ComputeStatus(_ domain.Asset, latestAllocation *domain.Allocation, latestDisposal *domain.DisposalRecord, threshold float64) domain.AssetStatus {
	if latestDisposal != nil {
		return domain.StatusDisposed
	}
	if latestAllocation == nil {
		return domain.StatusInStock
	}
	switch latestAllocation.Status {
	case domain.AllocationActive, domain.AllocationOverdue:
		return domain.StatusAllocated
	case domain.AllocationReturned:
		if latestAllocation.ReusabilityPercentage != nil && *latestAllocation.ReusabilityPercentage >= threshold {
			return domain.StatusReadyForReallocation
		}
		return domain.StatusUnderMaintenance
	default:
		return domain.StatusInStock
	}
}

var validAssetStatuses = toSet(
	string(domain.StatusInStock),
	string(domain.StatusActive),
	string(domain.StatusAllocated),
	string(domain.StatusUnderMaintenance),
	string(domain.StatusReadyForReallocation),
	string(domain.StatusDisposed),
)

var assetTransitions = map[domain.AssetStatus]map[string]struct{}{
	domain.StatusInStock: toSet(
		string(domain.StatusActive),
		string(domain.StatusAllocated),
		string(domain.StatusUnderMaintenance),
		string(domain.StatusDisposed),
	),
	domain.StatusActive: toSet(
		string(domain.StatusInStock),
		string(domain.StatusUnderMaintenance),
		string(domain.StatusDisposed),
	),
	domain.StatusAllocated: toSet(
		string(domain.StatusReadyForReallocation),
		string(domain.StatusUnderMaintenance),
		string(domain.StatusDisposed),
	),
	domain.StatusUnderMaintenance: toSet(
		string(domain.StatusReadyForReallocation),
		string(domain.StatusInStock),
		string(domain.StatusDisposed),
	),
	domain.StatusReadyForReallocation: toSet(
		string(domain.StatusAllocated),
		string(domain.StatusInStock),
		string(domain.StatusUnderMaintenance),
		string(domain.StatusDisposed),
	),
	domain.StatusDisposed: {},
}

// ValidateTransition returns the invariants violated by moving an asset from
// one status to another. Staying in the same non-terminal status is allowed.
func ValidateTransition(assetID string, from, to domain.AssetStatus) []domain.Violation {
	if _, ok := validAssetStatuses[string(to)]; !ok {
		return []domain.Violation{blockingViolation(ruleLifecycleTransition, domain.EntityAsset, assetID,
			fmt.Sprintf("asset %s is set to invalid status %q", assetID, to))}
	}
	if from == to {
		return nil
	}
	if from == domain.StatusDisposed {
		return []domain.Violation{blockingViolation(ruleLifecycleTransition, domain.EntityAsset, assetID,
			fmt.Sprintf("cannot move asset %s from terminal status disposed to %s", assetID, to))}
	}
	allowed, known := assetTransitions[from]
	if !known {
		// records imported without a recognised status may move anywhere valid
		return nil
	}
	if _, ok := allowed[string(to)]; !ok {
		return []domain.Violation{blockingViolation(ruleLifecycleTransition, domain.EntityAsset, assetID,
			fmt.Sprintf("asset %s cannot move from %s to %s", assetID, from, to))}
	}
	return nil
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
