package core

import (
	"assetledger/pkg/domain"
	"context"
	"fmt"
)

const ruleSingleOpenAllocation = "single_open_allocation"

// SingleOpenAllocationRule enforces at most one active or overdue allocation
// per asset, and that an open allocation always leaves its asset allocated.
func SingleOpenAllocationRule() domain.Rule {
	return singleOpenAllocationRule{}
}

type singleOpenAllocationRule struct{}

func (singleOpenAllocationRule) Name() string { return ruleSingleOpenAllocation }

func (singleOpenAllocationRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	checked := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityAllocation {
			continue
		}
		allocation, ok := domain.DecodeChangePayload[domain.Allocation](change.After)
		if !ok || !allocation.Status.Open() {
			continue
		}
		if _, seen := checked[allocation.AssetID]; seen {
			continue
		}
		checked[allocation.AssetID] = struct{}{}
		open := view.ListAllocations(domain.OpenAllocations(allocation.AssetID))
		if len(open) > 1 {
			res.Violations = append(res.Violations, blockingViolation(ruleSingleOpenAllocation, domain.EntityAllocation, allocation.ID,
				fmt.Sprintf("asset %s has %d open allocations; at most one is allowed", allocation.AssetID, len(open))))
			continue
		}
		if asset, found := view.FindAsset(allocation.AssetID); found && asset.CurrentStatus != domain.StatusAllocated {
			res.Violations = append(res.Violations, blockingViolation(ruleSingleOpenAllocation, domain.EntityAsset, asset.ID,
				fmt.Sprintf("asset %s has an open allocation but status %s", asset.ID, asset.CurrentStatus)))
		}
	}
	return res, nil
}
