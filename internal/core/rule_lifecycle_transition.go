package core

import (
	"assetledger/pkg/domain"
	"context"
	"fmt"
)

const ruleLifecycleTransition = "lifecycle_transition"

// LifecycleTransitionRule blocks illegal status transitions on assets and
// allocations, any mutation of a disposed asset, and new lifecycle records
// against a disposed asset.
func LifecycleTransitionRule() domain.Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

type lifecycleMachine struct {
	entity    domain.EntityType
	label     string
	terminal  map[string]struct{}
	valid     map[string]struct{}
	extractor func(payload domain.ChangePayload) (id string, state string, ok bool)
}

var allocationMachine = lifecycleMachine{
	entity:   domain.EntityAllocation,
	label:    "allocation",
	terminal: toSet(string(domain.AllocationReturned)),
	valid: toSet(
		string(domain.AllocationActive),
		string(domain.AllocationOverdue),
		string(domain.AllocationReturned),
	),
	extractor: func(payload domain.ChangePayload) (string, string, bool) {
		allocation, ok := domain.DecodeChangePayload[domain.Allocation](payload)
		if !ok {
			return "", "", false
		}
		return allocation.ID, string(allocation.Status), true
	},
}

func (lifecycleTransitionRule) Name() string { return ruleLifecycleTransition }

func (r lifecycleTransitionRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		switch change.Entity {
		case domain.EntityAsset:
			res.Violations = append(res.Violations, r.evaluateAsset(change)...)
		case domain.EntityAllocation:
			res.Violations = append(res.Violations, evaluateMachine(allocationMachine, change)...)
			res.Violations = append(res.Violations, r.evaluateChild(view, change, allocationAssetID)...)
		case domain.EntityMaintenance:
			res.Violations = append(res.Violations, r.evaluateChild(view, change, maintenanceAssetID)...)
		case domain.EntityDepreciation:
			res.Violations = append(res.Violations, r.evaluateChild(view, change, depreciationAssetID)...)
		}
	}
	return res, nil
}

func (lifecycleTransitionRule) evaluateAsset(change domain.Change) []domain.Violation {
	after, hasAfter := domain.DecodeChangePayload[domain.Asset](change.After)
	before, hasBefore := domain.DecodeChangePayload[domain.Asset](change.Before)
	switch {
	case hasBefore && before.Disposed() && !hasAfter:
		return []domain.Violation{blockingViolation(ruleLifecycleTransition, domain.EntityAsset, before.ID,
			fmt.Sprintf("disposed asset %s cannot be deleted", before.ID))}
	case hasBefore && hasAfter:
		violations := ValidateTransition(after.ID, before.CurrentStatus, after.CurrentStatus)
		if len(violations) == 0 && before.Disposed() && !sameAssetFacts(before, after) {
			violations = append(violations, blockingViolation(ruleLifecycleTransition, domain.EntityAsset, after.ID,
				fmt.Sprintf("disposed asset %s is immutable", after.ID)))
		}
		return violations
	case hasAfter:
		if after.CurrentStatus == domain.StatusDisposed || after.CurrentStatus == domain.StatusAllocated {
			return []domain.Violation{blockingViolation(ruleLifecycleTransition, domain.EntityAsset, after.ID,
				fmt.Sprintf("asset %s cannot be created with status %s", after.ID, after.CurrentStatus))}
		}
		return ValidateTransition(after.ID, after.CurrentStatus, after.CurrentStatus)
	}
	return nil
}

// sameAssetFacts compares every business field of two asset versions.
func sameAssetFacts(a, b domain.Asset) bool {
	return a.AssetCode == b.AssetCode &&
		a.Name == b.Name &&
		a.AssetType == b.AssetType &&
		a.CostBasis.Equal(b.CostBasis) &&
		a.AccumulatedDepreciation.Equal(b.AccumulatedDepreciation) &&
		a.NBV.Equal(b.NBV) &&
		a.DepreciationMethod == b.DepreciationMethod &&
		a.UsefulLifeMonths == b.UsefulLifeMonths &&
		a.AmortizationPeriodMonths == b.AmortizationPeriodMonths &&
		a.EstimatedTotalUnits.Equal(b.EstimatedTotalUnits) &&
		a.CurrentStatus == b.CurrentStatus &&
		a.TotalMaintenanceCost.Equal(b.TotalMaintenanceCost) &&
		a.QuantitySuppliedPrevious.Equal(b.QuantitySuppliedPrevious) &&
		a.QuantityRequested.Equal(b.QuantityRequested) &&
		a.QuantityPerContract.Equal(b.QuantityPerContract)
}

func evaluateMachine(machine lifecycleMachine, change domain.Change) []domain.Violation {
	var violations []domain.Violation
	afterID, newState, ok := machine.extractor(change.After)
	if ok {
		if _, valid := machine.valid[newState]; !valid {
			return append(violations, blockingViolation(ruleLifecycleTransition, machine.entity, afterID,
				fmt.Sprintf("%s %s is set to invalid state %s", machine.label, afterID, newState)))
		}
	}
	beforeID, beforeState, ok := machine.extractor(change.Before)
	if !ok {
		return violations
	}
	if _, terminal := machine.terminal[beforeState]; !terminal {
		return violations
	}
	afterID, afterState, ok := machine.extractor(change.After)
	if !ok || afterState != beforeState {
		if !ok {
			afterState = "deleted"
			afterID = beforeID
		}
		violations = append(violations, blockingViolation(ruleLifecycleTransition, machine.entity, afterID,
			fmt.Sprintf("cannot move %s %s from terminal state %s to %s", machine.label, beforeID, beforeState, afterState)))
	}
	return violations
}

func allocationAssetID(payload domain.ChangePayload) (string, string, bool) {
	a, ok := domain.DecodeChangePayload[domain.Allocation](payload)
	return a.ID, a.AssetID, ok
}

func maintenanceAssetID(payload domain.ChangePayload) (string, string, bool) {
	m, ok := domain.DecodeChangePayload[domain.MaintenanceRecord](payload)
	return m.ID, m.AssetID, ok
}

func depreciationAssetID(payload domain.ChangePayload) (string, string, bool) {
	d, ok := domain.DecodeChangePayload[domain.DepreciationEntry](payload)
	return d.ID, d.AssetID, ok
}

// evaluateChild blocks records created against an asset that is disposed in
// the pending state. The disposal transaction itself only creates the
// disposal record, which is not routed here.
func (lifecycleTransitionRule) evaluateChild(view domain.RuleView, change domain.Change, extract func(domain.ChangePayload) (string, string, bool)) []domain.Violation {
	if change.Action != domain.ActionCreate {
		return nil
	}
	id, assetID, ok := extract(change.After)
	if !ok {
		return nil
	}
	asset, found := view.FindAsset(assetID)
	if !found || !asset.Disposed() {
		return nil
	}
	return []domain.Violation{blockingViolation(ruleLifecycleTransition, change.Entity, id,
		fmt.Sprintf("asset %s is disposed; no further %s records are accepted", assetID, change.Entity))}
}
