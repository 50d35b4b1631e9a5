package core

import (
	"assetledger/pkg/domain"
	"context"
	"fmt"
)

const ruleFinancialInvariants = "financial_invariants"

// FinancialInvariantsRule keeps asset books consistent: NBV equals cost basis
// minus accumulated depreciation, accumulated depreciation stays within
// [0, cost basis] and never decreases, and the maintenance total never
// decreases. Depreciation entries must carry a non-negative amount and a
// running total within the cost basis.
func FinancialInvariantsRule() domain.Rule {
	return financialInvariantsRule{}
}

type financialInvariantsRule struct{}

func (financialInvariantsRule) Name() string { return ruleFinancialInvariants }

func (financialInvariantsRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		switch change.Entity {
		case domain.EntityAsset:
			after, ok := domain.DecodeChangePayload[domain.Asset](change.After)
			if !ok {
				continue
			}
			res.Violations = append(res.Violations, assetBookViolations(after)...)
			if before, had := domain.DecodeChangePayload[domain.Asset](change.Before); had {
				if after.AccumulatedDepreciation.LessThan(before.AccumulatedDepreciation) {
					res.Violations = append(res.Violations, financialViolation(domain.EntityAsset, after.ID,
						fmt.Sprintf("accumulated depreciation of asset %s decreased from %s to %s", after.ID, before.AccumulatedDepreciation, after.AccumulatedDepreciation)))
				}
				if after.TotalMaintenanceCost.LessThan(before.TotalMaintenanceCost) {
					res.Violations = append(res.Violations, financialViolation(domain.EntityAsset, after.ID,
						fmt.Sprintf("total maintenance cost of asset %s decreased from %s to %s", after.ID, before.TotalMaintenanceCost, after.TotalMaintenanceCost)))
				}
			}
		case domain.EntityDepreciation:
			entry, ok := domain.DecodeChangePayload[domain.DepreciationEntry](change.After)
			if !ok {
				continue
			}
			if entry.DepreciationAmount.IsNegative() {
				res.Violations = append(res.Violations, financialViolation(domain.EntityDepreciation, entry.ID,
					fmt.Sprintf("depreciation amount %s is negative", entry.DepreciationAmount)))
			}
			if asset, found := view.FindAsset(entry.AssetID); found && entry.AccumulatedDepreciation.GreaterThan(asset.CostBasis) {
				res.Violations = append(res.Violations, financialViolation(domain.EntityDepreciation, entry.ID,
					fmt.Sprintf("accumulated depreciation %s exceeds cost basis %s", entry.AccumulatedDepreciation, asset.CostBasis)))
			}
		case domain.EntityMaintenance:
			record, ok := domain.DecodeChangePayload[domain.MaintenanceRecord](change.After)
			if ok && record.Cost.IsNegative() {
				res.Violations = append(res.Violations, financialViolation(domain.EntityMaintenance, record.ID,
					fmt.Sprintf("maintenance cost %s is negative", record.Cost)))
			}
		}
	}
	return res, nil
}

func assetBookViolations(a domain.Asset) []domain.Violation {
	var violations []domain.Violation
	if a.CostBasis.IsNegative() {
		violations = append(violations, financialViolation(domain.EntityAsset, a.ID,
			fmt.Sprintf("cost basis %s is negative", a.CostBasis)))
	}
	if a.AccumulatedDepreciation.IsNegative() || a.AccumulatedDepreciation.GreaterThan(a.CostBasis) {
		violations = append(violations, financialViolation(domain.EntityAsset, a.ID,
			fmt.Sprintf("accumulated depreciation %s outside [0, %s]", a.AccumulatedDepreciation, a.CostBasis)))
	}
	if !a.NBV.Equal(a.CostBasis.Sub(a.AccumulatedDepreciation)) {
		violations = append(violations, financialViolation(domain.EntityAsset, a.ID,
			fmt.Sprintf("nbv %s does not equal cost basis %s minus accumulated depreciation %s", a.NBV, a.CostBasis, a.AccumulatedDepreciation)))
	}
	if a.TotalMaintenanceCost.IsNegative() {
		violations = append(violations, financialViolation(domain.EntityAsset, a.ID,
			fmt.Sprintf("total maintenance cost %s is negative", a.TotalMaintenanceCost)))
	}
	return violations
}

func financialViolation(entity domain.EntityType, id, message string) domain.Violation {
	return blockingViolation(ruleFinancialInvariants, entity, id, message)
}
