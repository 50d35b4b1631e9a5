package core

import (
	"assetledger/pkg/domain"
	"context"
	"fmt"
)

const ruleDisposalIntegrity = "disposal_integrity"

// DisposalIntegrityRule keeps disposal records immutable and self-consistent:
// gain/loss equals sale price minus NBV at disposal, the sale price is not
// negative, the disposed asset carries the disposed status, and no record may
// be rewritten or removed after creation.
func DisposalIntegrityRule() domain.Rule {
	return disposalIntegrityRule{}
}

type disposalIntegrityRule struct{}

func (disposalIntegrityRule) Name() string { return ruleDisposalIntegrity }

func (disposalIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityDisposal {
			continue
		}
		if change.Action != domain.ActionCreate {
			id := ""
			if before, ok := domain.DecodeChangePayload[domain.DisposalRecord](change.Before); ok {
				id = before.ID
			}
			res.Violations = append(res.Violations, disposalViolation(id,
				fmt.Sprintf("disposal record %s is immutable (%s rejected)", id, change.Action)))
			continue
		}
		record, ok := domain.DecodeChangePayload[domain.DisposalRecord](change.After)
		if !ok {
			continue
		}
		if record.SalePrice.IsNegative() {
			res.Violations = append(res.Violations, disposalViolation(record.ID,
				fmt.Sprintf("sale price %s is negative", record.SalePrice)))
		}
		if !record.GainLoss.Equal(record.SalePrice.Sub(record.NBVAtDisposal)) {
			res.Violations = append(res.Violations, disposalViolation(record.ID,
				fmt.Sprintf("gain/loss %s does not equal sale price %s minus nbv %s", record.GainLoss, record.SalePrice, record.NBVAtDisposal)))
		}
		asset, found := view.FindAsset(record.AssetID)
		if !found || !asset.Disposed() {
			res.Violations = append(res.Violations, disposalViolation(record.ID,
				fmt.Sprintf("disposal record %s committed without disposing asset %s", record.ID, record.AssetID)))
		}
	}
	return res, nil
}

func disposalViolation(id, message string) domain.Violation {
	return blockingViolation(ruleDisposalIntegrity, domain.EntityDisposal, id, message)
}
