package scheduler

import (
	"assetledger/pkg/domain"

	"github.com/shopspring/decimal"
)

func assetFixture(code string) domain.Asset {
	return domain.Asset{
		AssetCode:          code,
		Name:               "Survey drone",
		AssetType:          domain.AssetTypeEquipment,
		CostBasis:          decimal.NewFromInt(2400),
		DepreciationMethod: domain.MethodStraightLine,
		UsefulLifeMonths:   24,
	}
}

func allocationFilter(assetID string) domain.AllocationFilter {
	return domain.AllocationFilter{AssetID: assetID}
}
