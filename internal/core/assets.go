package core

import (
	"assetledger/pkg/domain"
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	validAssetTypes = toSet(
		string(domain.AssetTypeEquipment),
		string(domain.AssetTypeTools),
		string(domain.AssetTypeMaterials),
	)
	validDepreciationMethods = toSet(
		string(domain.MethodStraightLine),
		string(domain.MethodDecliningBalance),
		string(domain.MethodUnitsOfProduction),
	)
)

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(domain.MoneyPlaces)
}

// RegisterAsset validates and stores a new asset. The book starts with no
// depreciation, NBV equal to the cost basis and status in_stock. An empty
// depreciation method defaults to straight line.
func (s *Service) RegisterAsset(ctx context.Context, asset domain.Asset) (domain.Asset, error) {
	var created domain.Asset
	err := s.run(ctx, "register_asset", func(tx domain.Transaction) (string, error) {
		input, err := normalizeNewAsset(asset)
		if err != nil {
			return "", err
		}
		created, err = tx.CreateAsset(input)
		return created.ID, err
	})
	return created, err
}

func normalizeNewAsset(asset domain.Asset) (domain.Asset, error) {
	asset.AssetCode = strings.TrimSpace(asset.AssetCode)
	asset.Name = strings.TrimSpace(asset.Name)
	if asset.AssetCode == "" {
		return domain.Asset{}, invalid(domain.EntityAsset, "", "asset_id", "asset code is required")
	}
	if asset.Name == "" {
		return domain.Asset{}, invalid(domain.EntityAsset, "", "name", "name is required")
	}
	if _, ok := validAssetTypes[string(asset.AssetType)]; !ok {
		return domain.Asset{}, invalid(domain.EntityAsset, "", "asset_type", "unknown asset type %q", asset.AssetType)
	}
	if asset.DepreciationMethod == "" {
		asset.DepreciationMethod = domain.MethodStraightLine
	}
	if _, ok := validDepreciationMethods[string(asset.DepreciationMethod)]; !ok {
		return domain.Asset{}, invalid(domain.EntityAsset, "", "depreciation_method", "unknown depreciation method %q", asset.DepreciationMethod)
	}
	if asset.CostBasis.IsNegative() {
		return domain.Asset{}, invalid(domain.EntityAsset, "", "cost_basis", "cost basis %s is negative", asset.CostBasis)
	}
	if asset.UsefulLifeMonths < 0 {
		return domain.Asset{}, invalid(domain.EntityAsset, "", "useful_life_months", "useful life %d is negative", asset.UsefulLifeMonths)
	}
	if asset.AmortizationPeriodMonths < 0 {
		return domain.Asset{}, invalid(domain.EntityAsset, "", "amortization_period_months", "amortization period %d is negative", asset.AmortizationPeriodMonths)
	}
	if asset.EstimatedTotalUnits.IsNegative() {
		return domain.Asset{}, invalid(domain.EntityAsset, "", "estimated_total_units", "estimated total units %s is negative", asset.EstimatedTotalUnits)
	}
	if err := validateQuantities(MaterialQuantities{
		SuppliedPrevious: asset.QuantitySuppliedPrevious,
		Requested:        asset.QuantityRequested,
		PerContract:      asset.QuantityPerContract,
	}); err != nil {
		return domain.Asset{}, err
	}

	asset.ID = ""
	asset.CostBasis = money(asset.CostBasis)
	asset.AccumulatedDepreciation = decimal.Zero
	asset.NBV = asset.CostBasis
	asset.TotalMaintenanceCost = decimal.Zero
	asset.CurrentStatus = domain.StatusInStock
	return asset, nil
}

// MaterialQuantities carries the supply counters tracked for materials.
type MaterialQuantities struct {
	SuppliedPrevious decimal.Decimal
	Requested        decimal.Decimal
	PerContract      decimal.Decimal
}

func validateQuantities(q MaterialQuantities) error {
	switch {
	case q.SuppliedPrevious.IsNegative():
		return invalid(domain.EntityAsset, "", "quantity_supplied_previous", "quantity %s is negative", q.SuppliedPrevious)
	case q.Requested.IsNegative():
		return invalid(domain.EntityAsset, "", "quantity_requested", "quantity %s is negative", q.Requested)
	case q.PerContract.IsNegative():
		return invalid(domain.EntityAsset, "", "quantity_per_contract", "quantity %s is negative", q.PerContract)
	}
	return nil
}

// UpdateMaterialQuantities replaces the supply counters of an asset.
func (s *Service) UpdateMaterialQuantities(ctx context.Context, assetID string, q MaterialQuantities) (domain.Asset, error) {
	var updated domain.Asset
	err := s.run(ctx, "update_material_quantities", func(tx domain.Transaction) (string, error) {
		if err := validateQuantities(q); err != nil {
			return assetID, err
		}
		asset, err := loadAsset(tx, assetID)
		if err != nil {
			return assetID, err
		}
		if asset.Disposed() {
			return assetID, disposedConflict(asset, "update quantities")
		}
		updated, err = tx.UpdateAsset(assetID, func(a *domain.Asset) error {
			a.QuantitySuppliedPrevious = q.SuppliedPrevious
			a.QuantityRequested = q.Requested
			a.QuantityPerContract = q.PerContract
			return nil
		})
		return assetID, err
	})
	return updated, err
}

// DeleteAsset removes an asset that has no lifecycle records.
func (s *Service) DeleteAsset(ctx context.Context, assetID string) error {
	return s.run(ctx, "delete_asset", func(tx domain.Transaction) (string, error) {
		if _, err := loadAsset(tx, assetID); err != nil {
			return assetID, err
		}
		return assetID, tx.DeleteAsset(assetID)
	})
}

// GetAsset returns a committed asset.
func (s *Service) GetAsset(ctx context.Context, assetID string) (domain.Asset, error) {
	var asset domain.Asset
	err := s.view(ctx, "get_asset", assetID, func(view domain.TransactionView) error {
		found, ok := view.FindAsset(assetID)
		if !ok {
			return notFound(domain.EntityAsset, assetID)
		}
		asset = found
		return nil
	})
	return asset, err
}

// ListAssets returns committed assets matching filter, ordered by asset code.
func (s *Service) ListAssets(ctx context.Context, filter domain.AssetFilter) ([]domain.Asset, error) {
	var assets []domain.Asset
	err := s.view(ctx, "list_assets", "", func(view domain.TransactionView) error {
		assets = view.FilterAssets(filter)
		return nil
	})
	return assets, err
}

// ListAllocations returns allocations matching filter in allocation order.
func (s *Service) ListAllocations(ctx context.Context, filter domain.AllocationFilter) ([]domain.Allocation, error) {
	var allocations []domain.Allocation
	err := s.view(ctx, "list_allocations", filter.AssetID, func(view domain.TransactionView) error {
		allocations = view.ListAllocations(filter)
		return nil
	})
	return allocations, err
}

// ListMaintenance returns the maintenance history of an asset by date.
func (s *Service) ListMaintenance(ctx context.Context, assetID string) ([]domain.MaintenanceRecord, error) {
	var records []domain.MaintenanceRecord
	err := s.view(ctx, "list_maintenance", assetID, func(view domain.TransactionView) error {
		if _, ok := view.FindAsset(assetID); !ok {
			return notFound(domain.EntityAsset, assetID)
		}
		records = view.ListMaintenance(assetID)
		return nil
	})
	return records, err
}

// DepreciationSchedule returns the depreciation ledger of an asset by period.
func (s *Service) DepreciationSchedule(ctx context.Context, assetID string) ([]domain.DepreciationEntry, error) {
	var entries []domain.DepreciationEntry
	err := s.view(ctx, "depreciation_schedule", assetID, func(view domain.TransactionView) error {
		if _, ok := view.FindAsset(assetID); !ok {
			return notFound(domain.EntityAsset, assetID)
		}
		entries = view.ListDepreciation(assetID)
		return nil
	})
	return entries, err
}

// GetDisposal returns the disposal record of an asset.
func (s *Service) GetDisposal(ctx context.Context, assetID string) (domain.DisposalRecord, error) {
	var record domain.DisposalRecord
	err := s.view(ctx, "get_disposal", assetID, func(view domain.TransactionView) error {
		found, ok := view.FindDisposalByAsset(assetID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityDisposal, ID: assetID, Reason: "asset has no disposal record"}
		}
		record = found
		return nil
	})
	return record, err
}

// StatusView is the read model shown next to an asset: the stored status, the
// status the Status Engine derives from the latest records, and the inputs.
type StatusView struct {
	Asset            domain.Asset            `json:"asset"`
	Stored           domain.AssetStatus      `json:"stored_status"`
	Derived          domain.AssetStatus      `json:"derived_status"`
	LatestAllocation *domain.Allocation      `json:"latest_allocation,omitempty"`
	Disposal         *domain.DisposalRecord  `json:"disposal,omitempty"`
	Quantities       domain.QuantityProgress `json:"quantities"`
}

// AssetStatusView recomputes the status of an asset for display. An open
// allocation always wins over closed ones as the status input. Derived may
// differ from Stored after an explicit release from maintenance.
func (s *Service) AssetStatusView(ctx context.Context, assetID string) (StatusView, error) {
	var out StatusView
	err := s.view(ctx, "asset_status_view", assetID, func(view domain.TransactionView) error {
		asset, ok := view.FindAsset(assetID)
		if !ok {
			return notFound(domain.EntityAsset, assetID)
		}
		out = StatusView{Asset: asset, Stored: asset.CurrentStatus, Quantities: asset.QuantityProgress()}
		if open := view.ListAllocations(domain.OpenAllocations(assetID)); len(open) > 0 {
			current := open[len(open)-1]
			out.LatestAllocation = &current
		} else if allocations := view.ListAllocations(domain.AllocationFilter{AssetID: assetID}); len(allocations) > 0 {
			latest := allocations[len(allocations)-1]
			out.LatestAllocation = &latest
		}
		if disposal, found := view.FindDisposalByAsset(assetID); found {
			out.Disposal = &disposal
		}
		out.Derived = ComputeStatus(asset, out.LatestAllocation, out.Disposal, s.threshold)
		return nil
	})
	return out, err
}
