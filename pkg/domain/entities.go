// Package domain defines the persistent asset lifecycle entities, value types,
// and rule evaluation primitives used by assetledger.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAsset identifies an asset master record.
	EntityAsset EntityType = "asset"
	// EntityAllocation identifies an allocation (loan) of an asset to a holder.
	EntityAllocation EntityType = "allocation"
	// EntityMaintenance identifies a maintenance record.
	EntityMaintenance EntityType = "maintenance_record"
	// EntityDepreciation identifies a depreciation ledger entry.
	EntityDepreciation EntityType = "depreciation_entry"
	// EntityDisposal identifies a disposal record.
	EntityDisposal EntityType = "disposal_record"
)

// AssetType classifies an asset.
type AssetType string

// Canonical asset types.
const (
	AssetTypeEquipment AssetType = "equipment"
	AssetTypeTools     AssetType = "tools"
	AssetTypeMaterials AssetType = "materials"
)

// DepreciationMethod selects the formula used by the depreciation ledger.
type DepreciationMethod string

// Supported depreciation methods.
const (
	MethodStraightLine      DepreciationMethod = "straight_line"
	MethodDecliningBalance  DepreciationMethod = "declining_balance"
	MethodUnitsOfProduction DepreciationMethod = "units_of_production"
)

// AssetStatus enumerates asset lifecycle states. StatusDisposed is terminal.
type AssetStatus string

// Canonical asset statuses.
const (
	StatusInStock              AssetStatus = "in_stock"
	StatusActive               AssetStatus = "active"
	StatusAllocated            AssetStatus = "allocated"
	StatusUnderMaintenance     AssetStatus = "under_maintenance"
	StatusReadyForReallocation AssetStatus = "ready_for_reallocation"
	StatusDisposed             AssetStatus = "disposed"
)

// AllocationStatus enumerates allocation states. AllocationReturned is terminal.
type AllocationStatus string

// Canonical allocation statuses.
const (
	AllocationActive   AllocationStatus = "active"
	AllocationOverdue  AllocationStatus = "overdue"
	AllocationReturned AllocationStatus = "returned"
)

// Open reports whether the allocation still holds the asset.
func (s AllocationStatus) Open() bool {
	return s == AllocationActive || s == AllocationOverdue
}

// MaintenanceType enumerates service event kinds.
type MaintenanceType string

// Canonical maintenance types.
const (
	MaintenancePreventive MaintenanceType = "preventive"
	MaintenanceCorrective MaintenanceType = "corrective"
	MaintenanceInspection MaintenanceType = "inspection"
	MaintenanceUpgrade    MaintenanceType = "upgrade"
)

// DisposalReason enumerates why an asset left the books.
type DisposalReason string

// Canonical disposal reasons.
const (
	DisposalObsolete DisposalReason = "obsolete"
	DisposalDamaged  DisposalReason = "damaged"
	DisposalSold     DisposalReason = "sold"
	DisposalDonated  DisposalReason = "donated"
	DisposalLost     DisposalReason = "lost"
	DisposalOther    DisposalReason = "other"
)

// DefaultReusabilityThreshold is the inclusive reusability percentage at which a
// returned asset may be reallocated without maintenance.
const DefaultReusabilityThreshold = 80.0

// MoneyPlaces is the number of decimal places kept for monetary amounts.
const MoneyPlaces = 2

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Asset is a depreciable or consumable item and the root of every lifecycle record.
type Asset struct {
	Base
	AssetCode                string             `json:"asset_id"`
	Name                     string             `json:"name"`
	AssetType                AssetType          `json:"asset_type"`
	CostBasis                decimal.Decimal    `json:"cost_basis"`
	AccumulatedDepreciation  decimal.Decimal    `json:"accumulated_depreciation"`
	NBV                      decimal.Decimal    `json:"nbv"`
	DepreciationMethod       DepreciationMethod `json:"depreciation_method"`
	UsefulLifeMonths         int                `json:"useful_life_months"`
	AmortizationPeriodMonths int                `json:"amortization_period_months"`
	EstimatedTotalUnits      decimal.Decimal    `json:"estimated_total_units"`
	CurrentStatus            AssetStatus        `json:"current_status"`
	TotalMaintenanceCost     decimal.Decimal    `json:"total_maintenance_cost"`
	QuantitySuppliedPrevious decimal.Decimal    `json:"quantity_supplied_previous"`
	QuantityRequested        decimal.Decimal    `json:"quantity_requested"`
	QuantityPerContract      decimal.Decimal    `json:"quantity_per_contract"`
}

// Disposed reports whether the asset reached its terminal state.
func (a Asset) Disposed() bool {
	return a.CurrentStatus == StatusDisposed
}

// QuantityProgress summarises material supply against the contracted quantity.
type QuantityProgress struct {
	Cumulative decimal.Decimal `json:"cumulative"`
	Remaining  decimal.Decimal `json:"remaining"`
	// Percentage is cumulative / per_contract scaled to 0-100.
	Percentage decimal.Decimal `json:"percentage"`
}

// QuantityProgress derives cumulative, remaining, and percentage supplied.
// Percentage is on a 0-100 scale rounded to 2 places and is zero without a
// contracted quantity.
func (a Asset) QuantityProgress() QuantityProgress {
	cumulative := a.QuantitySuppliedPrevious.Add(a.QuantityRequested)
	progress := QuantityProgress{
		Cumulative: cumulative,
		Remaining:  a.QuantityPerContract.Sub(cumulative),
		Percentage: decimal.Zero,
	}
	if a.QuantityPerContract.IsPositive() {
		progress.Percentage = cumulative.Div(a.QuantityPerContract).Mul(decimal.NewFromInt(100)).Round(MoneyPlaces)
	}
	return progress
}

// Allocation is one loan of an asset to a holder for a purpose.
type Allocation struct {
	Base
	AssetID               string           `json:"asset_master_id"`
	AllocatedTo           string           `json:"allocated_to"`
	AllocatedBy           string           `json:"allocated_by"`
	Purpose               string           `json:"purpose"`
	ProjectID             *string          `json:"project_id,omitempty"`
	AllocationDate        time.Time        `json:"allocation_date"`
	ExpectedReturnDate    *time.Time       `json:"expected_return_date,omitempty"`
	ActualReturnDate      *time.Time       `json:"actual_return_date,omitempty"`
	Status                AllocationStatus `json:"status"`
	ReturnCondition       string           `json:"return_condition,omitempty"`
	ReusabilityPercentage *float64         `json:"reusability_percentage,omitempty"`
}

// MaintenanceRecord is one append-only service event against an asset.
type MaintenanceRecord struct {
	Base
	AssetID         string          `json:"asset_master_id"`
	MaintenanceType MaintenanceType `json:"maintenance_type"`
	MaintenanceDate time.Time       `json:"maintenance_date"`
	Description     string          `json:"description"`
	Cost            decimal.Decimal `json:"cost"`
	Vendor          string          `json:"vendor"`
	PerformedBy     string          `json:"performed_by"`
}

// DepreciationEntry records one period's depreciation for an asset.
type DepreciationEntry struct {
	Base
	AssetID                 string             `json:"asset_master_id"`
	PeriodDate              time.Time          `json:"period_date"`
	Method                  DepreciationMethod `json:"method"`
	UnitsProduced           decimal.Decimal    `json:"units_produced"`
	DepreciationAmount      decimal.Decimal    `json:"depreciation_amount"`
	AccumulatedDepreciation decimal.Decimal    `json:"accumulated_depreciation"`
	NBV                     decimal.Decimal    `json:"nbv"`
	IsProcessed             bool               `json:"is_processed"`
}

// DisposalRecord is the terminal event for an asset.
type DisposalRecord struct {
	Base
	AssetID        string          `json:"asset_master_id"`
	DisposalDate   time.Time       `json:"disposal_date"`
	DisposalReason DisposalReason  `json:"disposal_reason"`
	NBVAtDisposal  decimal.Decimal `json:"nbv_at_disposal"`
	SalePrice      decimal.Decimal `json:"sale_price"`
	GainLoss       decimal.Decimal `json:"gain_loss"`
	Notes          string          `json:"notes"`
	ApprovedBy     string          `json:"approved_by"`
	ArchiveKey     string          `json:"archive_key"`
}

// Change describes a mutation applied to an entity within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before ChangePayload
	After  ChangePayload
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
