package core

import (
	"assetledger/pkg/domain"
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccrualOptions carries per-period inputs of the depreciation methods.
type AccrualOptions struct {
	// UnitsProduced is required by units of production and ignored otherwise.
	UnitsProduced decimal.Decimal
}

// PeriodStart normalises a date to the first day of its month in UTC.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AccruePeriod records one month of depreciation for an asset and applies it
// to the asset book. Accumulated depreciation never exceeds the cost basis;
// once it is reached further periods still record a zero-amount entry. A zero
// period means the current month.
func (s *Service) AccruePeriod(ctx context.Context, assetID string, period time.Time, opts AccrualOptions) (domain.DepreciationEntry, error) {
	var created domain.DepreciationEntry
	err := s.run(ctx, "accrue_period", func(tx domain.Transaction) (string, error) {
		if period.IsZero() {
			period = s.now()
		}
		periodDate := PeriodStart(period)

		asset, err := loadAsset(tx, assetID)
		if err != nil {
			return assetID, err
		}
		if asset.Disposed() {
			return assetID, disposedConflict(asset, "depreciation")
		}

		entries := tx.Snapshot().ListDepreciation(assetID)
		if n := len(entries); n > 0 {
			last := PeriodStart(entries[n-1].PeriodDate)
			switch {
			case periodDate.Equal(last):
				return assetID, domain.ConflictError{
					Entity:  domain.EntityDepreciation,
					ID:      entries[n-1].ID,
					Field:   "period_date",
					Actual:  last.Format("2006-01"),
					Message: fmt.Sprintf("asset %s already has an entry for %s", assetID, last.Format("2006-01")),
				}
			case periodDate.Before(last):
				return assetID, invalid(domain.EntityDepreciation, "", "period_date",
					"period %s is earlier than the latest entry %s", periodDate.Format("2006-01"), last.Format("2006-01"))
			}
		}

		amount, err := periodAmount(asset, len(entries)+1, opts)
		if err != nil {
			return assetID, err
		}
		remaining := asset.CostBasis.Sub(asset.AccumulatedDepreciation)
		if !remaining.IsPositive() {
			amount = decimal.Zero
		} else if amount.GreaterThan(remaining) {
			amount = remaining
		}
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		accumulated := asset.AccumulatedDepreciation.Add(amount)
		nbv := asset.CostBasis.Sub(accumulated)

		created, err = tx.CreateDepreciation(domain.DepreciationEntry{
			AssetID:                 assetID,
			PeriodDate:              periodDate,
			Method:                  asset.DepreciationMethod,
			UnitsProduced:           opts.UnitsProduced,
			DepreciationAmount:      amount,
			AccumulatedDepreciation: accumulated,
			NBV:                     nbv,
			IsProcessed:             true,
		})
		if err != nil {
			return assetID, err
		}
		_, err = tx.UpdateAsset(assetID, func(a *domain.Asset) error {
			a.AccumulatedDepreciation = accumulated
			a.NBV = nbv
			return nil
		})
		return created.ID, err
	})
	return created, err
}

// periodAmount computes the uncapped amount for scheduled period n (1-based).
func periodAmount(asset domain.Asset, n int, opts AccrualOptions) (decimal.Decimal, error) {
	remaining := asset.CostBasis.Sub(asset.AccumulatedDepreciation)
	switch asset.DepreciationMethod {
	case domain.MethodStraightLine, "":
		if asset.UsefulLifeMonths <= 0 {
			return decimal.Zero, invalid(domain.EntityAsset, asset.ID, "useful_life_months",
				"useful life must be positive for straight line, got %d", asset.UsefulLifeMonths)
		}
		if n >= asset.UsefulLifeMonths {
			return remaining, nil
		}
		return money(asset.CostBasis.Div(decimal.NewFromInt(int64(asset.UsefulLifeMonths)))), nil
	case domain.MethodDecliningBalance:
		if asset.UsefulLifeMonths <= 0 {
			return decimal.Zero, invalid(domain.EntityAsset, asset.ID, "useful_life_months",
				"useful life must be positive for declining balance, got %d", asset.UsefulLifeMonths)
		}
		if n >= asset.UsefulLifeMonths {
			return remaining, nil
		}
		rate := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(asset.UsefulLifeMonths)))
		return money(asset.NBV.Mul(rate)), nil
	case domain.MethodUnitsOfProduction:
		if !asset.EstimatedTotalUnits.IsPositive() {
			return decimal.Zero, invalid(domain.EntityAsset, asset.ID, "estimated_total_units",
				"estimated total units must be positive, got %s", asset.EstimatedTotalUnits)
		}
		if opts.UnitsProduced.IsNegative() {
			return decimal.Zero, invalid(domain.EntityDepreciation, "", "units_produced",
				"units produced %s is negative", opts.UnitsProduced)
		}
		return money(asset.CostBasis.Div(asset.EstimatedTotalUnits).Mul(opts.UnitsProduced)), nil
	default:
		return decimal.Zero, invalid(domain.EntityAsset, asset.ID, "depreciation_method",
			"unknown depreciation method %q", asset.DepreciationMethod)
	}
}
