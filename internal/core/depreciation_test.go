package core

import (
	"assetledger/pkg/domain"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func month(i int) time.Time {
	return time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0)
}

func TestStraightLineTwelveMonthScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "SL-1", nil)

	for i := 0; i < 12; i++ {
		entry, err := svc.AccruePeriod(ctx, asset.ID, month(i).AddDate(0, 0, 14), AccrualOptions{})
		if err != nil {
			t.Fatalf("accrue period %d: %v", i+1, err)
		}
		if !entry.DepreciationAmount.Equal(decimal.NewFromInt(1_000_000)) {
			t.Fatalf("period %d: expected 1,000,000, got %s", i+1, entry.DepreciationAmount)
		}
		if !entry.PeriodDate.Equal(month(i)) {
			t.Fatalf("period %d: expected normalised period %s, got %s", i+1, month(i), entry.PeriodDate)
		}
		book := mustGetAsset(t, svc, asset.ID)
		if !book.NBV.Equal(book.CostBasis.Sub(book.AccumulatedDepreciation)) {
			t.Fatalf("period %d: nbv invariant broken: %+v", i+1, book)
		}
	}
	book := mustGetAsset(t, svc, asset.ID)
	if !book.AccumulatedDepreciation.Equal(decimal.NewFromInt(12_000_000)) || !book.NBV.IsZero() {
		t.Fatalf("expected fully depreciated asset, got acc=%s nbv=%s", book.AccumulatedDepreciation, book.NBV)
	}

	extra, err := svc.AccruePeriod(ctx, asset.ID, month(12), AccrualOptions{})
	if err != nil {
		t.Fatalf("13th accrual: %v", err)
	}
	if !extra.DepreciationAmount.IsZero() || !extra.IsProcessed {
		t.Fatalf("expected zero processed entry, got %+v", extra)
	}
	after := mustGetAsset(t, svc, asset.ID)
	if !after.AccumulatedDepreciation.Equal(book.AccumulatedDepreciation) || !after.NBV.Equal(book.NBV) {
		t.Fatalf("13th accrual changed the book: %+v", after)
	}
	schedule, err := svc.DepreciationSchedule(ctx, asset.ID)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(schedule) != 13 {
		t.Fatalf("expected 13 entries, got %d", len(schedule))
	}
}

func TestStraightLineLastPeriodTakesRemainder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "SL-2", func(a *domain.Asset) {
		a.CostBasis = decimal.NewFromInt(1000)
		a.UsefulLifeMonths = 3
	})
	var amounts []string
	for i := 0; i < 3; i++ {
		entry, err := svc.AccruePeriod(ctx, asset.ID, month(i), AccrualOptions{})
		if err != nil {
			t.Fatalf("accrue %d: %v", i, err)
		}
		amounts = append(amounts, entry.DepreciationAmount.StringFixed(2))
	}
	want := []string{"333.33", "333.33", "333.34"}
	for i := range want {
		if amounts[i] != want[i] {
			t.Fatalf("expected amounts %v, got %v", want, amounts)
		}
	}
	if book := mustGetAsset(t, svc, asset.ID); !book.NBV.IsZero() {
		t.Fatalf("expected nbv 0, got %s", book.NBV)
	}
}

func TestDecliningBalance(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "DB-1", func(a *domain.Asset) {
		a.CostBasis = decimal.NewFromInt(1200)
		a.UsefulLifeMonths = 4
		a.DepreciationMethod = domain.MethodDecliningBalance
	})
	want := []string{"600.00", "300.00", "150.00", "150.00"}
	for i := range want {
		entry, err := svc.AccruePeriod(ctx, asset.ID, month(i), AccrualOptions{})
		if err != nil {
			t.Fatalf("accrue %d: %v", i, err)
		}
		if got := entry.DepreciationAmount.StringFixed(2); got != want[i] {
			t.Fatalf("period %d: expected %s, got %s", i+1, want[i], got)
		}
		if entry.Method != domain.MethodDecliningBalance {
			t.Fatalf("expected method recorded, got %s", entry.Method)
		}
	}
	if book := mustGetAsset(t, svc, asset.ID); !book.NBV.IsZero() || !book.AccumulatedDepreciation.Equal(book.CostBasis) {
		t.Fatalf("expected fully depreciated, got %+v", book)
	}
}

func TestUnitsOfProduction(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "UP-1", func(a *domain.Asset) {
		a.CostBasis = decimal.NewFromInt(10_000)
		a.DepreciationMethod = domain.MethodUnitsOfProduction
		a.EstimatedTotalUnits = decimal.NewFromInt(1000)
		a.UsefulLifeMonths = 0
	})
	entry, err := svc.AccruePeriod(ctx, asset.ID, month(0), AccrualOptions{UnitsProduced: decimal.NewFromInt(250)})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if !entry.DepreciationAmount.Equal(decimal.NewFromInt(2500)) || !entry.UnitsProduced.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("unexpected entry %+v", entry)
	}
	// more units than remain are capped at the cost basis
	entry, err = svc.AccruePeriod(ctx, asset.ID, month(1), AccrualOptions{UnitsProduced: decimal.NewFromInt(5000)})
	if err != nil {
		t.Fatalf("accrue capped: %v", err)
	}
	if !entry.DepreciationAmount.Equal(decimal.NewFromInt(7500)) || !entry.NBV.IsZero() {
		t.Fatalf("expected capped amount 7500, got %+v", entry)
	}
	_, err = svc.AccruePeriod(ctx, asset.ID, month(2), AccrualOptions{UnitsProduced: decimal.NewFromInt(-1)})
	assertValidation(t, err)
}

func TestAccruePeriodValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	noLife := mustRegister(t, svc, "SL-0", func(a *domain.Asset) { a.UsefulLifeMonths = 0 })
	_, err := svc.AccruePeriod(ctx, noLife.ID, month(0), AccrualOptions{})
	assertValidation(t, err)

	noUnits := mustRegister(t, svc, "UP-0", func(a *domain.Asset) {
		a.DepreciationMethod = domain.MethodUnitsOfProduction
	})
	_, err = svc.AccruePeriod(ctx, noUnits.ID, month(0), AccrualOptions{UnitsProduced: decimal.NewFromInt(1)})
	assertValidation(t, err)

	_, err = svc.AccruePeriod(ctx, "missing", month(0), AccrualOptions{})
	assertNotFound(t, err)

	asset := mustRegister(t, svc, "SL-3", nil)
	if _, err := svc.AccruePeriod(ctx, asset.ID, month(3), AccrualOptions{}); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	_, err = svc.AccruePeriod(ctx, asset.ID, month(3).AddDate(0, 0, 20), AccrualOptions{})
	assertConflict(t, err)
	_, err = svc.AccruePeriod(ctx, asset.ID, month(1), AccrualOptions{})
	assertValidation(t, err)

	schedule, _ := svc.DepreciationSchedule(ctx, asset.ID)
	if len(schedule) != 1 {
		t.Fatalf("expected rejected accruals to write nothing, got %d entries", len(schedule))
	}
}

func TestAccruePeriodDefaultsToCurrentMonth(t *testing.T) {
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "SL-4", nil)
	entry, err := svc.AccruePeriod(context.Background(), asset.ID, time.Time{}, AccrualOptions{})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if !entry.PeriodDate.Equal(PeriodStart(testEpoch)) {
		t.Fatalf("expected current month, got %s", entry.PeriodDate)
	}
}

func TestAccruePeriodRejectsDisposedAsset(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "SL-5", nil)
	if _, err := svc.Dispose(ctx, DisposeRequest{AssetID: asset.ID, Reason: domain.DisposalSold}); err != nil {
		t.Fatalf("dispose: %v", err)
	}
	_, err := svc.AccruePeriod(ctx, asset.ID, month(0), AccrualOptions{})
	assertConflict(t, err)
}
