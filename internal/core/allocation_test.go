package core

import (
	"assetledger/pkg/domain"
	"context"
	"testing"
	"time"
)

func TestAllocateAndReturnScenario(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)
	asset := mustRegister(t, svc, "EQ-1", nil)

	allocation := mustAllocate(t, svc, asset.ID)
	if allocation.Status != domain.AllocationActive {
		t.Fatalf("expected active allocation, got %s", allocation.Status)
	}
	if !allocation.AllocationDate.Equal(testEpoch) {
		t.Fatalf("expected allocation date from clock, got %s", allocation.AllocationDate)
	}
	if got := mustGetAsset(t, svc, asset.ID).CurrentStatus; got != domain.StatusAllocated {
		t.Fatalf("expected allocated asset, got %s", got)
	}

	clock.Advance(48 * time.Hour)
	returned, status, err := svc.ReturnAllocation(ctx, ReturnRequest{AllocationID: allocation.ID, Condition: " good ", ReusabilityPercentage: 90})
	if err != nil {
		t.Fatalf("return allocation: %v", err)
	}
	if returned.Status != domain.AllocationReturned {
		t.Fatalf("expected returned allocation, got %s", returned.Status)
	}
	if returned.ActualReturnDate == nil || !returned.ActualReturnDate.Equal(testEpoch.Add(48*time.Hour)) {
		t.Fatalf("expected actual return date from clock, got %v", returned.ActualReturnDate)
	}
	if returned.ReturnCondition != "good" || returned.ReusabilityPercentage == nil || *returned.ReusabilityPercentage != 90 {
		t.Fatalf("expected condition and percentage persisted, got %+v", returned)
	}
	if status != domain.StatusReadyForReallocation {
		t.Fatalf("expected ready_for_reallocation, got %s", status)
	}
	if got := mustGetAsset(t, svc, asset.ID).CurrentStatus; got != domain.StatusReadyForReallocation {
		t.Fatalf("expected stored ready_for_reallocation, got %s", got)
	}

	// a reallocation-ready asset can be lent again
	mustAllocate(t, svc, asset.ID)
}

func TestReturnReusabilityThreshold(t *testing.T) {
	cases := []struct {
		pct  float64
		want domain.AssetStatus
	}{
		{pct: 80, want: domain.StatusReadyForReallocation},
		{pct: 79, want: domain.StatusUnderMaintenance},
		{pct: 0, want: domain.StatusUnderMaintenance},
		{pct: 100, want: domain.StatusReadyForReallocation},
	}
	for _, tc := range cases {
		svc, _ := newTestService(t)
		asset := mustRegister(t, svc, "EQ-T", nil)
		allocation := mustAllocate(t, svc, asset.ID)
		_, status, err := svc.ReturnAllocation(context.Background(), ReturnRequest{AllocationID: allocation.ID, ReusabilityPercentage: tc.pct})
		if err != nil {
			t.Fatalf("return at %v: %v", tc.pct, err)
		}
		if status != tc.want {
			t.Fatalf("return at %v: expected %s, got %s", tc.pct, tc.want, status)
		}
		if got := mustGetAsset(t, svc, asset.ID).CurrentStatus; got != tc.want {
			t.Fatalf("return at %v: expected stored %s, got %s", tc.pct, tc.want, got)
		}
	}
}

func TestReturnUsesConfiguredThreshold(t *testing.T) {
	svc, _ := newTestService(t, WithReusabilityThreshold(60))
	asset := mustRegister(t, svc, "EQ-C", nil)
	allocation := mustAllocate(t, svc, asset.ID)
	_, status, err := svc.ReturnAllocation(context.Background(), ReturnRequest{AllocationID: allocation.ID, ReusabilityPercentage: 65})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if status != domain.StatusReadyForReallocation {
		t.Fatalf("expected threshold 60 to allow reallocation, got %s", status)
	}
}

func TestDoubleReturnIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "EQ-2", nil)
	allocation := mustAllocate(t, svc, asset.ID)
	if _, _, err := svc.ReturnAllocation(ctx, ReturnRequest{AllocationID: allocation.ID, ReusabilityPercentage: 85}); err != nil {
		t.Fatalf("first return: %v", err)
	}
	_, _, err := svc.ReturnAllocation(ctx, ReturnRequest{AllocationID: allocation.ID, ReusabilityPercentage: 85})
	assertNotFound(t, err)

	_, _, err = svc.ReturnAllocation(ctx, ReturnRequest{AllocationID: "missing", ReusabilityPercentage: 85})
	assertNotFound(t, err)
}

func TestReturnRejectsPercentageOutOfRange(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "EQ-3", nil)
	allocation := mustAllocate(t, svc, asset.ID)
	for _, p := range []float64{-1, 100.5} {
		_, _, err := svc.ReturnAllocation(ctx, ReturnRequest{AllocationID: allocation.ID, ReusabilityPercentage: p})
		assertValidation(t, err)
	}
	stored, ok := svc.Store().GetAllocation(allocation.ID)
	if !ok || stored.Status != domain.AllocationActive {
		t.Fatalf("expected allocation untouched after rejected returns, got %+v", stored)
	}
}

func TestAllocateConflictsAndValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "EQ-4", nil)
	mustAllocate(t, svc, asset.ID)

	_, err := svc.Allocate(ctx, AllocateRequest{AssetID: asset.ID, HolderID: "emp-2", Purpose: "second"})
	assertConflict(t, err)

	other := mustRegister(t, svc, "EQ-5", nil)
	_, err = svc.Allocate(ctx, AllocateRequest{AssetID: other.ID, HolderID: "emp-2", Purpose: "   "})
	assertValidation(t, err)
	_, err = svc.Allocate(ctx, AllocateRequest{AssetID: other.ID, Purpose: "work"})
	assertValidation(t, err)
	_, err = svc.Allocate(ctx, AllocateRequest{HolderID: "emp-2", Purpose: "work"})
	assertValidation(t, err)
	past := testEpoch.AddDate(0, 0, -1)
	_, err = svc.Allocate(ctx, AllocateRequest{AssetID: other.ID, HolderID: "emp-2", Purpose: "work", ExpectedReturnDate: &past})
	assertValidation(t, err)
	_, err = svc.Allocate(ctx, AllocateRequest{AssetID: "missing", HolderID: "emp-2", Purpose: "work"})
	assertNotFound(t, err)

	if got := mustGetAsset(t, svc, other.ID).CurrentStatus; got != domain.StatusInStock {
		t.Fatalf("expected rejected allocations to leave asset in stock, got %s", got)
	}
	allocations, err := svc.ListAllocations(ctx, domain.AllocationFilter{AssetID: other.ID})
	if err != nil {
		t.Fatalf("list allocations: %v", err)
	}
	if len(allocations) != 0 {
		t.Fatalf("expected no allocations written, got %d", len(allocations))
	}
}

func TestAllocateRejectsNonAllocatableStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "EQ-6", nil)
	if _, err := svc.Store().RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateAsset(asset.ID, func(a *domain.Asset) error {
			a.CurrentStatus = domain.StatusUnderMaintenance
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("move to maintenance: %v", err)
	}
	_, err := svc.Allocate(ctx, AllocateRequest{AssetID: asset.ID, HolderID: "emp-1", Purpose: "work"})
	assertValidation(t, err)

	released, err := svc.ReleaseFromMaintenance(ctx, asset.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.CurrentStatus != domain.StatusReadyForReallocation {
		t.Fatalf("expected ready_for_reallocation after release, got %s", released.CurrentStatus)
	}
	_, err = svc.ReleaseFromMaintenance(ctx, asset.ID)
	assertConflict(t, err)
	mustAllocate(t, svc, asset.ID)
}

func TestAllocateRejectsDisposedAsset(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "EQ-7", nil)
	if _, err := svc.Dispose(ctx, DisposeRequest{AssetID: asset.ID, Reason: domain.DisposalObsolete}); err != nil {
		t.Fatalf("dispose: %v", err)
	}
	_, err := svc.Allocate(ctx, AllocateRequest{AssetID: asset.ID, HolderID: "emp-1", Purpose: "work"})
	assertConflict(t, err)
}

func TestMarkOverdueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)
	due := testEpoch.AddDate(0, 0, 2)
	late := mustRegister(t, svc, "EQ-8", nil)
	onTime := mustRegister(t, svc, "EQ-9", nil)
	noDate := mustRegister(t, svc, "EQ-10", nil)

	lateAlloc, err := svc.Allocate(ctx, AllocateRequest{AssetID: late.ID, HolderID: "emp-1", Purpose: "work", ExpectedReturnDate: &due})
	if err != nil {
		t.Fatalf("allocate late: %v", err)
	}
	later := testEpoch.AddDate(0, 1, 0)
	if _, err := svc.Allocate(ctx, AllocateRequest{AssetID: onTime.ID, HolderID: "emp-1", Purpose: "work", ExpectedReturnDate: &later}); err != nil {
		t.Fatalf("allocate on time: %v", err)
	}
	mustAllocate(t, svc, noDate.ID)

	flipped, err := svc.MarkOverdue(ctx)
	if err != nil || flipped != 0 {
		t.Fatalf("expected nothing overdue yet, got %d %v", flipped, err)
	}

	// due date is the 17th; the 17th itself is not overdue, the 18th is
	clock.Advance(48 * time.Hour)
	if flipped, _ = svc.MarkOverdue(ctx); flipped != 0 {
		t.Fatalf("expected due date itself not overdue, got %d", flipped)
	}
	clock.Advance(24 * time.Hour)
	flipped, err = svc.MarkOverdue(ctx)
	if err != nil || flipped != 1 {
		t.Fatalf("expected one flip, got %d %v", flipped, err)
	}
	stored, _ := svc.Store().GetAllocation(lateAlloc.ID)
	if stored.Status != domain.AllocationOverdue {
		t.Fatalf("expected overdue allocation, got %s", stored.Status)
	}
	if got := mustGetAsset(t, svc, late.ID).CurrentStatus; got != domain.StatusAllocated {
		t.Fatalf("expected asset to stay allocated, got %s", got)
	}

	flipped, err = svc.MarkOverdue(ctx)
	if err != nil || flipped != 0 {
		t.Fatalf("expected rerun to flip nothing, got %d %v", flipped, err)
	}

	// overdue allocations can still be returned
	if _, status, err := svc.ReturnAllocation(ctx, ReturnRequest{AllocationID: lateAlloc.ID, ReusabilityPercentage: 50}); err != nil || status != domain.StatusUnderMaintenance {
		t.Fatalf("return overdue: %s %v", status, err)
	}
}

func TestMarkOverdueLosesToConcurrentReturn(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)
	asset := mustRegister(t, svc, "EQ-11", nil)
	due := testEpoch.AddDate(0, 0, 1)
	allocation, err := svc.Allocate(ctx, AllocateRequest{AssetID: asset.ID, HolderID: "emp-1", Purpose: "work", ExpectedReturnDate: &due})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	clock.Advance(72 * time.Hour)

	svc.beforeOverdueFlip = func(id string) {
		if _, _, err := svc.ReturnAllocation(ctx, ReturnRequest{AllocationID: id, ReusabilityPercentage: 95}); err != nil {
			t.Fatalf("concurrent return: %v", err)
		}
	}
	flipped, err := svc.MarkOverdue(ctx)
	if err != nil {
		t.Fatalf("mark overdue: %v", err)
	}
	if flipped != 0 {
		t.Fatalf("expected the return to win, got %d flips", flipped)
	}
	stored, _ := svc.Store().GetAllocation(allocation.ID)
	if stored.Status != domain.AllocationReturned {
		t.Fatalf("expected returned allocation to survive sweep, got %s", stored.Status)
	}
	if got := mustGetAsset(t, svc, asset.ID).CurrentStatus; got != domain.StatusReadyForReallocation {
		t.Fatalf("expected asset ready_for_reallocation, got %s", got)
	}
}
