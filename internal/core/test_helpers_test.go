package core

import (
	"assetledger/pkg/domain"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t.UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testEpoch = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*Service, *testClock) {
	t.Helper()
	clock := newTestClock(testEpoch)
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewInMemoryService(nil, opts...), clock
}

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}

func mustRegister(t *testing.T, svc *Service, code string, mutate func(*domain.Asset)) domain.Asset {
	t.Helper()
	asset := domain.Asset{
		AssetCode:          code,
		Name:               "Asset " + code,
		AssetType:          domain.AssetTypeEquipment,
		CostBasis:          decimal.NewFromInt(12_000_000),
		DepreciationMethod: domain.MethodStraightLine,
		UsefulLifeMonths:   12,
	}
	if mutate != nil {
		mutate(&asset)
	}
	created, err := svc.RegisterAsset(context.Background(), asset)
	if err != nil {
		t.Fatalf("register asset %s: %v", code, err)
	}
	return created
}

func mustAllocate(t *testing.T, svc *Service, assetID string) domain.Allocation {
	t.Helper()
	allocation, err := svc.Allocate(context.Background(), AllocateRequest{
		AssetID:     assetID,
		HolderID:    "emp-1",
		AllocatedBy: "manager",
		Purpose:     "site work",
	})
	if err != nil {
		t.Fatalf("allocate %s: %v", assetID, err)
	}
	return allocation
}

func mustGetAsset(t *testing.T, svc *Service, id string) domain.Asset {
	t.Helper()
	asset, err := svc.GetAsset(context.Background(), id)
	if err != nil {
		t.Fatalf("get asset %s: %v", id, err)
	}
	return asset
}

func assertValidation(t *testing.T, err error) {
	t.Helper()
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %T %v", err, err)
	}
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found error, got %T %v", err, err)
	}
}

func assertConflict(t *testing.T, err error) {
	t.Helper()
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict error, got %T %v", err, err)
	}
}
