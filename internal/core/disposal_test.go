package core

import (
	"assetledger/internal/blob"
	"assetledger/pkg/domain"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestDisposeGainAndTerminalState(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "DS-1", func(a *domain.Asset) {
		a.CostBasis = decimal.NewFromInt(1_200_000)
		a.UsefulLifeMonths = 12
	})
	for i := 0; i < 9; i++ {
		if _, err := svc.AccruePeriod(ctx, asset.ID, month(i), AccrualOptions{}); err != nil {
			t.Fatalf("accrue %d: %v", i, err)
		}
	}
	if nbv := mustGetAsset(t, svc, asset.ID).NBV; !nbv.Equal(decimal.NewFromInt(300_000)) {
		t.Fatalf("expected nbv 300,000 before disposal, got %s", nbv)
	}

	record, err := svc.Dispose(ctx, DisposeRequest{
		AssetID:    asset.ID,
		Reason:     domain.DisposalSold,
		SalePrice:  decimal.NewFromInt(500_000),
		Notes:      "auction",
		ApprovedBy: "cfo",
	})
	if err != nil {
		t.Fatalf("dispose: %v", err)
	}
	if !record.NBVAtDisposal.Equal(decimal.NewFromInt(300_000)) || !record.GainLoss.Equal(decimal.NewFromInt(200_000)) {
		t.Fatalf("unexpected disposal figures %+v", record)
	}
	if !record.GainLoss.Equal(record.SalePrice.Sub(record.NBVAtDisposal)) {
		t.Fatalf("gain/loss must equal sale price minus nbv")
	}
	if record.ArchiveKey != DisposalArchiveKey(asset.ID, record.ID) {
		t.Fatalf("unexpected archive key %q", record.ArchiveKey)
	}
	if !record.DisposalDate.Equal(testEpoch) {
		t.Fatalf("expected disposal date from clock, got %s", record.DisposalDate)
	}
	if got := mustGetAsset(t, svc, asset.ID).CurrentStatus; got != domain.StatusDisposed {
		t.Fatalf("expected disposed asset, got %s", got)
	}

	_, _, err = svc.RecordMaintenance(ctx, MaintenanceRequest{AssetID: asset.ID, Type: domain.MaintenanceCorrective, Cost: decimal.NewFromInt(10)})
	assertConflict(t, err)
	_, err = svc.Dispose(ctx, DisposeRequest{AssetID: asset.ID, Reason: domain.DisposalSold})
	assertConflict(t, err)
	_, err = svc.UpdateMaterialQuantities(ctx, asset.ID, MaterialQuantities{})
	assertConflict(t, err)
	assertConflict(t, svc.DeleteAsset(ctx, asset.ID))

	stored, err := svc.GetDisposal(ctx, asset.ID)
	if err != nil || stored.ID != record.ID {
		t.Fatalf("get disposal: %+v %v", stored, err)
	}
}

func TestDisposeLossAndValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "DS-2", func(a *domain.Asset) { a.CostBasis = decimal.NewFromInt(1000) })

	_, err := svc.Dispose(ctx, DisposeRequest{AssetID: asset.ID, Reason: "stolen"})
	assertValidation(t, err)
	_, err = svc.Dispose(ctx, DisposeRequest{AssetID: asset.ID, Reason: domain.DisposalLost, SalePrice: decimal.NewFromInt(-1)})
	assertValidation(t, err)
	_, err = svc.Dispose(ctx, DisposeRequest{AssetID: "missing", Reason: domain.DisposalLost})
	assertNotFound(t, err)
	_, err = svc.GetDisposal(ctx, asset.ID)
	assertNotFound(t, err)

	record, err := svc.Dispose(ctx, DisposeRequest{AssetID: asset.ID, Reason: domain.DisposalLost})
	if err != nil {
		t.Fatalf("dispose: %v", err)
	}
	if !record.GainLoss.Equal(decimal.NewFromInt(-1000)) || !record.SalePrice.IsZero() {
		t.Fatalf("expected full loss with zero sale price, got %+v", record)
	}
}

func TestDisposeRejectsOpenAllocation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	asset := mustRegister(t, svc, "DS-3", nil)
	mustAllocate(t, svc, asset.ID)
	_, err := svc.Dispose(ctx, DisposeRequest{AssetID: asset.ID, Reason: domain.DisposalDamaged})
	assertConflict(t, err)
	if got := mustGetAsset(t, svc, asset.ID).CurrentStatus; got != domain.StatusAllocated {
		t.Fatalf("expected asset untouched, got %s", got)
	}
}

func TestDisposeArchivesRecord(t *testing.T) {
	ctx := context.Background()
	archive := blob.NewMemory()
	svc, _ := newTestService(t, WithArchive(archive))
	asset := mustRegister(t, svc, "DS-4", nil)

	record, err := svc.Dispose(ctx, DisposeRequest{AssetID: asset.ID, Reason: domain.DisposalDonated, Notes: "school"})
	if err != nil {
		t.Fatalf("dispose: %v", err)
	}
	info, err := archive.Head(ctx, record.ArchiveKey)
	if err != nil {
		t.Fatalf("head archived record: %v", err)
	}
	if info.ContentType != "application/json" || info.Metadata["asset_id"] != asset.ID {
		t.Fatalf("unexpected archive info %+v", info)
	}
	archived, err := svc.ArchivedDisposal(ctx, asset.ID)
	if err != nil {
		t.Fatalf("archived disposal: %v", err)
	}
	if archived.ID != record.ID || !archived.GainLoss.Equal(record.GainLoss) || archived.Notes != "school" {
		t.Fatalf("archived copy differs: %+v vs %+v", archived, record)
	}
}

type failingArchive struct {
	blob.Store
}

func (failingArchive) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, errors.New("bucket unavailable")
}

func TestDisposeArchiveFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	svc, _ := newTestService(t, WithArchive(failingArchive{Store: blob.NewMemory()}), WithLogger(zerolog.New(&logs)))
	asset := mustRegister(t, svc, "DS-5", nil)

	if _, err := svc.Dispose(ctx, DisposeRequest{AssetID: asset.ID, Reason: domain.DisposalOther}); err != nil {
		t.Fatalf("dispose must not fail on archive errors: %v", err)
	}
	if got := mustGetAsset(t, svc, asset.ID).CurrentStatus; got != domain.StatusDisposed {
		t.Fatalf("expected committed disposal, got %s", got)
	}
	if !strings.Contains(logs.String(), "archive disposal record") || !strings.Contains(logs.String(), "bucket unavailable") {
		t.Fatalf("expected archive failure logged, got %q", logs.String())
	}
	_, err := svc.ArchivedDisposal(ctx, asset.ID)
	assertNotFound(t, err)
}

func TestArchivedDisposalWithoutArchive(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.ArchivedDisposal(context.Background(), "any"); !errors.Is(err, ErrArchiveDisabled) {
		t.Fatalf("expected ErrArchiveDisabled, got %v", err)
	}
}
