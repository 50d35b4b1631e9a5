package core

import (
	"assetledger/internal/infra/persistence/memory"
	"assetledger/internal/infra/persistence/sqlite"
	"context"
	"path/filepath"
	"testing"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: StorageMemory}, nil)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	mem, ok := store.(*memory.Store)
	if !ok {
		t.Fatalf("expected *memory.Store, got %T", store)
	}
	if len(mem.RulesEngine().Rules()) != 4 {
		t.Fatalf("expected default rules, got %v", mem.RulesEngine().Rules())
	}
	if err := CloseStore(store); err != nil {
		t.Fatalf("close memory store: %v", err)
	}
}

func TestOpenPersistentStoreSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	store, err := OpenPersistentStore(ctx, StorageConfig{SQLitePath: path}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, ok := store.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite default, got %T", store)
	}
	svc := NewService(store)
	asset := mustRegister(t, svc, "SQL-1", nil)
	mustAllocate(t, svc, asset.ID)
	if err := CloseStore(store); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageSQLite, SQLitePath: path}, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = CloseStore(reopened) }()
	got, ok := reopened.GetAsset(asset.ID)
	if !ok || got.CurrentStatus != "allocated" {
		t.Fatalf("expected allocated asset after reload, got %+v", got)
	}
	_, err = NewService(reopened).Allocate(ctx, AllocateRequest{AssetID: asset.ID, HolderID: "h", Purpose: "p"})
	assertConflict(t, err)
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	if _, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: "mongo"}, nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
