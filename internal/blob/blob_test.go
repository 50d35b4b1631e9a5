package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type archived struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
}

func contractStores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("filesystem: %v", err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
		"s3":     NewMockS3ForTests(),
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, store := range contractStores(t) {
		t.Run(name, func(t *testing.T) {
			info, err := store.Put(ctx, "disposals/a1/d1.json", strings.NewReader(`{"id":"d1"}`), PutOptions{ContentType: "application/json"})
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Key != "disposals/a1/d1.json" || info.Size != int64(len(`{"id":"d1"}`)) {
				t.Fatalf("unexpected info: %+v", info)
			}
			if _, err := store.Put(ctx, "disposals/a1/d1.json", strings.NewReader("again"), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists on overwrite, got %v", err)
			}
			_, body, err := store.Get(ctx, "disposals/a1/d1.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			data, _ := io.ReadAll(body)
			_ = body.Close()
			if string(data) != `{"id":"d1"}` {
				t.Fatalf("unexpected body %q", data)
			}
			if _, err := store.Head(ctx, "disposals/missing.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if _, err := store.Put(ctx, "other/x.json", strings.NewReader("{}"), PutOptions{}); err != nil {
				t.Fatalf("put other: %v", err)
			}
			listed, err := store.List(ctx, "disposals/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(listed) != 1 || listed[0].Key != "disposals/a1/d1.json" {
				t.Fatalf("unexpected listing: %+v", listed)
			}
			removed, err := store.Delete(ctx, "other/x.json")
			if err != nil || !removed {
				t.Fatalf("delete: removed=%v err=%v", removed, err)
			}
			removed, err = store.Delete(ctx, "other/x.json")
			if err != nil || removed {
				t.Fatalf("second delete: removed=%v err=%v", removed, err)
			}
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	in := archived{ID: "d1", Amount: "150.00"}
	if _, err := PutJSON(ctx, store, "k.json", in, map[string]string{"asset": "a1"}); err != nil {
		t.Fatalf("put json: %v", err)
	}
	var out archived
	info, err := GetJSON(ctx, store, "k.json", &out)
	if err != nil {
		t.Fatalf("get json: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if info.ContentType != "application/json" || info.Metadata["asset"] != "a1" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if _, err := GetJSON(ctx, store, "missing.json", &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || store.Driver() != DriverMemory {
		t.Fatalf("memory driver: %v %v", store, err)
	}
	store, err = Open(ctx, Config{FSRoot: t.TempDir()})
	if err != nil || store.Driver() != DriverFilesystem {
		t.Fatalf("default driver: %v %v", store, err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
