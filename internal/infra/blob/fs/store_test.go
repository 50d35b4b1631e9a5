package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"assetledger/internal/blob/core"
)

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "  ", "/abs", "../up", "a/../../b", "x.meta"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Fatalf("expected rejection for %q", key)
		}
	}
	clean, err := sanitizeKey("disposals//a1/./d1.json")
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if clean != "disposals/a1/d1.json" {
		t.Fatalf("unexpected clean key %q", clean)
	}
}

func TestPutWritesSidecar(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	info, err := store.Put(context.Background(), "a/b.json", strings.NewReader("{}"), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"k": "v"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag == "" {
		t.Fatalf("expected sha256 etag")
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b.json.meta")); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
	head, err := store.Head(context.Background(), "a/b.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Metadata["k"] != "v" || head.ContentType != "application/json" || head.ETag != info.ETag {
		t.Fatalf("unexpected head: %+v", head)
	}
	if store.Root() != root || store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected root or driver")
	}
}
