package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

const contentTypeJSON = "application/json"

// PutJSON marshals v and writes it under key. The key must not exist yet.
func PutJSON(ctx context.Context, store Store, key string, v any, metadata map[string]string) (Info, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Info{}, fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Put(ctx, key, bytes.NewReader(raw), PutOptions{ContentType: contentTypeJSON, Metadata: metadata})
}

// GetJSON reads key and unmarshals it into v.
func GetJSON(ctx context.Context, store Store, key string, v any) (Info, error) {
	info, body, err := store.Get(ctx, key)
	if err != nil {
		return Info{}, err
	}
	defer func() { _ = body.Close() }()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return Info{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return info, nil
}
