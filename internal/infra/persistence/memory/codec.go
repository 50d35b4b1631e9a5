package memory

import (
	"encoding/json"
	"fmt"
)

// Bucket names used by the snapshotting SQL stores. Each bucket holds one JSON
// encoded map of the snapshot.
const (
	BucketAssets       = "assets"
	BucketAllocations  = "allocations"
	BucketMaintenance  = "maintenance"
	BucketDepreciation = "depreciation"
	BucketDisposals    = "disposals"
)

// Buckets lists every snapshot bucket in persistence order.
func Buckets() []string {
	return []string{BucketAssets, BucketAllocations, BucketMaintenance, BucketDepreciation, BucketDisposals}
}

// EncodeBucket marshals the named bucket of snapshot.
func EncodeBucket(snapshot Snapshot, bucket string) ([]byte, error) {
	switch bucket {
	case BucketAssets:
		return json.Marshal(snapshot.Assets)
	case BucketAllocations:
		return json.Marshal(snapshot.Allocations)
	case BucketMaintenance:
		return json.Marshal(snapshot.Maintenance)
	case BucketDepreciation:
		return json.Marshal(snapshot.Depreciation)
	case BucketDisposals:
		return json.Marshal(snapshot.Disposals)
	default:
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
}

// DecodeBucket unmarshals payload into the named bucket of snapshot. Unknown
// buckets are ignored so older databases with extra rows still load.
func DecodeBucket(snapshot *Snapshot, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case BucketAssets:
		target = &snapshot.Assets
	case BucketAllocations:
		target = &snapshot.Allocations
	case BucketMaintenance:
		target = &snapshot.Maintenance
	case BucketDepreciation:
		target = &snapshot.Depreciation
	case BucketDisposals:
		target = &snapshot.Disposals
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
