package core

import (
	"assetledger/pkg/domain"
	"fmt"
)

type (
	// ValidationError aliases domain.ValidationError.
	ValidationError = domain.ValidationError
	// NotFoundError aliases domain.NotFoundError.
	NotFoundError = domain.NotFoundError
	// ConflictError aliases domain.ConflictError.
	ConflictError = domain.ConflictError
)

func invalid(entity domain.EntityType, id, field, format string, args ...any) error {
	return domain.ValidationError{Entity: entity, ID: id, Field: field, Message: fmt.Sprintf(format, args...)}
}

func notFound(entity domain.EntityType, id string) error {
	return domain.NotFoundError{Entity: entity, ID: id}
}

// disposedConflict rejects any lifecycle mutation against a disposed asset.
func disposedConflict(asset domain.Asset, operation string) error {
	return domain.ConflictError{
		Entity:   domain.EntityAsset,
		ID:       asset.ID,
		Field:    "current_status",
		Expected: "not disposed",
		Actual:   string(asset.CurrentStatus),
		Message:  fmt.Sprintf("%s rejected: asset is disposed", operation),
	}
}

// loadAsset fetches an asset inside a transaction, failing with NotFoundError.
func loadAsset(tx domain.Transaction, id string) (domain.Asset, error) {
	if id == "" {
		return domain.Asset{}, invalid(domain.EntityAsset, "", "id", "asset id is required")
	}
	asset, ok := tx.FindAsset(id)
	if !ok {
		return domain.Asset{}, notFound(domain.EntityAsset, id)
	}
	return asset, nil
}
