package core

import (
	"assetledger/internal/blob"
	"assetledger/pkg/domain"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrArchiveDisabled is returned when reading an archived disposal from a
// service built without WithArchive.
var ErrArchiveDisabled = errors.New("disposal archive not configured")

var validDisposalReasons = toSet(
	string(domain.DisposalObsolete),
	string(domain.DisposalDamaged),
	string(domain.DisposalSold),
	string(domain.DisposalDonated),
	string(domain.DisposalLost),
	string(domain.DisposalOther),
)

// DisposeRequest removes an asset from the books.
type DisposeRequest struct {
	AssetID    string
	Reason     domain.DisposalReason
	SalePrice  decimal.Decimal
	Notes      string
	ApprovedBy string
	// DisposalDate defaults to now when zero.
	DisposalDate time.Time
}

// DisposalArchiveKey returns the blob key of an archived disposal record.
func DisposalArchiveKey(assetID, disposalID string) string {
	return fmt.Sprintf("disposals/%s/%s.json", assetID, disposalID)
}

// Dispose snapshots the asset NBV, records the gain or loss against the sale
// price and moves the asset to its terminal status in one transaction. When an
// archive is configured the committed record is copied there; archive failures
// are logged and do not fail the disposal.
func (s *Service) Dispose(ctx context.Context, req DisposeRequest) (domain.DisposalRecord, error) {
	var created domain.DisposalRecord
	err := s.run(ctx, "dispose", func(tx domain.Transaction) (string, error) {
		if _, ok := validDisposalReasons[string(req.Reason)]; !ok {
			return req.AssetID, invalid(domain.EntityDisposal, "", "disposal_reason", "unknown disposal reason %q", req.Reason)
		}
		if req.SalePrice.IsNegative() {
			return req.AssetID, invalid(domain.EntityDisposal, "", "sale_price", "sale price %s is negative", req.SalePrice)
		}
		asset, err := loadAsset(tx, req.AssetID)
		if err != nil {
			return req.AssetID, err
		}
		if asset.Disposed() {
			return asset.ID, disposedConflict(asset, "dispose")
		}
		if open := tx.Snapshot().ListAllocations(domain.OpenAllocations(asset.ID)); len(open) > 0 {
			return asset.ID, domain.ConflictError{
				Entity:  domain.EntityAsset,
				ID:      asset.ID,
				Field:   "allocation",
				Actual:  open[0].ID,
				Message: "asset with an open allocation cannot be disposed",
			}
		}

		date := req.DisposalDate.UTC()
		if req.DisposalDate.IsZero() {
			date = s.now()
		}
		salePrice := money(req.SalePrice)
		id := uuid.NewString()
		created, err = tx.CreateDisposal(domain.DisposalRecord{
			Base:           domain.Base{ID: id},
			AssetID:        asset.ID,
			DisposalDate:   date,
			DisposalReason: req.Reason,
			NBVAtDisposal:  asset.NBV,
			SalePrice:      salePrice,
			GainLoss:       salePrice.Sub(asset.NBV),
			Notes:          strings.TrimSpace(req.Notes),
			ApprovedBy:     strings.TrimSpace(req.ApprovedBy),
			ArchiveKey:     DisposalArchiveKey(asset.ID, id),
		})
		if err != nil {
			return asset.ID, err
		}
		_, err = tx.UpdateAsset(asset.ID, func(a *domain.Asset) error {
			a.CurrentStatus = domain.StatusDisposed
			return nil
		})
		return created.ID, err
	})
	if err != nil {
		return domain.DisposalRecord{}, err
	}
	s.archiveDisposal(ctx, created)
	return created, nil
}

func (s *Service) archiveDisposal(ctx context.Context, record domain.DisposalRecord) {
	if s.archive == nil {
		return
	}
	_, err := blob.PutJSON(ctx, s.archive, record.ArchiveKey, record, map[string]string{
		"asset_id":        record.AssetID,
		"disposal_reason": string(record.DisposalReason),
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("disposal_id", record.ID).
			Str("archive_key", record.ArchiveKey).
			Msg("archive disposal record")
		return
	}
	s.logger.Debug().Str("archive_key", record.ArchiveKey).Msg("disposal archived")
}

// ArchivedDisposal reads the archived copy of an asset's disposal record.
func (s *Service) ArchivedDisposal(ctx context.Context, assetID string) (domain.DisposalRecord, error) {
	if s.archive == nil {
		return domain.DisposalRecord{}, ErrArchiveDisabled
	}
	record, err := s.GetDisposal(ctx, assetID)
	if err != nil {
		return domain.DisposalRecord{}, err
	}
	var archived domain.DisposalRecord
	if _, err := blob.GetJSON(ctx, s.archive, record.ArchiveKey, &archived); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return domain.DisposalRecord{}, domain.NotFoundError{Entity: domain.EntityDisposal, ID: record.ID, Reason: "archive copy missing"}
		}
		return domain.DisposalRecord{}, fmt.Errorf("read archived disposal %s: %w", record.ID, err)
	}
	return archived, nil
}
