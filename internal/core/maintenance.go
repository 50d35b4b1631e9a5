package core

import (
	"assetledger/pkg/domain"
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var validMaintenanceTypes = toSet(
	string(domain.MaintenancePreventive),
	string(domain.MaintenanceCorrective),
	string(domain.MaintenanceInspection),
	string(domain.MaintenanceUpgrade),
)

// MaintenanceRequest describes one service event.
type MaintenanceRequest struct {
	AssetID     string
	Type        domain.MaintenanceType
	Date        time.Time
	Description string
	Cost        decimal.Decimal
	Vendor      string
	PerformedBy string
}

// RecordMaintenance appends a maintenance record and adds its cost to the
// asset's total maintenance cost in one transaction. A zero date means now.
func (s *Service) RecordMaintenance(ctx context.Context, req MaintenanceRequest) (domain.MaintenanceRecord, domain.Asset, error) {
	var (
		created domain.MaintenanceRecord
		updated domain.Asset
	)
	err := s.run(ctx, "record_maintenance", func(tx domain.Transaction) (string, error) {
		if _, ok := validMaintenanceTypes[string(req.Type)]; !ok {
			return req.AssetID, invalid(domain.EntityMaintenance, "", "maintenance_type", "unknown maintenance type %q", req.Type)
		}
		if req.Cost.IsNegative() {
			return req.AssetID, invalid(domain.EntityMaintenance, "", "cost", "cost %s is negative", req.Cost)
		}
		asset, err := loadAsset(tx, req.AssetID)
		if err != nil {
			return req.AssetID, err
		}
		if asset.Disposed() {
			return asset.ID, disposedConflict(asset, "maintenance")
		}

		date := req.Date.UTC()
		if req.Date.IsZero() {
			date = s.now()
		}
		cost := money(req.Cost)
		created, err = tx.CreateMaintenance(domain.MaintenanceRecord{
			AssetID:         asset.ID,
			MaintenanceType: req.Type,
			MaintenanceDate: date,
			Description:     strings.TrimSpace(req.Description),
			Cost:            cost,
			Vendor:          strings.TrimSpace(req.Vendor),
			PerformedBy:     strings.TrimSpace(req.PerformedBy),
		})
		if err != nil {
			return asset.ID, err
		}
		updated, err = tx.UpdateAsset(asset.ID, func(a *domain.Asset) error {
			a.TotalMaintenanceCost = a.TotalMaintenanceCost.Add(cost)
			return nil
		})
		return created.ID, err
	})
	if err != nil {
		return domain.MaintenanceRecord{}, domain.Asset{}, err
	}
	return created, updated, nil
}
