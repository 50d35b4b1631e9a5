package core

import (
	"assetledger/pkg/domain"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// AllocateRequest describes a loan of an asset to a holder.
type AllocateRequest struct {
	AssetID            string
	HolderID           string
	AllocatedBy        string
	Purpose            string
	ProjectID          *string
	ExpectedReturnDate *time.Time
}

// ReturnRequest closes an open allocation.
type ReturnRequest struct {
	AllocationID          string
	Condition             string
	ReusabilityPercentage float64
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Allocate lends an in-stock or reallocation-ready asset. The allocation is
// created active and the asset moves to allocated in the same transaction.
func (s *Service) Allocate(ctx context.Context, req AllocateRequest) (domain.Allocation, error) {
	var created domain.Allocation
	err := s.run(ctx, "allocate", func(tx domain.Transaction) (string, error) {
		purpose := strings.TrimSpace(req.Purpose)
		switch {
		case req.AssetID == "":
			return "", invalid(domain.EntityAllocation, "", "asset_master_id", "asset id is required")
		case strings.TrimSpace(req.HolderID) == "":
			return req.AssetID, invalid(domain.EntityAllocation, "", "allocated_to", "holder id is required")
		case purpose == "":
			return req.AssetID, invalid(domain.EntityAllocation, "", "purpose", "purpose is required")
		}
		now := s.now()
		if req.ExpectedReturnDate != nil && req.ExpectedReturnDate.UTC().Before(startOfDay(now)) {
			return req.AssetID, invalid(domain.EntityAllocation, "", "expected_return_date",
				"expected return %s is before allocation date %s", req.ExpectedReturnDate.UTC().Format(time.DateOnly), now.Format(time.DateOnly))
		}

		asset, err := loadAsset(tx, req.AssetID)
		if err != nil {
			return req.AssetID, err
		}
		if asset.Disposed() {
			return asset.ID, disposedConflict(asset, "allocate")
		}
		if asset.CurrentStatus == domain.StatusAllocated {
			return asset.ID, domain.ConflictError{
				Entity:   domain.EntityAsset,
				ID:       asset.ID,
				Field:    "current_status",
				Expected: fmt.Sprintf("%s or %s", domain.StatusInStock, domain.StatusReadyForReallocation),
				Actual:   string(asset.CurrentStatus),
				Message:  "asset is already allocated",
			}
		}
		if open := tx.Snapshot().ListAllocations(domain.OpenAllocations(asset.ID)); len(open) > 0 {
			return asset.ID, domain.ConflictError{
				Entity:  domain.EntityAllocation,
				ID:      open[0].ID,
				Field:   "status",
				Actual:  string(open[0].Status),
				Message: fmt.Sprintf("asset %s already has an open allocation", asset.ID),
			}
		}
		if asset.CurrentStatus != domain.StatusInStock && asset.CurrentStatus != domain.StatusReadyForReallocation {
			return asset.ID, domain.ValidationError{
				Entity:  domain.EntityAsset,
				ID:      asset.ID,
				Field:   "current_status",
				Message: fmt.Sprintf("asset in status %s cannot be allocated", asset.CurrentStatus),
			}
		}

		allocation := domain.Allocation{
			AssetID:        asset.ID,
			AllocatedTo:    strings.TrimSpace(req.HolderID),
			AllocatedBy:    strings.TrimSpace(req.AllocatedBy),
			Purpose:        purpose,
			ProjectID:      req.ProjectID,
			AllocationDate: now,
			Status:         domain.AllocationActive,
		}
		if req.ExpectedReturnDate != nil {
			expected := req.ExpectedReturnDate.UTC()
			allocation.ExpectedReturnDate = &expected
		}
		created, err = tx.CreateAllocation(allocation)
		if err != nil {
			return asset.ID, err
		}
		_, err = tx.UpdateAsset(asset.ID, func(a *domain.Asset) error {
			a.CurrentStatus = domain.StatusAllocated
			return nil
		})
		return created.ID, err
	})
	return created, err
}

// ReturnAllocation closes an active or overdue allocation and moves the asset
// to the status the Status Engine derives from the reusability percentage.
func (s *Service) ReturnAllocation(ctx context.Context, req ReturnRequest) (domain.Allocation, domain.AssetStatus, error) {
	var (
		returned domain.Allocation
		status   domain.AssetStatus
	)
	err := s.run(ctx, "return_allocation", func(tx domain.Transaction) (string, error) {
		pct := req.ReusabilityPercentage
		if math.IsNaN(pct) || pct < 0 || pct > 100 {
			return req.AllocationID, invalid(domain.EntityAllocation, req.AllocationID, "reusability_percentage",
				"reusability percentage %v outside [0, 100]", pct)
		}
		current, ok := tx.FindAllocation(req.AllocationID)
		if !ok {
			return req.AllocationID, notFound(domain.EntityAllocation, req.AllocationID)
		}
		if !current.Status.Open() {
			return req.AllocationID, domain.NotFoundError{
				Entity: domain.EntityAllocation,
				ID:     req.AllocationID,
				Reason: fmt.Sprintf("no open allocation (status %s)", current.Status),
			}
		}
		asset, err := loadAsset(tx, current.AssetID)
		if err != nil {
			return req.AllocationID, err
		}
		if asset.Disposed() {
			return req.AllocationID, disposedConflict(asset, "return")
		}

		now := s.now()
		returned, err = tx.UpdateAllocation(req.AllocationID, func(a *domain.Allocation) error {
			a.Status = domain.AllocationReturned
			a.ActualReturnDate = &now
			a.ReturnCondition = strings.TrimSpace(req.Condition)
			a.ReusabilityPercentage = &pct
			return nil
		})
		if err != nil {
			return req.AllocationID, err
		}
		status = ComputeStatus(asset, &returned, nil, s.threshold)
		_, err = tx.UpdateAsset(asset.ID, func(a *domain.Asset) error {
			a.CurrentStatus = status
			return nil
		})
		return req.AllocationID, err
	})
	if err != nil {
		return domain.Allocation{}, "", err
	}
	return returned, status, nil
}

// ReleaseFromMaintenance marks a repaired asset ready for reallocation.
func (s *Service) ReleaseFromMaintenance(ctx context.Context, assetID string) (domain.Asset, error) {
	var updated domain.Asset
	err := s.run(ctx, "release_from_maintenance", func(tx domain.Transaction) (string, error) {
		asset, err := loadAsset(tx, assetID)
		if err != nil {
			return assetID, err
		}
		if asset.CurrentStatus != domain.StatusUnderMaintenance {
			return assetID, domain.ConflictError{
				Entity:   domain.EntityAsset,
				ID:       assetID,
				Field:    "current_status",
				Expected: string(domain.StatusUnderMaintenance),
				Actual:   string(asset.CurrentStatus),
				Message:  "only assets under maintenance can be released",
			}
		}
		updated, err = tx.UpdateAsset(assetID, func(a *domain.Asset) error {
			a.CurrentStatus = domain.StatusReadyForReallocation
			return nil
		})
		return assetID, err
	})
	return updated, err
}

// MarkOverdue flips every active allocation whose expected return date is
// before today (UTC) to overdue and returns the number flipped. Each flip is
// its own compare-and-set transaction, so a return committed after the scan
// wins. Asset statuses are untouched. Running it again flips nothing new.
func (s *Service) MarkOverdue(ctx context.Context) (int, error) {
	cutoff := startOfDay(s.now())
	var candidates []domain.Allocation
	err := s.view(ctx, "scan_overdue", "", func(view domain.TransactionView) error {
		candidates = view.ListAllocations(domain.AllocationFilter{
			Statuses:  []domain.AllocationStatus{domain.AllocationActive},
			DueBefore: &cutoff,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	flipped := 0
	var errs []error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if s.beforeOverdueFlip != nil {
			s.beforeOverdueFlip(candidate.ID)
		}
		var moved bool
		err := s.run(ctx, "mark_overdue", func(tx domain.Transaction) (string, error) {
			var err error
			_, moved, err = tx.CompareAndSetAllocationStatus(candidate.ID, domain.AllocationActive, domain.AllocationOverdue)
			return candidate.ID, err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("mark allocation %s overdue: %w", candidate.ID, err))
			continue
		}
		if moved {
			flipped++
		}
	}
	if recorder, ok := s.metrics.(OverdueRecorder); ok {
		recorder.ObserveOverdue(ctx, flipped)
	}
	s.logger.Info().
		Int("candidates", len(candidates)).
		Int("flipped", flipped).
		Time("cutoff", cutoff).
		Msg("overdue sweep finished")
	return flipped, errors.Join(errs...)
}
