package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"assetledger/internal/core"
	"assetledger/pkg/domain"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	var req registerAssetRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	asset, err := s.svc.RegisterAsset(r.Context(), req.toDomain())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, asset)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.AssetFilter{
		AssetCode: query.Get("code"),
		AssetType: domain.AssetType(query.Get("type")),
	}
	for _, status := range splitList(query.Get("status")) {
		filter.Statuses = append(filter.Statuses, domain.AssetStatus(status))
	}
	assets, err := s.svc.ListAssets(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"assets": nonNil(assets)})
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.AssetStatusView(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteAsset(r.Context(), chi.URLParam(r, "assetID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateQuantities(w http.ResponseWriter, r *http.Request) {
	var req quantitiesRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	asset, err := s.svc.UpdateMaterialQuantities(r.Context(), chi.URLParam(r, "assetID"), req.toCore())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"asset": asset, "quantities": asset.QuantityProgress()})
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	expected, err := parseDate("expected_return_date", req.ExpectedReturnDate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	allocation, err := s.svc.Allocate(r.Context(), core.AllocateRequest{
		AssetID:            chi.URLParam(r, "assetID"),
		HolderID:           req.HolderID,
		AllocatedBy:        req.AllocatedBy,
		Purpose:            req.Purpose,
		ProjectID:          req.ProjectID,
		ExpectedReturnDate: expected,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, allocation)
}

func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.AllocationFilter{
		AssetID:  query.Get("asset_id"),
		HolderID: query.Get("holder_id"),
	}
	for _, status := range splitList(query.Get("status")) {
		filter.Statuses = append(filter.Statuses, domain.AllocationStatus(status))
	}
	allocations, err := s.svc.ListAllocations(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"allocations": nonNil(allocations)})
}

func (s *Server) handleReturnAllocation(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	allocation, status, err := s.svc.ReturnAllocation(r.Context(), core.ReturnRequest{
		AllocationID:          chi.URLParam(r, "allocationID"),
		Condition:             req.Condition,
		ReusabilityPercentage: *req.ReusabilityPercentage,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, returnResponse{Allocation: allocation, Status: status})
}

func (s *Server) handleOverdueSweep(w http.ResponseWriter, r *http.Request) {
	flipped, err := s.svc.MarkOverdue(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sweepResponse{Flipped: flipped})
}

func (s *Server) handleRecordMaintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenanceRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	date, err := parseDate("maintenance_date", req.Date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	mr := core.MaintenanceRequest{
		AssetID:     chi.URLParam(r, "assetID"),
		Type:        domain.MaintenanceType(req.Type),
		Description: req.Description,
		Cost:        req.Cost,
		Vendor:      req.Vendor,
		PerformedBy: req.PerformedBy,
	}
	if date != nil {
		mr.Date = *date
	}
	record, asset, err := s.svc.RecordMaintenance(r.Context(), mr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, maintenanceResponse{Record: record, Asset: asset})
}

func (s *Server) handleListMaintenance(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.ListMaintenance(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"records": nonNil(records)})
}

func (s *Server) handleReleaseFromMaintenance(w http.ResponseWriter, r *http.Request) {
	asset, err := s.svc.ReleaseFromMaintenance(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleAccruePeriod(w http.ResponseWriter, r *http.Request) {
	var req accrueRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	period, err := parsePeriod(req.Period)
	if err != nil {
		s.writeError(w, err)
		return
	}
	entry, err := s.svc.AccruePeriod(r.Context(), chi.URLParam(r, "assetID"), period, core.AccrualOptions{UnitsProduced: req.UnitsProduced})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDepreciationSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.DepreciationSchedule(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": nonNil(entries)})
}

func (s *Server) handleDispose(w http.ResponseWriter, r *http.Request) {
	var req disposeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	date, err := parseDate("disposal_date", req.DisposalDate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	dr := core.DisposeRequest{
		AssetID:    chi.URLParam(r, "assetID"),
		Reason:     domain.DisposalReason(req.Reason),
		SalePrice:  req.SalePrice,
		Notes:      req.Notes,
		ApprovedBy: req.ApprovedBy,
	}
	if date != nil {
		dr.DisposalDate = *date
	}
	record, err := s.svc.Dispose(r.Context(), dr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, record)
}

// handleGetDisposal returns the committed disposal record, or its archived
// copy when ?source=archive is given.
func (s *Server) handleGetDisposal(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	var (
		record domain.DisposalRecord
		err    error
	)
	if r.URL.Query().Get("source") == "archive" {
		record, err = s.svc.ArchivedDisposal(r.Context(), assetID)
	} else {
		record, err = s.svc.GetDisposal(r.Context(), assetID)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, body)
}

func classify(err error) (int, errorResponse) {
	var (
		reqErr     *requestError
		validation domain.ValidationError
		notFound   domain.NotFoundError
		conflict   domain.ConflictError
		violation  domain.RuleViolationError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, errorResponse{Error: reqErr.message, Kind: "invalid_request", Fields: reqErr.fields}
	case errors.As(err, &validation):
		body := errorResponse{Error: validation.Error(), Kind: "validation"}
		if validation.Field != "" {
			body.Fields = map[string]string{validation.Field: validation.Message}
		}
		return http.StatusBadRequest, body
	case errors.As(err, &notFound):
		return http.StatusNotFound, errorResponse{Error: notFound.Error(), Kind: "not_found"}
	case errors.As(err, &conflict):
		return http.StatusConflict, errorResponse{Error: conflict.Error(), Kind: "conflict"}
	case errors.As(err, &violation):
		return http.StatusConflict, errorResponse{Error: violation.Error(), Kind: "rule_violation"}
	case errors.Is(err, core.ErrArchiveDisabled):
		return http.StatusNotImplemented, errorResponse{Error: err.Error(), Kind: "archive_disabled"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: "internal"}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
