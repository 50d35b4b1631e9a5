package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"assetledger/internal/core"
	"assetledger/pkg/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

type registerAssetRequest struct {
	AssetCode                string          `json:"asset_id" validate:"required,max=64"`
	Name                     string          `json:"name" validate:"required,max=255"`
	AssetType                string          `json:"asset_type" validate:"required,oneof=equipment tools materials"`
	CostBasis                decimal.Decimal `json:"cost_basis"`
	DepreciationMethod       string          `json:"depreciation_method" validate:"omitempty,oneof=straight_line declining_balance units_of_production"`
	UsefulLifeMonths         int             `json:"useful_life_months" validate:"gte=0"`
	AmortizationPeriodMonths int             `json:"amortization_period_months" validate:"gte=0"`
	EstimatedTotalUnits      decimal.Decimal `json:"estimated_total_units"`
	QuantitySuppliedPrevious decimal.Decimal `json:"quantity_supplied_previous"`
	QuantityRequested        decimal.Decimal `json:"quantity_requested"`
	QuantityPerContract      decimal.Decimal `json:"quantity_per_contract"`
}

func (r registerAssetRequest) toDomain() domain.Asset {
	return domain.Asset{
		AssetCode:                r.AssetCode,
		Name:                     r.Name,
		AssetType:                domain.AssetType(r.AssetType),
		CostBasis:                r.CostBasis,
		DepreciationMethod:       domain.DepreciationMethod(r.DepreciationMethod),
		UsefulLifeMonths:         r.UsefulLifeMonths,
		AmortizationPeriodMonths: r.AmortizationPeriodMonths,
		EstimatedTotalUnits:      r.EstimatedTotalUnits,
		QuantitySuppliedPrevious: r.QuantitySuppliedPrevious,
		QuantityRequested:        r.QuantityRequested,
		QuantityPerContract:      r.QuantityPerContract,
	}
}

type quantitiesRequest struct {
	SuppliedPrevious decimal.Decimal `json:"quantity_supplied_previous"`
	Requested        decimal.Decimal `json:"quantity_requested"`
	PerContract      decimal.Decimal `json:"quantity_per_contract"`
}

type allocateRequest struct {
	HolderID           string  `json:"allocated_to" validate:"required,max=128"`
	AllocatedBy        string  `json:"allocated_by" validate:"max=128"`
	Purpose            string  `json:"purpose" validate:"required,max=1000"`
	ProjectID          *string `json:"project_id" validate:"omitempty,max=128"`
	ExpectedReturnDate string  `json:"expected_return_date" validate:"omitempty,datetime=2006-01-02"`
}

type returnRequest struct {
	Condition             string   `json:"return_condition" validate:"max=1000"`
	ReusabilityPercentage *float64 `json:"reusability_percentage" validate:"required,gte=0,lte=100"`
}

type maintenanceRequest struct {
	Type        string          `json:"maintenance_type" validate:"required,oneof=preventive corrective inspection upgrade"`
	Date        string          `json:"maintenance_date" validate:"omitempty,datetime=2006-01-02"`
	Description string          `json:"description" validate:"max=2000"`
	Cost        decimal.Decimal `json:"cost"`
	Vendor      string          `json:"vendor" validate:"max=255"`
	PerformedBy string          `json:"performed_by" validate:"max=255"`
}

type accrueRequest struct {
	Period        string          `json:"period" validate:"omitempty,datetime=2006-01"`
	UnitsProduced decimal.Decimal `json:"units_produced"`
}

type disposeRequest struct {
	Reason       string          `json:"disposal_reason" validate:"required,oneof=obsolete damaged sold donated lost other"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	Notes        string          `json:"notes" validate:"max=2000"`
	ApprovedBy   string          `json:"approved_by" validate:"max=255"`
	DisposalDate string          `json:"disposal_date" validate:"omitempty,datetime=2006-01-02"`
}

type sweepResponse struct {
	Flipped int `json:"flipped"`
}

type returnResponse struct {
	Allocation domain.Allocation  `json:"allocation"`
	Status     domain.AssetStatus `json:"asset_status"`
}

type maintenanceResponse struct {
	Record domain.MaintenanceRecord `json:"record"`
	Asset  domain.Asset             `json:"asset"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// requestError is a malformed or invalid request body.
type requestError struct {
	message string
	fields  map[string]string
}

func (e *requestError) Error() string { return e.message }

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &requestError{message: "request body is required"}
		}
		return &requestError{message: fmt.Sprintf("invalid request body: %v", err)}
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, ve := range verrs {
				fields[ve.Field()] = ve.Tag()
			}
			return &requestError{message: "validation failed", fields: fields}
		}
		return err
	}
	return nil
}

func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, &requestError{message: "invalid date", fields: map[string]string{field: "datetime"}}
	}
	return &t, nil
}

func parsePeriod(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return time.Time{}, &requestError{message: "invalid period", fields: map[string]string{"period": "datetime"}}
	}
	return t, nil
}

func (r quantitiesRequest) toCore() core.MaterialQuantities {
	return core.MaterialQuantities{
		SuppliedPrevious: r.SuppliedPrevious,
		Requested:        r.Requested,
		PerContract:      r.PerContract,
	}
}
