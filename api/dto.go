/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific shaping (dates as strings, money as strings)
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Every fee, rate, and asset value crosses the wire as a string
  produced by decimal.String(). JSON numbers would round-trip through
  float64 and reintroduce the drift the engine exists to avoid.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/contract.go: ContractJSON reused for contract bodies
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/fee-engine/billing"
	"github.com/warp/fee-engine/factory"
)

// =============================================================================
// CLIENTS
// =============================================================================

// ClientDTO represents a plan sponsor in API responses.
type ClientDTO struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	FullName      string `json:"full_name,omitempty"`
	IMASignedDate string `json:"ima_signed_date,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CreateClientRequest is the request to create a client.
type CreateClientRequest struct {
	ID            string `json:"id,omitempty"` // server-generated when empty
	DisplayName   string `json:"display_name"`
	FullName      string `json:"full_name,omitempty"`
	IMASignedDate string `json:"ima_signed_date,omitempty"`
}

// =============================================================================
// CONTRACTS
// =============================================================================

// ContractDTO represents a fee agreement in API responses.
type ContractDTO struct {
	ID              string `json:"id"`
	ClientID        string `json:"client_id"`
	ContractNumber  string `json:"contract_number,omitempty"`
	ProviderName    string `json:"provider_name,omitempty"`
	FeeType         string `json:"fee_type"`
	PercentRate     string `json:"percent_rate,omitempty"`
	FlatRate        string `json:"flat_rate,omitempty"`
	PaymentSchedule string `json:"payment_schedule"`
	StartDate       string `json:"start_date"`
	IsActive        bool   `json:"is_active"`
}

// CreateContractRequest is the request to append a contract. Appending
// deactivates the client's prior contract; history is never deleted.
type CreateContractRequest struct {
	factory.ContractJSON
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentDTO represents one recorded remittance.
type PaymentDTO struct {
	ID                string `json:"id"`
	ContractID        string `json:"contract_id"`
	ClientID          string `json:"client_id"`
	ReceivedDate      string `json:"received_date"`
	TotalAssets       string `json:"total_assets,omitempty"`
	ExpectedFee       string `json:"expected_fee,omitempty"`
	ActualFee         string `json:"actual_fee"`
	AppliedPeriodType string `json:"applied_period_type"`
	AppliedPeriod     int    `json:"applied_period"`
	AppliedYear       int    `json:"applied_year"`
	PeriodDisplay     string `json:"period_display"`
}

// PaymentRequest is the request body for creating or updating a payment.
type PaymentRequest struct {
	ContractID        string `json:"contract_id,omitempty"` // default: active contract
	ReceivedDate      string `json:"received_date"`         // YYYY-MM-DD
	TotalAssets       string `json:"total_assets,omitempty"`
	ExpectedFee       string `json:"expected_fee,omitempty"`
	ActualFee         string `json:"actual_fee"`
	AppliedPeriodType string `json:"applied_period_type,omitempty"` // default: contract schedule
	AppliedPeriod     int    `json:"applied_period"`
	AppliedYear       int    `json:"applied_year"`
}

// PaymentResponse wraps a created/updated payment with the data-entry
// guard-rail verdict so the form can prompt for confirmation.
type PaymentResponse struct {
	Payment         PaymentDTO `json:"payment"`
	GuardrailWarned bool       `json:"guardrail_warned"`
}

// =============================================================================
// DASHBOARD
// =============================================================================

// DashboardDTO is the per-client summary card: who they are, what they
// owe for the period that just closed, and whether they have paid it.
type DashboardDTO struct {
	Client        ClientDTO    `json:"client"`
	Contract      *ContractDTO `json:"contract,omitempty"`
	CurrentPeriod string       `json:"current_period,omitempty"`
	PaymentStatus string       `json:"payment_status"`
	ExpectedFee   string       `json:"expected_fee,omitempty"`
	SuggestedAUM  string       `json:"suggested_aum,omitempty"`
	MonthlyRate   string       `json:"monthly_rate,omitempty"`
	QuarterlyRate string       `json:"quarterly_rate,omitempty"`
	AnnualRate    string       `json:"annual_rate,omitempty"`
	LastPayment   *PaymentDTO  `json:"last_payment,omitempty"`
}

// =============================================================================
// COMPLIANCE
// =============================================================================

// ComplianceRecordDTO is one billing period joined against its payment.
type ComplianceRecordDTO struct {
	PeriodKey       string `json:"period_key"`
	PeriodDisplay   string `json:"period_display"`
	Year            int    `json:"year"`
	Period          int    `json:"period"`
	Paid            bool   `json:"paid"`
	PaymentID       string `json:"payment_id,omitempty"`
	ReceivedDate    string `json:"received_date,omitempty"`
	ActualFee       string `json:"actual_fee,omitempty"`
	ExpectedFee     string `json:"expected_fee,omitempty"`
	VarianceAmount  string `json:"variance_amount,omitempty"`
	VariancePercent string `json:"variance_percent,omitempty"`
	VarianceStatus  string `json:"variance_status"`
}

// ComplianceStatsDTO aggregates a slice of the ledger.
type ComplianceStatsDTO struct {
	TotalPeriods   int    `json:"total_periods"`
	PaidPeriods    int    `json:"paid_periods"`
	MissingPeriods int    `json:"missing_periods"`
	ComplianceRate string `json:"compliance_rate"`
	TotalExpected  string `json:"total_expected"`
	TotalPaid      string `json:"total_paid"`
	TotalVariance  string `json:"total_variance"`
}

// YearGroupDTO is one display year of the ledger, periods newest first.
type YearGroupDTO struct {
	Year    int                   `json:"year"`
	Records []ComplianceRecordDTO `json:"records"`
	Stats   ComplianceStatsDTO    `json:"stats"`
}

// ComplianceDTO is the full ledger response.
type ComplianceDTO struct {
	ClientID string                `json:"client_id"`
	Records  []ComplianceRecordDTO `json:"records"`
	Stats    ComplianceStatsDTO    `json:"stats"`
	ByYear   []YearGroupDTO        `json:"by_year"`
}

// =============================================================================
// PERIODS - Payment form dropdown
// =============================================================================

// PeriodOptionDTO is one selectable billing period, newest first.
type PeriodOptionDTO struct {
	Key     string `json:"key"` // "2025-6"
	Display string `json:"display"`
	Period  int    `json:"period"`
	Year    int    `json:"year"`
	Paid    bool   `json:"paid"`
}

// =============================================================================
// SUMMARIES
// =============================================================================

// QuarterSummaryDTO aggregates one calendar quarter of payments.
type QuarterSummaryDTO struct {
	Quarter       int    `json:"quarter"`
	PaymentCount  int    `json:"payment_count"`
	TotalPaid     string `json:"total_paid"`
	TotalExpected string `json:"total_expected"`
	AveragePaid   string `json:"average_paid"`
}

// YearSummaryDTO is the per-client annual rollup.
type YearSummaryDTO struct {
	ClientID      string              `json:"client_id"`
	Year          int                 `json:"year"`
	Quarters      []QuarterSummaryDTO `json:"quarters"`
	PaymentCount  int                 `json:"payment_count"`
	TotalPaid     string              `json:"total_paid"`
	TotalExpected string              `json:"total_expected"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toClientDTO(c billing.Client) ClientDTO {
	dto := ClientDTO{
		ID:          string(c.ID),
		DisplayName: c.DisplayName,
		FullName:    c.FullName,
	}
	if c.IMASignedDate != nil {
		dto.IMASignedDate = c.IMASignedDate.Format("2006-01-02")
	}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = c.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toContractDTO(c billing.Contract) ContractDTO {
	dto := ContractDTO{
		ID:              string(c.ID),
		ClientID:        string(c.ClientID),
		ContractNumber:  c.ContractNumber,
		ProviderName:    c.ProviderName,
		FeeType:         string(c.FeeType),
		PaymentSchedule: string(c.PaymentSchedule),
		StartDate:       c.StartDate.Format("2006-01-02"),
		IsActive:        c.IsActive,
	}
	if c.PercentRate != nil {
		dto.PercentRate = c.PercentRate.String()
	}
	if c.FlatRate != nil {
		dto.FlatRate = c.FlatRate.String()
	}
	return dto
}

func toPaymentDTO(p billing.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:                string(p.ID),
		ContractID:        string(p.ContractID),
		ClientID:          string(p.ClientID),
		ReceivedDate:      p.ReceivedDate.Format("2006-01-02"),
		ActualFee:         p.ActualFee.String(),
		AppliedPeriodType: string(p.AppliedPeriodType),
		AppliedPeriod:     p.AppliedPeriod,
		AppliedYear:       p.AppliedYear,
		PeriodDisplay:     p.AppliedTo().Display(),
	}
	if p.TotalAssets != nil {
		dto.TotalAssets = p.TotalAssets.String()
	}
	if p.ExpectedFee != nil {
		dto.ExpectedFee = p.ExpectedFee.String()
	}
	return dto
}

func toComplianceRecordDTO(r billing.ComplianceRecord) ComplianceRecordDTO {
	dto := ComplianceRecordDTO{
		PeriodKey:      r.Period.Key(),
		PeriodDisplay:  r.PeriodDisplay,
		Year:           r.Period.Year,
		Period:         r.Period.Period,
		Paid:           r.Paid(),
		VarianceStatus: string(r.VarianceStatus),
	}
	if r.PaymentID != nil {
		dto.PaymentID = string(*r.PaymentID)
	}
	if r.ReceivedDate != nil {
		dto.ReceivedDate = r.ReceivedDate.Format("2006-01-02")
	}
	dto.ActualFee = decimalString(r.ActualFee)
	dto.ExpectedFee = decimalString(r.ExpectedFee)
	dto.VarianceAmount = decimalString(r.VarianceAmount)
	dto.VariancePercent = decimalString(r.VariancePercent)
	return dto
}

func toComplianceRecordDTOs(records []billing.ComplianceRecord) []ComplianceRecordDTO {
	dtos := make([]ComplianceRecordDTO, len(records))
	for i, r := range records {
		dtos[i] = toComplianceRecordDTO(r)
	}
	return dtos
}

func toComplianceStatsDTO(s billing.ComplianceStats) ComplianceStatsDTO {
	return ComplianceStatsDTO{
		TotalPeriods:   s.TotalPeriods,
		PaidPeriods:    s.PaidPeriods,
		MissingPeriods: s.MissingPeriods,
		ComplianceRate: s.ComplianceRate.Round(2).String(),
		TotalExpected:  s.TotalExpected.String(),
		TotalPaid:      s.TotalPaid.String(),
		TotalVariance:  s.TotalVariance.String(),
	}
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
