/*
Package factory provides JSON to Go contract conversion.

PURPOSE:
  Converts JSON fee agreement definitions into billing.Contract values.
  This enables contract setup without code changes - operations staff
  can define fee terms in JSON, and the factory creates the proper Go
  structs with every rate parsed through decimal (never float64).

WHY JSON?
  - Non-developers can enter fee terms
  - Easy integration with an admin UI
  - Version control for agreement definitions
  - Database/seed storage of contract configs

JSON SCHEMA:
  {
    "id": "contract-airsea-2019",
    "client_id": "client-airsea",
    "contract_number": "134565",
    "provider_name": "Voya",
    "fee_type": "percentage",
    "percent_rate": "0.0007",
    "payment_schedule": "monthly",
    "start_date": "2019-05-04"
  }

KEY FEATURES:
  - Rates decoded as strings so "0.0007" survives exactly
  - Validates through billing.Contract.Validate (rate presence,
    schedule, rate bounds)
  - Rejects contracts whose start date is missing or malformed

USAGE:
  c, err := factory.ParseContract(jsonStr)
  if err != nil { ... }
  store.AppendContract(ctx, c)

SEE ALSO:
  - billing/types.go:   Contract definition and validation rules
  - api/scenarios.go:   seed data built through this factory
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/fee-engine/billing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ContractJSON is the JSON representation of a fee agreement.
type ContractJSON struct {
	ID              string `json:"id"`
	ClientID        string `json:"client_id"`
	ContractNumber  string `json:"contract_number,omitempty"`
	ProviderName    string `json:"provider_name,omitempty"`
	FeeType         string `json:"fee_type"`                   // percentage, flat
	PercentRate     string `json:"percent_rate,omitempty"`     // per-period fraction, e.g. "0.0007"
	FlatRate        string `json:"flat_rate,omitempty"`        // per-period dollars, e.g. "666.66"
	PaymentSchedule string `json:"payment_schedule"`           // monthly, quarterly
	StartDate       string `json:"start_date"`                 // YYYY-MM-DD
}

// ClientJSON is the JSON representation of a plan sponsor.
type ClientJSON struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	FullName      string `json:"full_name,omitempty"`
	IMASignedDate string `json:"ima_signed_date,omitempty"` // YYYY-MM-DD
}

// =============================================================================
// PARSING
// =============================================================================

// ParseContract parses a JSON string into a validated billing.Contract.
func ParseContract(jsonStr string) (billing.Contract, error) {
	var cj ContractJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return billing.Contract{}, fmt.Errorf("failed to parse contract JSON: %w", err)
	}
	return ContractFromJSON(cj)
}

// ContractFromJSON converts ContractJSON to a validated billing.Contract.
func ContractFromJSON(cj ContractJSON) (billing.Contract, error) {
	// Enum strings pass through unmodified so Validate rejects unknown
	// values; a typo'd schedule must never coerce to a default cadence.
	c := billing.Contract{
		ID:              billing.ContractID(cj.ID),
		ClientID:        billing.ClientID(cj.ClientID),
		ContractNumber:  cj.ContractNumber,
		ProviderName:    cj.ProviderName,
		FeeType:         billing.FeeType(cj.FeeType),
		PaymentSchedule: billing.Schedule(cj.PaymentSchedule),
	}

	var err error
	if c.PercentRate, err = parseRate(cj.PercentRate, "percent_rate"); err != nil {
		return billing.Contract{}, err
	}
	if c.FlatRate, err = parseRate(cj.FlatRate, "flat_rate"); err != nil {
		return billing.Contract{}, err
	}

	if cj.StartDate == "" {
		return billing.Contract{}, fmt.Errorf("contract %s: %w", cj.ID, billing.ErrMissingStartDate)
	}
	start, err := time.Parse("2006-01-02", cj.StartDate)
	if err != nil {
		return billing.Contract{}, fmt.Errorf("invalid start_date format: %w", err)
	}
	c.StartDate = start

	if err := c.Validate(); err != nil {
		return billing.Contract{}, err
	}
	return c, nil
}

// ParseClient parses a JSON string into a billing.Client.
func ParseClient(jsonStr string) (billing.Client, error) {
	var cj ClientJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return billing.Client{}, fmt.Errorf("failed to parse client JSON: %w", err)
	}
	return ClientFromJSON(cj)
}

// ClientFromJSON converts ClientJSON to a billing.Client.
func ClientFromJSON(cj ClientJSON) (billing.Client, error) {
	if cj.ID == "" {
		return billing.Client{}, fmt.Errorf("client requires an id")
	}
	if cj.DisplayName == "" {
		return billing.Client{}, fmt.Errorf("client %s requires a display_name", cj.ID)
	}

	c := billing.Client{
		ID:          billing.ClientID(cj.ID),
		DisplayName: cj.DisplayName,
		FullName:    cj.FullName,
	}
	if cj.IMASignedDate != "" {
		t, err := time.Parse("2006-01-02", cj.IMASignedDate)
		if err != nil {
			return billing.Client{}, fmt.Errorf("invalid ima_signed_date format: %w", err)
		}
		c.IMASignedDate = &t
	}
	return c, nil
}

// ToJSON converts a billing.Contract back to its JSON representation.
func ToJSON(c billing.Contract) ContractJSON {
	cj := ContractJSON{
		ID:              string(c.ID),
		ClientID:        string(c.ClientID),
		ContractNumber:  c.ContractNumber,
		ProviderName:    c.ProviderName,
		FeeType:         string(c.FeeType),
		PaymentSchedule: string(c.PaymentSchedule),
	}
	if c.PercentRate != nil {
		cj.PercentRate = c.PercentRate.String()
	}
	if c.FlatRate != nil {
		cj.FlatRate = c.FlatRate.String()
	}
	if !c.StartDate.IsZero() {
		cj.StartDate = c.StartDate.Format("2006-01-02")
	}
	return cj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// parseRate decodes a rate string through decimal so values like
// "0.0007" round-trip exactly.
func parseRate(s, field string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return &d, nil
}
