/*
Package billing is the core fee-compliance engine.

PURPOSE:
  This package contains the business logic for 401(k) administration fee
  tracking: current-period determination, expected-fee calculation,
  variance classification, Paid/Due status resolution, and the
  compliance ledger that reconciles a contract's start date against the
  full payment history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Contract: a fee agreement (percentage-of-assets or flat-rate)
  - Payment: one recorded remittance, applied to a billing period
  - Client: the plan sponsor the firm bills
  - Schedule: monthly or quarterly billing cadence

DESIGN PRINCIPLES:
  1. Purity: every function here is deterministic and side-effect free.
     Callers supply materialized Contract/Payment snapshots; the engine
     never fetches, caches, or mutates anything.
  2. Precision: uses decimal.Decimal for all currency and rates to
     avoid floating-point drift in fee math.
  3. Single source of truth: period and status formulas live here and
     only here. Storage layers hold raw records, never derived logic.
  4. Explicit degenerate cases: missing AUM, zero expected fees, and
     unpaid periods are sentinel values (nil, "unknown", "no_payment"),
     not errors. Only broken preconditions produce errors.

SEE ALSO:
  - period.go:     billing period math (current period, enumeration)
  - fee.go:        expected fee from contract terms
  - variance.go:   actual-vs-expected classification
  - status.go:     Paid/Due resolution
  - compliance.go: the ledger that ties it all together
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type ContractID string
type PaymentID string

// =============================================================================
// SCHEDULE - Billing cadence
// =============================================================================

// Schedule is the billing cadence of a contract. Monthly contracts owe
// twelve fees a year, quarterly contracts owe four.
type Schedule string

const (
	Monthly   Schedule = "monthly"
	Quarterly Schedule = "quarterly"
)

// PeriodsPerYear returns 12 for monthly and 4 for quarterly.
func (s Schedule) PeriodsPerYear() int {
	if s == Quarterly {
		return 4
	}
	return 12
}

// Valid reports whether s is a known schedule.
func (s Schedule) Valid() bool {
	return s == Monthly || s == Quarterly
}

// =============================================================================
// FEE TYPE
// =============================================================================

type FeeType string

const (
	// FeePercentage contracts bill a fraction of assets under management.
	// The stored rate is pre-scaled to the billing period (0.0007 means
	// 0.07% per period), never an annual rate.
	FeePercentage FeeType = "percentage"

	// FeeFlat contracts bill a fixed amount per period regardless of AUM.
	FeeFlat FeeType = "flat"
)

// =============================================================================
// CLIENT
// =============================================================================

// Client is a plan sponsor the firm administers a 401(k) for.
type Client struct {
	ID            ClientID
	DisplayName   string
	FullName      string
	IMASignedDate *time.Time
	CreatedAt     time.Time
}

// =============================================================================
// CONTRACT - Fee agreement
// =============================================================================

// Contract represents a fee agreement between the firm and a client.
//
// INVARIANT: exactly one of PercentRate/FlatRate is set, matching
// FeeType. Validate() enforces this at the deserialization boundary;
// the engine re-checks it defensively and fails loudly on violation.
//
// Contracts are append-only: superseding a contract deactivates the old
// record and appends a new one with a later StartDate. Historical
// payments keep the rate that was active at their time.
type Contract struct {
	ID              ContractID
	ClientID        ClientID
	ContractNumber  string
	ProviderName    string
	FeeType         FeeType
	PercentRate     *decimal.Decimal // per-period fraction, set iff FeeType == FeePercentage
	FlatRate        *decimal.Decimal // per-period amount, set iff FeeType == FeeFlat
	PaymentSchedule Schedule
	StartDate       time.Time // zero value means missing (fatal for ledger building)
	IsActive        bool
}

// Validate checks the rate/fee-type invariant and the schedule.
// Returns a MalformedContractError describing the first violation.
func (c Contract) Validate() error {
	if !c.PaymentSchedule.Valid() {
		return &MalformedContractError{ContractID: c.ID, Reason: "unknown payment schedule " + string(c.PaymentSchedule)}
	}
	switch c.FeeType {
	case FeePercentage:
		if c.PercentRate == nil {
			return &MalformedContractError{ContractID: c.ID, Reason: "percentage contract missing percent rate"}
		}
		if c.FlatRate != nil {
			return &MalformedContractError{ContractID: c.ID, Reason: "percentage contract also carries a flat rate"}
		}
		if c.PercentRate.IsNegative() {
			return &MalformedContractError{ContractID: c.ID, Reason: "negative percent rate"}
		}
	case FeeFlat:
		if c.FlatRate == nil {
			return &MalformedContractError{ContractID: c.ID, Reason: "flat contract missing flat rate"}
		}
		if c.PercentRate != nil {
			return &MalformedContractError{ContractID: c.ID, Reason: "flat contract also carries a percent rate"}
		}
		if c.FlatRate.IsNegative() {
			return &MalformedContractError{ContractID: c.ID, Reason: "negative flat rate"}
		}
	default:
		return &MalformedContractError{ContractID: c.ID, Reason: "unknown fee type " + string(c.FeeType)}
	}
	return nil
}

// =============================================================================
// PAYMENT - One recorded remittance
// =============================================================================

// Payment is a single recorded remittance against a contract.
//
// (AppliedPeriodType, AppliedPeriod, AppliedYear) identifies the billing
// period the payment discharges. A client normally has one payment per
// period, but the model tolerates zero, one, or several; the compliance
// engine reconciles duplicates at display time.
type Payment struct {
	ID                PaymentID
	ContractID        ContractID
	ClientID          ClientID
	ReceivedDate      time.Time
	TotalAssets       *decimal.Decimal // AUM at time of payment, if recorded
	ExpectedFee       *decimal.Decimal // informational, as entered on the form
	ActualFee         decimal.Decimal  // required, >= 0
	AppliedPeriodType Schedule
	AppliedPeriod     int // 1-12 monthly, 1-4 quarterly
	AppliedYear       int
}

// AppliedTo returns the billing period this payment discharges.
func (p Payment) AppliedTo() BillingPeriod {
	return BillingPeriod{Schedule: p.AppliedPeriodType, Period: p.AppliedPeriod, Year: p.AppliedYear}
}

// Validate fails fast on fee values the input layer should have
// rejected: negative amounts never reach variance math silently.
func (p Payment) Validate() error {
	if p.ActualFee.IsNegative() {
		return &InvalidFeeError{PaymentID: p.ID, Field: "actual_fee", Value: p.ActualFee}
	}
	if p.TotalAssets != nil && p.TotalAssets.IsNegative() {
		return &InvalidFeeError{PaymentID: p.ID, Field: "total_assets", Value: *p.TotalAssets}
	}
	if !p.AppliedTo().Valid() {
		return &InvalidPeriodError{Schedule: p.AppliedPeriodType, Period: p.AppliedPeriod, Year: p.AppliedYear}
	}
	return nil
}
