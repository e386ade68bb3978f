/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates clients, contracts,
	and payments that demonstrate specific compliance situations.

AVAILABLE SCENARIOS:

	steady-book:      Percentage and flat-rate clients with mostly
	                  on-time payment histories
	missed-periods:   Gaps and variance outliers in the ledger
	contract-change:  A client whose fee terms were superseded mid-history

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create clients
 3. Append contracts via the factory
 4. Record payments relative to today's billing period

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "steady-book"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: shared handler context and helpers
  - factory/contract.go: contract deserialization
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/fee-engine/billing"
	"github.com/warp/fee-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "steady-book",
		Name:        "Steady Book",
		Description: "Percentage and flat-rate clients paying on schedule",
	},
	{
		ID:          "missed-periods",
		Name:        "Missed Periods",
		Description: "Payment gaps and variance outliers in the compliance ledger",
	},
	{
		ID:          "contract-change",
		Name:        "Contract Change",
		Description: "Fee terms superseded mid-history; old payments keep old terms",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:   h.currentScenario,
		Name: h.currentScenario,
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var loader func(context.Context) error
	switch req.ScenarioID {
	case "steady-book":
		loader = h.loadSteadyBook
	case "missed-periods":
		loader = h.loadMissedPeriods
	case "contract-change":
		loader = h.loadContractChange
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Cache.ClearAll()
	h.currentScenario = ""

	if err := loader(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadSteadyBook seeds two clients with clean payment histories: a
// percentage-of-assets monthly contract and a flat-rate quarterly one.
func (h *Handler) loadSteadyBook(ctx context.Context) error {
	today := h.now()

	// AirSea: 0.07% of assets per month, every period paid.
	if err := h.seedClientWithHistory(ctx, seedSpec{
		clientID:    "client-airsea",
		displayName: "AirSea America",
		fullName:    "AirSea America Inc. 401(k) Profit Sharing Plan",
		contract: factory.ContractJSON{
			ID:              "contract-airsea",
			ClientID:        "client-airsea",
			ContractNumber:  "134565",
			ProviderName:    "Voya",
			FeeType:         "percentage",
			PercentRate:     "0.0007",
			PaymentSchedule: "monthly",
			StartDate:       monthsAgo(today, 14).Format("2006-01-02"),
		},
		aum:       "1400234.25",
		skipEvery: 0,
	}); err != nil {
		return err
	}

	// Harbor Crest: $666.66 flat per quarter.
	return h.seedClientWithHistory(ctx, seedSpec{
		clientID:    "client-harborcrest",
		displayName: "Harbor Crest Manufacturing",
		fullName:    "Harbor Crest Manufacturing 401(k) Plan",
		contract: factory.ContractJSON{
			ID:              "contract-harborcrest",
			ClientID:        "client-harborcrest",
			ContractNumber:  "5305",
			ProviderName:    "John Hancock",
			FeeType:         "flat",
			FlatRate:        "666.66",
			PaymentSchedule: "quarterly",
			StartDate:       monthsAgo(today, 18).Format("2006-01-02"),
		},
		skipEvery: 0,
	})
}

// loadMissedPeriods seeds a client whose ledger shows gaps and a fee
// that drifted well away from the expected amount.
func (h *Handler) loadMissedPeriods(ctx context.Context) error {
	today := h.now()

	return h.seedClientWithHistory(ctx, seedSpec{
		clientID:    "client-nordic",
		displayName: "Nordic Supply Co",
		fullName:    "Nordic Supply Co 401(k) Plan",
		contract: factory.ContractJSON{
			ID:              "contract-nordic",
			ClientID:        "client-nordic",
			ProviderName:    "Ascensus",
			FeeType:         "percentage",
			PercentRate:     "0.0007",
			PaymentSchedule: "monthly",
			StartDate:       monthsAgo(today, 12).Format("2006-01-02"),
		},
		aum: "980500",
		// Skip every third period and drift the paid amount so the
		// ledger shows no_payment rows and warning/alert variances.
		skipEvery: 3,
		drift:     true,
	})
}

// loadContractChange seeds a client whose flat-rate agreement was
// superseded by a percentage one partway through the history.
func (h *Handler) loadContractChange(ctx context.Context) error {
	today := h.now()

	client := billing.Client{
		ID:          "client-meridian",
		DisplayName: "Meridian Logistics",
		FullName:    "Meridian Logistics 401(k) Plan",
	}
	if err := h.Store.SaveClient(ctx, client); err != nil {
		return err
	}

	old, err := factory.ContractFromJSON(factory.ContractJSON{
		ID:              "contract-meridian-flat",
		ClientID:        "client-meridian",
		ProviderName:    "Empower",
		FeeType:         "flat",
		FlatRate:        "500",
		PaymentSchedule: "monthly",
		StartDate:       monthsAgo(today, 20).Format("2006-01-02"),
	})
	if err != nil {
		return err
	}
	if err := h.Store.AppendContract(ctx, old); err != nil {
		return err
	}

	// Payments under the old terms.
	if err := h.seedPayments(ctx, old, "", 20, 8, 0, false); err != nil {
		return err
	}

	// Supersede: same client, new percentage terms.
	current, err := factory.ContractFromJSON(factory.ContractJSON{
		ID:              "contract-meridian-pct",
		ClientID:        "client-meridian",
		ProviderName:    "Empower",
		FeeType:         "percentage",
		PercentRate:     "0.00055",
		PaymentSchedule: "monthly",
		StartDate:       monthsAgo(today, 8).Format("2006-01-02"),
	})
	if err != nil {
		return err
	}
	if err := h.Store.AppendContract(ctx, current); err != nil {
		return err
	}

	return h.seedPayments(ctx, current, "1120000", 8, 0, 0, false)
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

type seedSpec struct {
	clientID    string
	displayName string
	fullName    string
	contract    factory.ContractJSON
	aum         string // empty for flat contracts
	skipEvery   int    // skip every Nth period (0 = none)
	drift       bool   // push some fees outside the audit thresholds
}

func (h *Handler) seedClientWithHistory(ctx context.Context, spec seedSpec) error {
	client := billing.Client{
		ID:          billing.ClientID(spec.clientID),
		DisplayName: spec.displayName,
		FullName:    spec.fullName,
	}
	if err := h.Store.SaveClient(ctx, client); err != nil {
		return err
	}

	contract, err := factory.ContractFromJSON(spec.contract)
	if err != nil {
		return err
	}
	if err := h.Store.AppendContract(ctx, contract); err != nil {
		return err
	}

	start := billing.PeriodContaining(contract.StartDate, contract.PaymentSchedule)
	end := billing.CurrentPeriod(h.now(), contract.PaymentSchedule)
	obligations, err := billing.EnumeratePeriods(start, end)
	if err != nil {
		return err
	}

	return h.seedPayments(ctx, contract, spec.aum, len(obligations), 0, spec.skipEvery, spec.drift)
}

// seedPayments records payments for the contract's obligations, from
// `back` periods ago up to `until` periods ago (0 = through the current
// period).
func (h *Handler) seedPayments(ctx context.Context, contract billing.Contract, aum string, back, until, skipEvery int, drift bool) error {
	var assets *decimal.Decimal
	if aum != "" {
		v, err := decimal.NewFromString(aum)
		if err != nil {
			return err
		}
		assets = &v
	}

	end := billing.CurrentPeriod(h.now(), contract.PaymentSchedule)
	periods := []billing.BillingPeriod{end}
	for i := 1; i < back; i++ {
		periods = append(periods, previousPeriod(periods[len(periods)-1]))
	}

	for i, period := range periods {
		if i < until {
			continue
		}
		if skipEvery > 0 && (i+1)%skipEvery == 0 {
			continue
		}

		expected, err := billing.ExpectedFee(contract, assets)
		if err != nil {
			return err
		}

		fee := decimal.NewFromInt(100)
		if expected != nil {
			fee = *expected
		}
		if drift && i%4 == 1 {
			// One in four paid fees lands ~8% high.
			fee = fee.Mul(decimal.NewFromFloat(1.08)).Round(2)
		}

		p := billing.Payment{
			ID:                billing.PaymentID(fmt.Sprintf("seed-%s-%s", contract.ID, period.Key())),
			ContractID:        contract.ID,
			ClientID:          contract.ClientID,
			ReceivedDate:      receivedDateFor(period),
			TotalAssets:       assets,
			ExpectedFee:       expected,
			ActualFee:         fee,
			AppliedPeriodType: period.Schedule,
			AppliedPeriod:     period.Period,
			AppliedYear:       period.Year,
		}
		if err := h.Store.RecordPayment(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func previousPeriod(p billing.BillingPeriod) billing.BillingPeriod {
	if p.Period == 1 {
		return billing.BillingPeriod{Schedule: p.Schedule, Period: p.Schedule.PeriodsPerYear(), Year: p.Year - 1}
	}
	return billing.BillingPeriod{Schedule: p.Schedule, Period: p.Period - 1, Year: p.Year}
}

// receivedDateFor places the remittance shortly after the period closed.
func receivedDateFor(p billing.BillingPeriod) time.Time {
	month := time.Month(p.Period + 1)
	year := p.Year
	if p.Schedule == billing.Quarterly {
		month = time.Month(p.Period*3 + 1)
	}
	if int(month) > 12 {
		month -= 12
		year++
	}
	return time.Date(year, month, 10, 0, 0, 0, 0, time.UTC)
}

func monthsAgo(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -n, 0)
}
