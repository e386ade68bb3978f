/*
compliance.go - The compliance ledger

PURPOSE:
  Reconciles a contract's start date against the full payment history.
  Enumerates every billing period that should have been paid, joins each
  against the recorded payments, and annotates the gaps. This is the
  retrospective audit view: "since this client signed, which periods
  were paid, at what variance, and which are missing?"

ALGORITHM:
  1. First obligation   = period containing the contract start date
  2. Last obligation    = most recently completed period as of asOf
     (never a future or in-progress period)
  3. Enumerate the inclusive range
  4. Join each period against payments on (schedule, period, year)
  5. Matched periods get expected fee + variance classification;
     unmatched periods get no_payment
  6. Aggregate stats overall and per year

DUPLICATE PAYMENTS:
  Several payments can legally land on one period. The period counts as
  paid once, and the most recently received payment is canonical for
  display. The extras stay visible in the raw payment history; they just
  don't create duplicate ledger rows.

FAILURE SEMANTICS:
  No start date -> error (never defaulted). Start date in the future ->
  empty ledger, which is valid. Empty payment history -> all-no_payment
  ledger with a 0% compliance rate.
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMPLIANCE RECORD - One billing period joined against its payment
// =============================================================================

// ComplianceRecord is the join of one billing period against zero or
// one canonical payment. Nil PaymentID means the period is unpaid.
type ComplianceRecord struct {
	Period          BillingPeriod
	PeriodDisplay   string
	PaymentID       *PaymentID
	ReceivedDate    *time.Time
	ActualFee       *decimal.Decimal
	ExpectedFee     *decimal.Decimal
	VarianceAmount  *decimal.Decimal
	VariancePercent *decimal.Decimal
	VarianceStatus  VarianceStatus
}

// Paid reports whether a payment was recorded for the period.
func (r ComplianceRecord) Paid() bool { return r.PaymentID != nil }

// =============================================================================
// STATS
// =============================================================================

// ComplianceStats aggregates a slice of the ledger. The same formula
// applies to the full ledger and to each per-year group.
type ComplianceStats struct {
	TotalPeriods   int
	PaidPeriods    int
	MissingPeriods int
	ComplianceRate decimal.Decimal // percent, 0 when no periods
	TotalExpected  decimal.Decimal
	TotalPaid      decimal.Decimal
	TotalVariance  decimal.Decimal
}

func statsFor(records []ComplianceRecord) ComplianceStats {
	s := ComplianceStats{TotalPeriods: len(records)}
	for _, r := range records {
		if r.Paid() {
			s.PaidPeriods++
		}
		if r.ExpectedFee != nil {
			s.TotalExpected = s.TotalExpected.Add(*r.ExpectedFee)
		}
		if r.ActualFee != nil {
			s.TotalPaid = s.TotalPaid.Add(*r.ActualFee)
		}
		if r.VarianceAmount != nil {
			s.TotalVariance = s.TotalVariance.Add(*r.VarianceAmount)
		}
	}
	s.MissingPeriods = s.TotalPeriods - s.PaidPeriods
	if s.TotalPeriods > 0 {
		s.ComplianceRate = decimal.NewFromInt(int64(s.PaidPeriods)).
			Div(decimal.NewFromInt(int64(s.TotalPeriods))).
			Mul(decimal.NewFromInt(100))
	}
	return s
}

// =============================================================================
// LEDGER
// =============================================================================

// ComplianceLedger is the full obligation history for one contract,
// oldest period first, plus aggregate stats.
type ComplianceLedger struct {
	Records []ComplianceRecord
	Stats   ComplianceStats
}

// YearGroup is one display year of the ledger with its own stats slice.
type YearGroup struct {
	Year    int
	Records []ComplianceRecord
	Stats   ComplianceStats
}

// ByYear groups the ledger for display: years descending, periods
// within each year descending, mirroring the compliance report layout.
func (l *ComplianceLedger) ByYear() []YearGroup {
	byYear := make(map[int][]ComplianceRecord)
	var years []int
	for _, r := range l.Records {
		if _, seen := byYear[r.Period.Year]; !seen {
			years = append(years, r.Period.Year)
		}
		byYear[r.Period.Year] = append(byYear[r.Period.Year], r)
	}

	// Records arrive ascending; walk years in reverse and flip each
	// year's records to get the newest-first report ordering.
	groups := make([]YearGroup, 0, len(years))
	for i := len(years) - 1; i >= 0; i-- {
		year := years[i]
		recs := byYear[year]
		reversed := make([]ComplianceRecord, len(recs))
		for j, r := range recs {
			reversed[len(recs)-1-j] = r
		}
		groups = append(groups, YearGroup{Year: year, Records: reversed, Stats: statsFor(recs)})
	}
	return groups
}

// BuildLedger enumerates every billing period from the contract's start
// through the most recently completed period and joins each against the
// payment history.
//
// Preconditions checked here, not defaulted:
//   - contract must have a start date (ErrMissingStartDate)
//   - contract invariants must hold (MalformedContractError)
//   - payments must carry valid, non-negative fees (InvalidFeeError)
//
// A start date after asOf produces an empty ledger - zero obligations
// is a valid state for a brand-new contract.
func BuildLedger(c Contract, payments []Payment, asOf time.Time) (*ComplianceLedger, error) {
	if c.StartDate.IsZero() {
		return nil, ErrMissingStartDate
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	for _, p := range payments {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	start := PeriodContaining(c.StartDate, c.PaymentSchedule)
	end := CurrentPeriod(asOf, c.PaymentSchedule)
	if end.Before(start) {
		return &ComplianceLedger{}, nil
	}

	obligations, err := EnumeratePeriods(start, end)
	if err != nil {
		return nil, err
	}

	// Index payments by period, keeping the most recently received as
	// canonical when several land on the same period.
	canonical := make(map[BillingPeriod]*Payment, len(payments))
	for i := range payments {
		p := &payments[i]
		if p.AppliedPeriodType != c.PaymentSchedule {
			continue
		}
		key := p.AppliedTo()
		if cur, ok := canonical[key]; !ok || !p.ReceivedDate.Before(cur.ReceivedDate) {
			canonical[key] = p
		}
	}

	thresholds := AuditThresholds()
	records := make([]ComplianceRecord, 0, len(obligations))
	for _, period := range obligations {
		rec := ComplianceRecord{Period: period, PeriodDisplay: period.Display()}

		if p, ok := canonical[period]; ok {
			expected, err := ExpectedFee(c, p.TotalAssets)
			if err != nil {
				return nil, err
			}
			v := thresholds.Classify(p.ActualFee, expected)

			id := p.ID
			received := p.ReceivedDate
			actual := p.ActualFee
			rec.PaymentID = &id
			rec.ReceivedDate = &received
			rec.ActualFee = &actual
			rec.ExpectedFee = expected
			rec.VarianceAmount = v.Amount
			rec.VariancePercent = v.Percent
			rec.VarianceStatus = v.Status
		} else {
			// Unpaid period: flat contracts still know the expected
			// fee; percentage contracts can't compute one without AUM.
			expected, err := ExpectedFee(c, nil)
			if err != nil {
				return nil, err
			}
			rec.ExpectedFee = expected
			rec.VarianceStatus = StatusNoPayment
		}

		records = append(records, rec)
	}

	return &ComplianceLedger{Records: records, Stats: statsFor(records)}, nil
}
