/*
fee.go - Expected fee calculation

PURPOSE:
  Computes what a contract's terms imply the fee should be for one
  billing period, given the assets under management at that time.

RATE SCALING:
  PercentRate is stored pre-scaled to the billing period: a monthly
  0.07% fee is stored as 0.0007. The stored rate is authoritative -
  never re-derive it from an annual figure. The monthly/quarterly/
  annual figures shown on the dashboard are plain multiples of the
  stored rate (x1/x3/x12 for monthly contracts, x1/x1/x4 for quarterly)
  and carry no business meaning of their own.
*/
package billing

import "github.com/shopspring/decimal"

// ExpectedFee computes the fee a contract's terms imply for one period.
//
// Flat contracts return the flat rate regardless of AUM (nil included).
// Percentage contracts return aum * rate, or nil when no AUM is
// available - the fee simply cannot be computed without an asset base.
//
// A malformed contract or negative AUM is a broken precondition and
// errors out rather than producing a silent or negative fee.
func ExpectedFee(c Contract, aum *decimal.Decimal) (*decimal.Decimal, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.FeeType == FeeFlat {
		v := *c.FlatRate
		return &v, nil
	}

	if aum == nil {
		return nil, nil
	}
	if aum.IsNegative() {
		return nil, &InvalidFeeError{Field: "assets_under_management", Value: *aum}
	}

	fee := aum.Mul(*c.PercentRate)
	return &fee, nil
}

// =============================================================================
// DISPLAY RATES - Presentational multiples of the stored period rate
// =============================================================================

// DisplayRates holds the per-cadence views of a contract's rate shown
// on the dashboard. For flat contracts the values are dollar amounts;
// for percentage contracts they are decimal fractions.
type DisplayRates struct {
	Monthly   decimal.Decimal
	Quarterly decimal.Decimal
	Annual    decimal.Decimal
}

// RatesFor expands the stored period rate into monthly/quarterly/annual
// display figures. Pure presentation: no rounding, no business logic.
func RatesFor(c Contract) (DisplayRates, error) {
	if err := c.Validate(); err != nil {
		return DisplayRates{}, err
	}

	var rate decimal.Decimal
	if c.FeeType == FeeFlat {
		rate = *c.FlatRate
	} else {
		rate = *c.PercentRate
	}

	if c.PaymentSchedule == Quarterly {
		return DisplayRates{
			Monthly:   rate, // quarterly contracts have no true monthly figure; the dashboard shows the period rate
			Quarterly: rate,
			Annual:    rate.Mul(decimal.NewFromInt(4)),
		}, nil
	}
	return DisplayRates{
		Monthly:   rate,
		Quarterly: rate.Mul(decimal.NewFromInt(3)),
		Annual:    rate.Mul(decimal.NewFromInt(12)),
	}, nil
}
