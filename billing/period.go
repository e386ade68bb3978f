/*
period.go - Billing period math

PURPOSE:
  Maps calendar dates to billing periods and enumerates period ranges.
  This is the single source of the "current period" formula that the
  original system duplicated between database views and client code.

KEY RULE — REPORTING IN ARREARS:
  Fees are billed for the period that just CLOSED, never the one in
  progress. In July the current monthly obligation is June; in January
  it is December of the prior year. Same wrap-around for Q1 -> Q4.

SEE ALSO:
  - status.go:     Paid/Due uses CurrentPeriod
  - compliance.go: ledger bounds come from PeriodContaining + CurrentPeriod
*/
package billing

import (
	"fmt"
	"time"
)

// =============================================================================
// BILLING PERIOD - One unit of fee obligation
// =============================================================================

// BillingPeriod is one monthly or quarterly interval for which a fee
// obligation exists. Periods order by (Year, Period) ascending; periods
// of different schedules are never compared.
type BillingPeriod struct {
	Schedule Schedule
	Period   int // 1-12 monthly, 1-4 quarterly
	Year     int
}

// Valid reports whether the period number is in range for the schedule.
func (p BillingPeriod) Valid() bool {
	return p.Schedule.Valid() && p.Period >= 1 && p.Period <= p.Schedule.PeriodsPerYear()
}

// Before reports whether p precedes other. Both periods must share a
// schedule; callers guard with the ErrScheduleMismatch checks upstream.
func (p BillingPeriod) Before(other BillingPeriod) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Period < other.Period
}

func (p BillingPeriod) Equal(other BillingPeriod) bool {
	return p.Schedule == other.Schedule && p.Period == other.Period && p.Year == other.Year
}

func (p BillingPeriod) After(other BillingPeriod) bool {
	return !p.Before(other) && !p.Equal(other)
}

// Next returns the following period, rolling over into the next year
// after December / Q4.
func (p BillingPeriod) Next() BillingPeriod {
	if p.Period >= p.Schedule.PeriodsPerYear() {
		return BillingPeriod{Schedule: p.Schedule, Period: 1, Year: p.Year + 1}
	}
	return BillingPeriod{Schedule: p.Schedule, Period: p.Period + 1, Year: p.Year}
}

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Display returns the human-readable label used across the dashboard:
// "June 2025" for monthly periods, "Q2 2025" for quarterly.
func (p BillingPeriod) Display() string {
	if p.Schedule == Quarterly {
		return fmt.Sprintf("Q%d %d", p.Period, p.Year)
	}
	if p.Period >= 1 && p.Period <= 12 {
		return fmt.Sprintf("%s %d", monthNames[p.Period-1], p.Year)
	}
	return fmt.Sprintf("P%d %d", p.Period, p.Year)
}

// Key returns a stable "2025-6" identifier used by the payment form.
func (p BillingPeriod) Key() string {
	return fmt.Sprintf("%d-%d", p.Year, p.Period)
}

// =============================================================================
// CURRENT PERIOD - The most recently completed period
// =============================================================================

// CurrentPeriod returns the most recently COMPLETED billing period as
// of today, not the one in progress.
//
// Monthly: January looks back to (12, year-1); any other month M maps
// to (M-1, year). Quarterly: Q1 looks back to (4, year-1); any other
// quarter Q maps to (Q-1, year).
func CurrentPeriod(today time.Time, schedule Schedule) BillingPeriod {
	if schedule == Quarterly {
		q := quarterOf(today.Month())
		if q == 1 {
			return BillingPeriod{Schedule: Quarterly, Period: 4, Year: today.Year() - 1}
		}
		return BillingPeriod{Schedule: Quarterly, Period: q - 1, Year: today.Year()}
	}

	if today.Month() == time.January {
		return BillingPeriod{Schedule: Monthly, Period: 12, Year: today.Year() - 1}
	}
	return BillingPeriod{Schedule: Monthly, Period: int(today.Month()) - 1, Year: today.Year()}
}

// PeriodContaining returns the period a calendar date falls inside.
// Used to derive the first obligation from a contract's start date.
func PeriodContaining(date time.Time, schedule Schedule) BillingPeriod {
	if schedule == Quarterly {
		return BillingPeriod{Schedule: Quarterly, Period: quarterOf(date.Month()), Year: date.Year()}
	}
	return BillingPeriod{Schedule: Monthly, Period: int(date.Month()), Year: date.Year()}
}

// quarterOf maps a month to its calendar quarter: ceil(month/3).
func quarterOf(m time.Month) int {
	return (int(m) + 2) / 3
}

// =============================================================================
// ENUMERATION - Every period from start to end, inclusive
// =============================================================================

// EnumeratePeriods produces every period from start to end inclusive,
// ascending, rolling over at year boundaries.
//
// start == end yields a single period. A start after end yields an
// empty sequence - a valid degenerate case (contract newer than the
// evaluation date), not an error. Mixing schedules is an error.
func EnumeratePeriods(start, end BillingPeriod) ([]BillingPeriod, error) {
	if start.Schedule != end.Schedule {
		return nil, ErrScheduleMismatch
	}
	if !start.Valid() {
		return nil, &InvalidPeriodError{Schedule: start.Schedule, Period: start.Period, Year: start.Year}
	}
	if !end.Valid() {
		return nil, &InvalidPeriodError{Schedule: end.Schedule, Period: end.Period, Year: end.Year}
	}

	var periods []BillingPeriod
	for p := start; !end.Before(p); p = p.Next() {
		periods = append(periods, p)
	}
	return periods, nil
}
