/*
status.go - Paid/Due resolution for the current period

The sidebar and dashboard status dot reduce to one question: does the
client's most recent payment cover the period that just closed?
*/
package billing

import "time"

// PaymentStatus is the dashboard-level compliance indicator.
type PaymentStatus string

const (
	StatusPaid PaymentStatus = "Paid"
	StatusDue  PaymentStatus = "Due"
)

// ResolveStatus determines whether a client is Paid or Due for the
// current billing period.
//
// A payment applied to the current period OR ANY LATER one counts as
// paid: clients who prepay ahead of schedule are not delinquent.
// Comparing for equality alone would mark them Due, which is wrong.
func ResolveStatus(today time.Time, schedule Schedule, last *Payment) PaymentStatus {
	if last == nil {
		return StatusDue
	}

	cur := CurrentPeriod(today, schedule)
	switch {
	case last.AppliedYear > cur.Year:
		return StatusPaid
	case last.AppliedYear == cur.Year && last.AppliedPeriod >= cur.Period:
		return StatusPaid
	default:
		return StatusDue
	}
}

// LatestApplied returns the payment covering the latest billing period
// for the given schedule, or nil when no payment matches. Ties on the
// applied period fall to the most recently received payment; a full tie
// on period and received date falls to the later payment in input
// order, matching the ledger's canonical-payment choice.
func LatestApplied(payments []Payment, schedule Schedule) *Payment {
	var latest *Payment
	for i := range payments {
		p := &payments[i]
		if p.AppliedPeriodType != schedule {
			continue
		}
		if latest == nil || latest.AppliedTo().Before(p.AppliedTo()) {
			latest = p
			continue
		}
		if latest.AppliedTo().Equal(p.AppliedTo()) && !p.ReceivedDate.Before(latest.ReceivedDate) {
			latest = p
		}
	}
	return latest
}
