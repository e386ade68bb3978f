/*
variance.go - Actual-vs-expected fee classification

PURPOSE:
  Compares a recorded fee to the expected fee and produces the variance
  amount, percentage, and categorical status that drive row coloring in
  payment history and the compliance report.

TWO THRESHOLD POLICIES:
  There are deliberately two independent threshold sets:

  1. AuditThresholds - retrospective compliance classification
     (exact < 0.01%, acceptable <= 5%, warning <= 15%, alert > 15%).
  2. EntryGuardrail - the payment-form sanity check, which only warns
     when the entered amount deviates more than 50% from expected.

  One is an audit policy, the other a data-entry guard-rail. They are
  configured separately and must never be unified.

DEGENERATE CASES:
  A nil or zero expected fee yields StatusUnknown with nil amount and
  percent. Never a division by zero, never an error. A period with no
  payment at all is classified by the compliance engine as
  StatusNoPayment and never passes through Classify.
*/
package billing

import "github.com/shopspring/decimal"

// =============================================================================
// VARIANCE STATUS
// =============================================================================

type VarianceStatus string

const (
	StatusExact      VarianceStatus = "exact"
	StatusAcceptable VarianceStatus = "acceptable"
	StatusWarning    VarianceStatus = "warning"
	StatusAlert      VarianceStatus = "alert"
	StatusUnknown    VarianceStatus = "unknown"    // expected fee nil or zero
	StatusNoPayment  VarianceStatus = "no_payment" // set by the compliance engine only
)

// Variance is the classification triple for one payment.
// Amount and Percent are nil when the status is unknown.
type Variance struct {
	Amount  *decimal.Decimal // actual - expected (signed)
	Percent *decimal.Decimal // abs(amount) / expected * 100
	Status  VarianceStatus
}

// =============================================================================
// THRESHOLDS - Audit classification policy
// =============================================================================

// Thresholds defines the cut-offs (in percent of expected fee) for the
// variance categories. Applied to the absolute variance percentage.
type Thresholds struct {
	Exact      decimal.Decimal // below this: exact
	Acceptable decimal.Decimal // up to and including this: acceptable
	Warning    decimal.Decimal // up to and including this: warning; above: alert
}

// AuditThresholds is the compliance-report policy: under a basis point
// counts as exact, within 5% is acceptable, within 15% warrants review,
// beyond that is an alert.
func AuditThresholds() Thresholds {
	return Thresholds{
		Exact:      decimal.NewFromFloat(0.01),
		Acceptable: decimal.NewFromInt(5),
		Warning:    decimal.NewFromInt(15),
	}
}

// Classify compares an actual fee to an expected fee.
//
// Nil or zero expected fee returns StatusUnknown with nil amount and
// percent - the deliberate degenerate-case policy, not an error.
func (t Thresholds) Classify(actual decimal.Decimal, expected *decimal.Decimal) Variance {
	if expected == nil || expected.IsZero() {
		return Variance{Status: StatusUnknown}
	}

	amount := actual.Sub(*expected)
	percent := amount.Abs().Div(expected.Abs()).Mul(decimal.NewFromInt(100))

	status := StatusAlert
	switch {
	case percent.LessThan(t.Exact):
		status = StatusExact
	case percent.LessThanOrEqual(t.Acceptable):
		status = StatusAcceptable
	case percent.LessThanOrEqual(t.Warning):
		status = StatusWarning
	}

	return Variance{Amount: &amount, Percent: &percent, Status: status}
}

// Classify applies the default audit thresholds.
func Classify(actual decimal.Decimal, expected *decimal.Decimal) Variance {
	return AuditThresholds().Classify(actual, expected)
}

// =============================================================================
// ENTRY GUARDRAIL - Payment-form sanity check
// =============================================================================

// EntryGuardrail is the data-entry policy: it flags amounts that look
// like typos, not amounts that merely miss the audit thresholds.
type EntryGuardrail struct {
	WarnPercent decimal.Decimal
}

// DefaultEntryGuardrail warns at a 50% deviation from the expected fee.
func DefaultEntryGuardrail() EntryGuardrail {
	return EntryGuardrail{WarnPercent: decimal.NewFromInt(50)}
}

// Check reports whether the entered amount deviates enough from the
// expected fee to warrant a confirmation prompt. With no computable
// expected fee there is nothing to check against.
func (g EntryGuardrail) Check(entered decimal.Decimal, expected *decimal.Decimal) bool {
	if expected == nil || expected.IsZero() {
		return false
	}
	deviation := entered.Sub(*expected).Abs().Div(expected.Abs()).Mul(decimal.NewFromInt(100))
	return deviation.GreaterThan(g.WarnPercent)
}
