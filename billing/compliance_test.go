package billing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/fee-engine/billing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func monthlyPayment(id string, period, year int, actual string, aum string) billing.Payment {
	p := billing.Payment{
		ID:                billing.PaymentID(id),
		ContractID:        "contract-1",
		ClientID:          "client-1",
		ReceivedDate:      time.Date(year, time.Month(period), 20, 0, 0, 0, 0, time.UTC),
		ActualFee:         dec(actual),
		AppliedPeriodType: billing.Monthly,
		AppliedPeriod:     period,
		AppliedYear:       year,
	}
	if aum != "" {
		p.TotalAssets = decPtr(aum)
	}
	return p
}

// =============================================================================
// LEDGER CONSTRUCTION
// =============================================================================

func TestBuildLedger_FullYear_OneMissingPeriod(t *testing.T) {
	// GIVEN: Monthly contract starting 2024-01-01, evaluated 2025-01-15
	//        (ledger ends at December 2024), payments for Jan-Nov only
	// THEN: 12 periods, 11 paid, 1 missing, ~91.67% compliance

	c := flatContract("500", billing.Monthly)
	c.StartDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	var payments []billing.Payment
	for m := 1; m <= 11; m++ {
		payments = append(payments, monthlyPayment("pay-"+string(rune('a'+m-1)), m, 2024, "500", ""))
	}

	asOf := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	ledger, err := billing.BuildLedger(c, payments, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := ledger.Stats
	if s.TotalPeriods != 12 || s.PaidPeriods != 11 || s.MissingPeriods != 1 {
		t.Errorf("expected 12/11/1, got %d/%d/%d", s.TotalPeriods, s.PaidPeriods, s.MissingPeriods)
	}
	if s.ComplianceRate.Sub(dec("91.67")).Abs().GreaterThan(dec("0.01")) {
		t.Errorf("expected rate near 91.67, got %v", s.ComplianceRate)
	}

	// December 2024 is the unpaid row; a flat contract still knows the
	// expected fee for it.
	last := ledger.Records[len(ledger.Records)-1]
	if last.Paid() {
		t.Error("December 2024 should be unpaid")
	}
	if last.VarianceStatus != billing.StatusNoPayment {
		t.Errorf("expected no_payment, got %s", last.VarianceStatus)
	}
	if last.ExpectedFee == nil || !last.ExpectedFee.Equal(dec("500")) {
		t.Errorf("flat contract: expected fee 500 on unpaid period, got %v", last.ExpectedFee)
	}
	if last.ActualFee != nil || last.PaymentID != nil {
		t.Error("unpaid period must have nil actual fee and payment id")
	}
}

func TestBuildLedger_PercentageContract_VariancePerPayment(t *testing.T) {
	// Percentage contract: expected fee comes from the AUM recorded on
	// each payment; payments without AUM classify as unknown.

	c := percentageContract("0.0007", billing.Monthly)
	c.StartDate = time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	payments := []billing.Payment{
		monthlyPayment("pay-1", 4, 2025, "700", "1000000"),    // exact
		monthlyPayment("pay-2", 5, 2025, "930.09", "1400234.25"), // ~5.11% off -> warning
		monthlyPayment("pay-3", 6, 2025, "650", ""),           // no AUM -> unknown
	}

	asOf := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)
	ledger, err := billing.BuildLedger(c, payments, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ledger.Records) != 3 {
		t.Fatalf("expected 3 records (Apr-Jun), got %d", len(ledger.Records))
	}

	wantStatuses := []billing.VarianceStatus{billing.StatusExact, billing.StatusWarning, billing.StatusUnknown}
	for i, want := range wantStatuses {
		if got := ledger.Records[i].VarianceStatus; got != want {
			t.Errorf("record %d (%s): expected %s, got %s", i, ledger.Records[i].PeriodDisplay, want, got)
		}
	}

	// Unknown rows contribute no expected fee or variance to the totals.
	if !ledger.Stats.TotalPaid.Equal(dec("2280.09")) {
		t.Errorf("total paid: expected 2280.09, got %v", ledger.Stats.TotalPaid)
	}
}

func TestBuildLedger_DuplicatePayments_MostRecentCanonical(t *testing.T) {
	// GIVEN: Two payments applied to June 2025
	// THEN: One ledger row, canonical = most recently received

	c := flatContract("500", billing.Monthly)
	c.StartDate = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	first := monthlyPayment("pay-early", 6, 2025, "480", "")
	first.ReceivedDate = time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	second := monthlyPayment("pay-late", 6, 2025, "500", "")
	second.ReceivedDate = time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)

	asOf := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)
	ledger, err := billing.BuildLedger(c, []billing.Payment{first, second}, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ledger.Records) != 1 {
		t.Fatalf("expected a single ledger row, got %d", len(ledger.Records))
	}
	rec := ledger.Records[0]
	if rec.PaymentID == nil || *rec.PaymentID != "pay-late" {
		t.Errorf("expected canonical payment pay-late, got %v", rec.PaymentID)
	}
	if ledger.Stats.PaidPeriods != 1 {
		t.Errorf("duplicate payments must not double-count paid periods: got %d", ledger.Stats.PaidPeriods)
	}
}

func TestBuildLedger_EmptyHistory_AllNoPayment(t *testing.T) {
	c := percentageContract("0.0007", billing.Monthly)
	c.StartDate = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	asOf := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)
	ledger, err := billing.BuildLedger(c, nil, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ledger.Stats.PaidPeriods != 0 || !ledger.Stats.ComplianceRate.IsZero() {
		t.Errorf("expected zero paid and 0%% rate, got %d / %v",
			ledger.Stats.PaidPeriods, ledger.Stats.ComplianceRate)
	}
	for _, r := range ledger.Records {
		if r.VarianceStatus != billing.StatusNoPayment {
			t.Errorf("%s: expected no_payment, got %s", r.PeriodDisplay, r.VarianceStatus)
		}
	}
}

func TestBuildLedger_FutureStartDate_EmptyLedgerValid(t *testing.T) {
	// Zero obligations is a valid state for a brand-new contract.
	c := flatContract("500", billing.Monthly)
	c.StartDate = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	asOf := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)
	ledger, err := billing.BuildLedger(c, nil, asOf)
	if err != nil {
		t.Fatalf("expected valid empty ledger, got error: %v", err)
	}
	if len(ledger.Records) != 0 || ledger.Stats.TotalPeriods != 0 {
		t.Errorf("expected empty ledger, got %d records", len(ledger.Records))
	}
	if !ledger.Stats.ComplianceRate.IsZero() {
		t.Errorf("empty ledger: expected 0 rate, got %v", ledger.Stats.ComplianceRate)
	}
}

func TestBuildLedger_MissingStartDate_Fatal(t *testing.T) {
	c := flatContract("500", billing.Monthly)
	c.StartDate = time.Time{}

	_, err := billing.BuildLedger(c, nil, time.Now())
	if !errors.Is(err, billing.ErrMissingStartDate) {
		t.Errorf("expected ErrMissingStartDate, got %v", err)
	}
}

func TestBuildLedger_NegativeActualFee_Rejected(t *testing.T) {
	c := flatContract("500", billing.Monthly)
	c.StartDate = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	bad := monthlyPayment("pay-bad", 2, 2025, "0", "")
	bad.ActualFee = dec("-10")

	_, err := billing.BuildLedger(c, []billing.Payment{bad}, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, billing.ErrInvalidFee) {
		t.Errorf("expected ErrInvalidFee, got %v", err)
	}
}

func TestBuildLedger_IgnoresOtherSchedulePayments(t *testing.T) {
	// A quarterly payment never matches a monthly obligation.
	c := flatContract("500", billing.Monthly)
	c.StartDate = time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)

	stray := billing.Payment{
		ID:                "pay-q",
		ReceivedDate:      time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		ActualFee:         dec("1500"),
		AppliedPeriodType: billing.Quarterly,
		AppliedPeriod:     2,
		AppliedYear:       2025,
	}

	asOf := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)
	ledger, err := billing.BuildLedger(c, []billing.Payment{stray}, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.Stats.PaidPeriods != 0 {
		t.Errorf("quarterly payment must not discharge monthly periods: got %d paid", ledger.Stats.PaidPeriods)
	}
}

// =============================================================================
// INVARIANTS
// =============================================================================

func TestBuildLedger_ComplianceRateBounds(t *testing.T) {
	// 0 <= rate <= 100 and paid + missing == total, across a spread of
	// histories.

	c := flatContract("500", billing.Monthly)
	c.StartDate = time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	asOf := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)

	for paidThrough := 0; paidThrough <= 12; paidThrough += 3 {
		var payments []billing.Payment
		for m := 1; m <= paidThrough; m++ {
			payments = append(payments, monthlyPayment("pay", m, 2024, "500", ""))
		}

		ledger, err := billing.BuildLedger(c, payments, asOf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		s := ledger.Stats
		if s.PaidPeriods+s.MissingPeriods != s.TotalPeriods {
			t.Errorf("paid %d + missing %d != total %d", s.PaidPeriods, s.MissingPeriods, s.TotalPeriods)
		}
		if s.ComplianceRate.IsNegative() || s.ComplianceRate.GreaterThan(dec("100")) {
			t.Errorf("rate out of bounds: %v", s.ComplianceRate)
		}
	}
}

// =============================================================================
// YEAR GROUPING
// =============================================================================

func TestByYear_NewestFirstWithPerYearStats(t *testing.T) {
	// GIVEN: A ledger spanning 2023 into 2024
	// THEN: Year groups descending, periods within each year descending,
	//       each group carrying its own stats slice

	c := flatContract("500", billing.Monthly)
	c.StartDate = time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC)

	payments := []billing.Payment{
		monthlyPayment("pay-1", 10, 2023, "500", ""),
		monthlyPayment("pay-2", 11, 2023, "500", ""),
		monthlyPayment("pay-3", 1, 2024, "500", ""),
	}

	asOf := time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC)
	ledger, err := billing.BuildLedger(c, payments, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	groups := ledger.ByYear()
	if len(groups) != 2 {
		t.Fatalf("expected 2 year groups, got %d", len(groups))
	}
	if groups[0].Year != 2024 || groups[1].Year != 2023 {
		t.Errorf("expected years [2024 2023], got [%d %d]", groups[0].Year, groups[1].Year)
	}

	// 2023: Oct, Nov, Dec obligations; Dec unpaid.
	y2023 := groups[1]
	if y2023.Stats.TotalPeriods != 3 || y2023.Stats.PaidPeriods != 2 {
		t.Errorf("2023: expected 3 total / 2 paid, got %d / %d",
			y2023.Stats.TotalPeriods, y2023.Stats.PaidPeriods)
	}

	// Periods within a year are newest first.
	y2024 := groups[0]
	for i := 1; i < len(y2024.Records); i++ {
		if !y2024.Records[i].Period.Before(y2024.Records[i-1].Period) {
			t.Errorf("2024 records not descending at %d", i)
		}
	}

	// Group stats must sum back to the overall stats.
	totalPaid := groups[0].Stats.PaidPeriods + groups[1].Stats.PaidPeriods
	if totalPaid != ledger.Stats.PaidPeriods {
		t.Errorf("group paid %d != overall paid %d", totalPaid, ledger.Stats.PaidPeriods)
	}
}
