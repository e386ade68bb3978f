package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fee-engine/billing"
	"github.com/warp/fee-engine/store"
	"github.com/warp/fee-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	d := dec(t, s)
	return &d
}

func seedClient(t *testing.T, s *sqlite.Store, id string) billing.Client {
	c := billing.Client{
		ID:          billing.ClientID(id),
		DisplayName: "AirSea America",
		FullName:    "AirSea America Inc.",
	}
	require.NoError(t, s.SaveClient(context.Background(), c))
	return c
}

func seedContract(t *testing.T, s *sqlite.Store, clientID, contractID string, start time.Time) billing.Contract {
	c := billing.Contract{
		ID:              billing.ContractID(contractID),
		ClientID:        billing.ClientID(clientID),
		ContractNumber:  "TEST-1000",
		ProviderName:    "Voya",
		FeeType:         billing.FeePercentage,
		PercentRate:     decPtr(t, "0.0007"),
		PaymentSchedule: billing.Monthly,
		StartDate:       start,
	}
	require.NoError(t, s.AppendContract(context.Background(), c))
	return c
}

// =============================================================================
// CLIENTS
// =============================================================================

func TestClients_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "client-1")

	got, err := s.GetClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "AirSea America", got.DisplayName)
	assert.Equal(t, "AirSea America Inc.", got.FullName)

	_, err = s.GetClient(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrClientNotFound)
}

func TestClients_ListSortedByDisplayName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, c := range []billing.Client{
		{ID: "c-1", DisplayName: "XFire"},
		{ID: "c-2", DisplayName: "Amplero"},
		{ID: "c-3", DisplayName: "Mobile Focused"},
	} {
		require.NoError(t, s.SaveClient(ctx, c))
	}

	clients, err := s.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 3)
	assert.Equal(t, "Amplero", clients[0].DisplayName)
	assert.Equal(t, "XFire", clients[2].DisplayName)
}

// =============================================================================
// CONTRACT SUPERSESSION
// =============================================================================

func TestContracts_RoundTripRates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "client-1")
	seedContract(t, s, "client-1", "contract-1",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	history, err := s.ContractHistory(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, history, 1)

	got := history[0]
	require.NotNil(t, got.PercentRate)
	// Decimal must survive the TEXT column bit-for-bit.
	assert.True(t, got.PercentRate.Equal(dec(t, "0.0007")), "rate changed in round trip: %v", got.PercentRate)
	assert.Nil(t, got.FlatRate)
	assert.True(t, got.IsActive)
}

func TestContracts_SupersessionDeactivatesOld(t *testing.T) {
	// GIVEN: A client with an active contract
	// WHEN: A new contract with a later start date is appended
	// THEN: The old row stays in history but only the new one is active

	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "client-1")
	seedContract(t, s, "client-1", "contract-old",
		time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC))

	newer := billing.Contract{
		ID:              "contract-new",
		ClientID:        "client-1",
		FeeType:         billing.FeeFlat,
		FlatRate:        decPtr(t, "666.66"),
		PaymentSchedule: billing.Quarterly,
		StartDate:       time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.AppendContract(ctx, newer))

	history, err := s.ContractHistory(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].IsActive, "superseded contract should be deactivated")
	assert.True(t, history[1].IsActive)
}

func TestContracts_ActiveAsOfIsAQueryOverHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "client-1")
	seedContract(t, s, "client-1", "contract-old",
		time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC))

	newer := billing.Contract{
		ID:              "contract-new",
		ClientID:        "client-1",
		FeeType:         billing.FeeFlat,
		FlatRate:        decPtr(t, "500"),
		PaymentSchedule: billing.Monthly,
		StartDate:       time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.AppendContract(ctx, newer))

	// A date between the two start dates resolves to the old terms:
	// historical payments keep the rate active at their time.
	mid, err := s.ActiveContract(ctx, "client-1", time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, billing.ContractID("contract-old"), mid.ID)

	now, err := s.ActiveContract(ctx, "client-1", time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, billing.ContractID("contract-new"), now.ID)

	// Before any contract started: nothing is active.
	_, err = s.ActiveContract(ctx, "client-1", time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, store.ErrContractNotFound)
}

func TestContracts_MalformedRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "client-1")

	bad := billing.Contract{
		ID:              "contract-bad",
		ClientID:        "client-1",
		FeeType:         billing.FeePercentage, // no rate
		PaymentSchedule: billing.Monthly,
		StartDate:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	err := s.AppendContract(ctx, bad)
	assert.ErrorIs(t, err, billing.ErrMalformedContract)
}

func TestContracts_UnknownClientRejected(t *testing.T) {
	s := newTestStore(t)

	c := billing.Contract{
		ID:              "contract-1",
		ClientID:        "nobody",
		FeeType:         billing.FeeFlat,
		FlatRate:        decPtr(t, "500"),
		PaymentSchedule: billing.Monthly,
		StartDate:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	err := s.AppendContract(context.Background(), c)
	assert.ErrorIs(t, err, store.ErrClientNotFound)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func testPayment(t *testing.T, id string, period int) billing.Payment {
	return billing.Payment{
		ID:                billing.PaymentID(id),
		ContractID:        "contract-1",
		ClientID:          "client-1",
		ReceivedDate:      time.Date(2024, time.Month(period), 20, 0, 0, 0, 0, time.UTC),
		TotalAssets:       decPtr(t, "1400234.25"),
		ActualFee:         dec(t, "930.09"),
		AppliedPeriodType: billing.Monthly,
		AppliedPeriod:     period,
		AppliedYear:       2024,
	}
}

func TestPayments_RecordAndFetch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "client-1")
	seedContract(t, s, "client-1", "contract-1",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	p := testPayment(t, "pay-1", 3)
	require.NoError(t, s.RecordPayment(ctx, p))

	got, err := s.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, got.ActualFee.Equal(dec(t, "930.09")))
	require.NotNil(t, got.TotalAssets)
	assert.True(t, got.TotalAssets.Equal(dec(t, "1400234.25")))
	assert.Nil(t, got.ExpectedFee)
	assert.Equal(t, 3, got.AppliedPeriod)
	assert.Equal(t, 2024, got.AppliedYear)
}

func TestPayments_DuplicateIDRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "client-1")
	seedContract(t, s, "client-1", "contract-1",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, s.RecordPayment(ctx, testPayment(t, "pay-1", 3)))
	err := s.RecordPayment(ctx, testPayment(t, "pay-1", 4))
	assert.ErrorIs(t, err, store.ErrDuplicateID)
}

func TestPayments_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "client-1")
	seedContract(t, s, "client-1", "contract-1",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	for _, m := range []int{2, 5, 3} {
		require.NoError(t, s.RecordPayment(ctx, testPayment(t, "pay-"+string(rune('0'+m)), m)))
	}

	payments, err := s.Payments(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, payments, 3)
	assert.Equal(t, 5, payments[0].AppliedPeriod, "most recently received first")
	assert.Equal(t, 2, payments[2].AppliedPeriod)
}

func TestPayments_UpdateAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "client-1")
	seedContract(t, s, "client-1", "contract-1",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.RecordPayment(ctx, testPayment(t, "pay-1", 3)))

	// Correct the amount and the applied period.
	edited := testPayment(t, "pay-1", 4)
	edited.ActualFee = dec(t, "980.16")
	require.NoError(t, s.UpdatePayment(ctx, edited))

	got, err := s.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, got.ActualFee.Equal(dec(t, "980.16")))
	assert.Equal(t, 4, got.AppliedPeriod)

	require.NoError(t, s.DeletePayment(ctx, "pay-1"))
	_, err = s.GetPayment(ctx, "pay-1")
	assert.ErrorIs(t, err, store.ErrPaymentNotFound)

	assert.ErrorIs(t, s.DeletePayment(ctx, "pay-1"), store.ErrPaymentNotFound)
	assert.ErrorIs(t, s.UpdatePayment(ctx, edited), store.ErrPaymentNotFound)
}

func TestPayments_NegativeFeeRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s, "client-1")
	seedContract(t, s, "client-1", "contract-1",
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	bad := testPayment(t, "pay-bad", 3)
	bad.ActualFee = dec(t, "-10")
	assert.ErrorIs(t, s.RecordPayment(ctx, bad), billing.ErrInvalidFee)
}
