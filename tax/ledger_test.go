package tax_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rs/zerolog"
	"github.com/tioga/tax-ledger/store/sqlite"
	"github.com/tioga/tax-ledger/tax"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) (*tax.Ledger, *sqlite.Store) {
	store, err := sqlite.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ledger := tax.NewLedger(store, newTestValidator())
	return ledger, store
}

func seed(t *testing.T, store *sqlite.Store, p tax.Parcel) {
	_, err := store.ImportParcels(context.Background(), []tax.Parcel{p})
	require.NoError(t, err)
}

// =============================================================================
// RECORD PAYMENT
// =============================================================================

func TestLedger_RecordPayment_AcceptedFull(t *testing.T) {
	// GIVEN: An UNPAID parcel
	// WHEN: The exact discount amount arrives in the discount window
	// THEN: PAYMENT row with zero balance; parcel PAID

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seed(t, store, testParcel())

	res, id, err := ledger.RecordPayment(ctx, tax.PaymentRequest{
		ParcelID:    "P-010",
		Amount:      tax.Dollars("441.00"),
		Postmark:    date(2025, time.April, 20),
		CheckNumber: "1001",
	})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, tax.AcceptedFull, res.Code)

	got, err := store.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, tax.TxPayment, got.Type)
	assert.Equal(t, tax.MethodCheck, got.Method)
	assert.Equal(t, tax.PeriodDiscount, got.Period)
	assert.True(t, got.BalanceRemaining.IsZero())

	p, err := store.GetParcel(ctx, "P-010")
	require.NoError(t, err)
	assert.Equal(t, tax.StatusPaid, p.Status)
}

func TestLedger_RecordPayment_Rejected_RecordedAsEvidence(t *testing.T) {
	// GIVEN: An UNPAID parcel
	// WHEN: A penny-short payment arrives
	// THEN: A REJECTED_PAYMENT row is persisted, no error, status untouched

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seed(t, store, testParcel())

	res, id, err := ledger.RecordPayment(ctx, tax.PaymentRequest{
		ParcelID:    "P-010",
		Amount:      tax.Dollars("440.99"),
		Postmark:    date(2025, time.April, 20),
		CheckNumber: "1001",
	})
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, tax.RejectedUnder, res.Code)

	got, err := store.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, tax.TxRejectedPayment, got.Type)
	assert.True(t, tax.SameAmount(tax.Dollars("450.00"), got.BalanceRemaining),
		"rejected attempt reports the full face amount still owed")
	assert.Contains(t, got.Notes, "Rejected:")
	assert.Contains(t, got.Notes, "REJECTED_UNDER")

	p, err := store.GetParcel(ctx, "P-010")
	require.NoError(t, err)
	assert.Equal(t, tax.StatusUnpaid, p.Status)
}

func TestLedger_RecordPayment_CashWhenNoCheckNumber(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seed(t, store, testParcel())

	_, id, err := ledger.RecordPayment(ctx, tax.PaymentRequest{
		ParcelID: "P-010",
		Amount:   tax.Dollars("441.00"),
		Postmark: date(2025, time.April, 20),
	})
	require.NoError(t, err)

	got, err := store.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, tax.MethodCash, got.Method)
}

func TestLedger_RecordPayment_InstallmentSequence(t *testing.T) {
	// GIVEN: An installment parcel with face 450.00
	// WHEN: Three exact thirds arrive
	// THEN: Balances step 300 -> 150 -> 0 and status PARTIAL -> PAID

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	p := testParcel()
	p.Installment = true
	seed(t, store, p)

	balances := []string{"300.00", "150.00", "0.00"}
	statuses := []tax.ParcelStatus{tax.StatusPartial, tax.StatusPartial, tax.StatusPaid}

	for i := 0; i < 3; i++ {
		res, id, err := ledger.RecordPayment(ctx, tax.PaymentRequest{
			ParcelID:       "P-010",
			Amount:         tax.Dollars("150.00"),
			Postmark:       date(2025, time.May, 10+i),
			CheckNumber:    "2001",
			InstallmentNum: i + 1,
		})
		require.NoError(t, err)
		require.True(t, res.Accepted, "installment %d", i+1)

		got, err := store.GetTransaction(ctx, id)
		require.NoError(t, err)
		assert.True(t, tax.SameAmount(tax.Dollars(balances[i]), got.BalanceRemaining),
			"installment %d balance", i+1)

		parcel, err := store.GetParcel(ctx, "P-010")
		require.NoError(t, err)
		assert.Equal(t, statuses[i], parcel.Status, "installment %d status", i+1)
	}
}

func TestLedger_RecordPayment_InstallmentAfterNSF_BalanceNetsOut(t *testing.T) {
	// A bounced first installment must not count toward the balance of
	// the next one.

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	p := testParcel()
	p.Installment = true
	seed(t, store, p)

	_, firstID, err := ledger.RecordPayment(ctx, tax.PaymentRequest{
		ParcelID:       "P-010",
		Amount:         tax.Dollars("150.00"),
		Postmark:       date(2025, time.May, 10),
		CheckNumber:    "2001",
		InstallmentNum: 1,
	})
	require.NoError(t, err)

	_, err = store.ReverseNSF(ctx, firstID, date(2025, time.May, 20))
	require.NoError(t, err)

	_, retryID, err := ledger.RecordPayment(ctx, tax.PaymentRequest{
		ParcelID:       "P-010",
		Amount:         tax.Dollars("150.00"),
		Postmark:       date(2025, time.June, 1),
		CheckNumber:    "2002",
		InstallmentNum: 1,
	})
	require.NoError(t, err)

	got, err := store.GetTransaction(ctx, retryID)
	require.NoError(t, err)
	assert.True(t, tax.SameAmount(tax.Dollars("300.00"), got.BalanceRemaining),
		"retry after NSF owes the same as a first installment")
}

// historyFailStore delegates to a working store but fails every
// transaction-history read.
type historyFailStore struct {
	tax.Store
}

func (historyFailStore) TransactionsForParcel(context.Context, tax.ParcelID) ([]tax.Transaction, error) {
	return nil, fmt.Errorf("%w: history read failed", tax.ErrIntegrity)
}

func TestLedger_RecordPayment_HistoryReadFailureAborts(t *testing.T) {
	// GIVEN: An installment parcel with two installments already paid
	// WHEN: The history read fails while recording the third
	// THEN: The payment is aborted, not persisted with a stale balance

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	p := testParcel()
	p.Installment = true
	seed(t, store, p)

	for i := 0; i < 2; i++ {
		_, _, err := ledger.RecordPayment(ctx, tax.PaymentRequest{
			ParcelID:       "P-010",
			Amount:         tax.Dollars("150.00"),
			Postmark:       date(2025, time.May, 10+i),
			CheckNumber:    "2001",
			InstallmentNum: i + 1,
		})
		require.NoError(t, err)
	}

	failing := tax.NewLedger(historyFailStore{Store: store}, newTestValidator())
	_, _, err := failing.RecordPayment(ctx, tax.PaymentRequest{
		ParcelID:       "P-010",
		Amount:         tax.Dollars("150.00"),
		Postmark:       date(2025, time.May, 12),
		CheckNumber:    "2001",
		InstallmentNum: 3,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, tax.ErrIntegrity)

	// Nothing new was written: the two prior installments stand alone.
	txs, err := store.TransactionsForParcel(ctx, "P-010")
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestLedger_RecordPayment_UnknownParcel(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, _, err := ledger.RecordPayment(context.Background(), tax.PaymentRequest{
		ParcelID: "P-404",
		Amount:   tax.Dollars("441.00"),
		Postmark: date(2025, time.April, 20),
	})
	assert.True(t, tax.IsNotFound(err))
}

// =============================================================================
// EXONERATION AND RETURN
// =============================================================================

func TestLedger_Exonerate(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seed(t, store, testParcel())

	id, err := ledger.Exonerate(ctx, "P-010", tax.Dollars("450.00"),
		date(2025, time.September, 1), "County board resolution 2025-17")
	require.NoError(t, err)

	got, err := store.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, tax.TxExoneration, got.Type)
	assert.Equal(t, tax.MethodNone, got.Method)
	assert.Contains(t, got.Notes, "resolution")

	p, err := store.GetParcel(ctx, "P-010")
	require.NoError(t, err)
	assert.Equal(t, tax.StatusExonerated, p.Status)
}

func TestLedger_RecordReturn(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seed(t, store, testParcel())

	id, err := ledger.RecordReturn(ctx, "P-010", date(2026, time.January, 15), "annual return filing")
	require.NoError(t, err)

	got, err := store.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, tax.TxReturn, got.Type)
	assert.True(t, got.Amount.IsZero(), "a return moves no cash")

	p, err := store.GetParcel(ctx, "P-010")
	require.NoError(t, err)
	assert.Equal(t, tax.StatusReturned, p.Status)
}

func TestLedger_Exonerate_PaidParcelRefused(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seed(t, store, testParcel())

	_, _, err := ledger.RecordPayment(ctx, tax.PaymentRequest{
		ParcelID: "P-010",
		Amount:   tax.Dollars("441.00"),
		Postmark: date(2025, time.April, 20),
	})
	require.NoError(t, err)

	_, err = ledger.Exonerate(ctx, "P-010", tax.Dollars("450.00"),
		date(2025, time.September, 1), "late request")
	require.Error(t, err)

	var te *tax.TransitionError
	assert.ErrorAs(t, err, &te)
}
