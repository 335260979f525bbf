package tax_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tioga/tax-ledger/tax"
)

// =============================================================================
// TRANSITION TABLE TESTS
// =============================================================================

func TestNextStatus_PaymentSettlesBalance(t *testing.T) {
	next, ok := tax.NextStatus(tax.StatusUnpaid, tax.TxPayment, true)
	assert.True(t, ok)
	assert.Equal(t, tax.StatusPaid, next)

	next, ok = tax.NextStatus(tax.StatusPartial, tax.TxPayment, true)
	assert.True(t, ok)
	assert.Equal(t, tax.StatusPaid, next)
}

func TestNextStatus_PaymentLeavesBalance(t *testing.T) {
	next, ok := tax.NextStatus(tax.StatusUnpaid, tax.TxPayment, false)
	assert.True(t, ok)
	assert.Equal(t, tax.StatusPartial, next)

	next, ok = tax.NextStatus(tax.StatusPartial, tax.TxPayment, false)
	assert.True(t, ok)
	assert.Equal(t, tax.StatusPartial, next)
}

func TestNextStatus_PaymentOnSettledParcel_Refused(t *testing.T) {
	// A payment against a parcel already PAID, RETURNED, or EXONERATED
	// has no defined transition; the store must refuse the append.

	for _, from := range []tax.ParcelStatus{tax.StatusPaid, tax.StatusReturned, tax.StatusExonerated} {
		_, ok := tax.NextStatus(from, tax.TxPayment, true)
		assert.False(t, ok, "payment from %s must be refused", from)
	}
}

func TestNextStatus_RejectedPayment_NeverChangesStatus(t *testing.T) {
	// Rejected payments are evidence, not cash: every status accepts one
	// and keeps its value.

	all := []tax.ParcelStatus{
		tax.StatusUnpaid, tax.StatusPartial, tax.StatusPaid,
		tax.StatusReturned, tax.StatusExonerated,
	}
	for _, from := range all {
		next, ok := tax.NextStatus(from, tax.TxRejectedPayment, false)
		assert.True(t, ok, "rejected payment from %s", from)
		assert.Equal(t, from, next)
	}
}

func TestNextStatus_NSFFromAnyState_ResetsToUnpaid(t *testing.T) {
	all := []tax.ParcelStatus{
		tax.StatusUnpaid, tax.StatusPartial, tax.StatusPaid,
		tax.StatusReturned, tax.StatusExonerated,
	}
	for _, from := range all {
		next, ok := tax.NextStatus(from, tax.TxNSFReversal, false)
		assert.True(t, ok, "NSF reversal from %s", from)
		assert.Equal(t, tax.StatusUnpaid, next)
	}
}

func TestNextStatus_ReturnAndExoneration_OnlyFromOpenStates(t *testing.T) {
	for _, from := range []tax.ParcelStatus{tax.StatusUnpaid, tax.StatusPartial} {
		next, ok := tax.NextStatus(from, tax.TxReturn, false)
		assert.True(t, ok)
		assert.Equal(t, tax.StatusReturned, next)

		next, ok = tax.NextStatus(from, tax.TxExoneration, false)
		assert.True(t, ok)
		assert.Equal(t, tax.StatusExonerated, next)
	}

	for _, from := range []tax.ParcelStatus{tax.StatusPaid, tax.StatusReturned, tax.StatusExonerated} {
		_, ok := tax.NextStatus(from, tax.TxReturn, false)
		assert.False(t, ok, "return from %s must be refused", from)

		_, ok = tax.NextStatus(from, tax.TxExoneration, false)
		assert.False(t, ok, "exoneration from %s must be refused", from)
	}
}

// =============================================================================
// SETTLED THRESHOLD TESTS
// =============================================================================

func TestSettled_Threshold(t *testing.T) {
	// Balances at or below 0.009 count as settled; one cent does not.

	assert.True(t, tax.Settled(tax.Dollars("0")))
	assert.True(t, tax.Settled(tax.Dollars("0.009")))
	assert.True(t, tax.Settled(tax.Dollars("-0.50")))
	assert.False(t, tax.Settled(tax.Dollars("0.01")))
	assert.False(t, tax.Settled(tax.Dollars("150.00")))
}
