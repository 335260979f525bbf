package tax

import "github.com/shopspring/decimal"

// =============================================================================
// PARCEL STATUS STATE MACHINE
// =============================================================================
//
// The parcel status is derived state: it changes ONLY as a consequence of
// ledger transactions, through the explicit transition table below. Any
// (status, transaction type) pair absent from the table is a logic error
// and is rejected rather than applied silently.
//
// States:     UNPAID, PARTIAL, PAID, RETURNED, EXONERATED
// Initial:    UNPAID at parcel creation
// Transitions:
//   UNPAID/PARTIAL --PAYMENT-->      PAID (balance settled) or PARTIAL
//   UNPAID/PARTIAL --RETURN-->       RETURNED
//   UNPAID/PARTIAL --EXONERATION-->  EXONERATED
//   any state      --NSF_REVERSAL--> UNPAID
//   REJECTED_PAYMENT never moves status.

// statusOutcome splits the PAYMENT row of the table on whether the
// payment cleared the remaining balance.
type statusOutcome struct {
	settled ParcelStatus
	open    ParcelStatus
}

var paymentOutcomes = map[ParcelStatus]statusOutcome{
	StatusUnpaid:  {settled: StatusPaid, open: StatusPartial},
	StatusPartial: {settled: StatusPaid, open: StatusPartial},
}

var transitions = map[ParcelStatus]map[TransactionType]ParcelStatus{
	StatusUnpaid: {
		TxReturn:      StatusReturned,
		TxExoneration: StatusExonerated,
		TxNSFReversal: StatusUnpaid,
	},
	StatusPartial: {
		TxReturn:      StatusReturned,
		TxExoneration: StatusExonerated,
		TxNSFReversal: StatusUnpaid,
	},
	StatusPaid: {
		TxNSFReversal: StatusUnpaid,
	},
	StatusReturned: {
		TxNSFReversal: StatusUnpaid,
	},
	StatusExonerated: {
		TxNSFReversal: StatusUnpaid,
	},
}

// NextStatus returns the parcel status that results from appending a
// transaction of the given type while the parcel holds balanceRemaining.
// The bool reports whether the transition is defined; REJECTED_PAYMENT
// returns the current status unchanged (defined, no movement).
func NextStatus(current ParcelStatus, txType TransactionType, balanceSettled bool) (ParcelStatus, bool) {
	if txType == TxRejectedPayment {
		return current, true
	}

	if txType == TxPayment {
		outcome, ok := paymentOutcomes[current]
		if !ok {
			return current, false
		}
		if balanceSettled {
			return outcome.settled, true
		}
		return outcome.open, true
	}

	next, ok := transitions[current][txType]
	return next, ok
}

// Settled reports whether a remaining balance counts as paid in full
// (at or below the $0.009 threshold).
func Settled(balanceRemaining decimal.Decimal) bool {
	return balanceRemaining.LessThanOrEqual(paidThreshold)
}
