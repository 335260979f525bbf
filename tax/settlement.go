/*
settlement.go - Charges-vs-credits reconciliation

PURPOSE:
  The settlement is the system's core correctness property: everything the
  collector was charged with must be accounted for as cash, discounts,
  exonerations, or returns. Computed over the FULL ledger and parcel
  table, never incrementally, so an out-of-band data edit shows up as an
  imbalance.

THE BALANCING ACT:
  CHARGES  = face (original roll) + face (interim adds)
           + penalties collected (paid - face on PENALTY-period payments)
           + penalties owed on UNPAID/RETURNED parcels
  CREDITS  = cash collected (sum of PAYMENT amounts)
           + discounts allowed (face - paid on DISCOUNT-period payments)
           + exonerations
           + face + penalty owed on UNPAID/RETURNED parcels

  Books balance iff |CHARGES - CREDITS| < $0.02. A nonzero balance means a
  defect in ledger logic or a hand-edited row - never a rounding artifact.

NSF NEUTRALITY:
  A payment and its NSF reversal net to zero cash collected, and the
  reversal cancels the original's discount/penalty contribution; resetting
  the parcel to UNPAID then moves its face+penalty back into charges and
  credits symmetrically. A bounced check leaves no trace on the balance.

SEE ALSO:
  - store.go: AllParcels/AllTransactions snapshot reads
*/
package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SETTLEMENT - The computed statement
// =============================================================================

// Settlement is the reconciliation statement with its named components.
type Settlement struct {
	OriginalFace       decimal.Decimal // face total of the original roll
	InterimFace        decimal.Decimal // face total of interim adds
	PenaltiesCollected decimal.Decimal // amount above face on penalty payments
	PenaltiesOnReturns decimal.Decimal // penalty owed on UNPAID/RETURNED parcels

	CashCollected    decimal.Decimal // sum of PAYMENT amounts
	DiscountsAllowed decimal.Decimal // face minus paid on discount payments
	Exonerations     decimal.Decimal // sum of EXONERATION amounts
	ReturnsFace      decimal.Decimal // face owed on UNPAID/RETURNED parcels
}

// tolerance under which the books count as balanced: two cents, allowing
// one rounding cent on each side of the sheet.
var settlementTolerance = Cent.Mul(decimal.NewFromInt(2))

// Charges is the total the collector must account for.
func (s Settlement) Charges() decimal.Decimal {
	return s.OriginalFace.Add(s.InterimFace).Add(s.PenaltiesCollected).Add(s.PenaltiesOnReturns)
}

// Credits is the total accounted for.
func (s Settlement) Credits() decimal.Decimal {
	return s.CashCollected.
		Add(s.DiscountsAllowed).
		Add(s.Exonerations).
		Add(s.ReturnsFace).
		Add(s.PenaltiesOnReturns)
}

// Balance is charges minus credits; zero when the books are clean.
func (s Settlement) Balance() decimal.Decimal {
	return s.Charges().Sub(s.Credits())
}

// Balanced reports whether the books balance within the cent tolerance.
func (s Settlement) Balanced() bool {
	return s.Balance().Abs().LessThan(settlementTolerance)
}

// =============================================================================
// COMPUTATION
// =============================================================================

// ComputeSettlement reconciles a full snapshot of parcels and transactions.
// Pure: safe to run concurrently with readers.
func ComputeSettlement(parcels []Parcel, txs []Transaction) Settlement {
	var s Settlement

	byID := make(map[ParcelID]Parcel, len(parcels))
	for _, p := range parcels {
		byID[p.ID] = p

		if p.Interim {
			s.InterimFace = s.InterimFace.Add(p.FaceAmount)
		} else {
			s.OriginalFace = s.OriginalFace.Add(p.FaceAmount)
		}

		if p.Status == StatusUnpaid || p.Status == StatusReturned {
			s.ReturnsFace = s.ReturnsFace.Add(p.FaceAmount)
			s.PenaltiesOnReturns = s.PenaltiesOnReturns.Add(p.PenaltyAmount)
		}
	}

	for _, tx := range txs {
		switch tx.Type {
		case TxPayment, TxNSFReversal:
			// A reversal carries the original's period and the negated
			// amount, so applying the mirrored formula (negated face)
			// cancels the original payment's contribution exactly.
			s.CashCollected = s.CashCollected.Add(tx.Amount)

			parcel, ok := byID[tx.ParcelID]
			if !ok {
				continue
			}
			face := parcel.FaceAmount
			if tx.Type == TxNSFReversal {
				face = face.Neg()
			}
			switch tx.Period {
			case PeriodDiscount:
				s.DiscountsAllowed = s.DiscountsAllowed.Add(face.Sub(tx.Amount))
			case PeriodPenalty:
				s.PenaltiesCollected = s.PenaltiesCollected.Add(tx.Amount.Sub(face))
			}
		case TxExoneration:
			s.Exonerations = s.Exonerations.Add(tx.Amount)
		}
	}

	return s
}

// =============================================================================
// RECONCILER - Store-backed entry point
// =============================================================================

// Reconciler reads a consistent snapshot and computes the settlement.
// Read-only; runs concurrently with other readers.
type Reconciler struct {
	store Store
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

func (r *Reconciler) Settle(ctx context.Context) (Settlement, error) {
	parcels, err := r.store.AllParcels(ctx)
	if err != nil {
		return Settlement{}, err
	}
	txs, err := r.store.AllTransactions(ctx)
	if err != nil {
		return Settlement{}, err
	}
	return ComputeSettlement(parcels, txs), nil
}
