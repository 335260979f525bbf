/*
validate.go - Strict payment validation

PURPOSE:
  Decides whether a tendered payment against a parcel is acceptable, and
  why not if not. Statute requires the EXACT amount for the statutory
  period; there is no such thing as "close enough" except at cent
  precision, and partial payments are only honored under a three-part
  installment plan.

VALIDATION ORDER:
  1. Determine the period from the postmark
  2. Exact match on the full period amount        -> ACCEPTED_FULL
  3. Installment plan checks (if parcel eligible):
     a. First installment during PENALTY          -> REJECTED_INSTALLMENT_LATE
     b. Exact match on face/3                     -> ACCEPTED_INSTALLMENT
     c. Exact match on (face/3) * 1.10            -> ACCEPTED_INSTALLMENT_PENALTY
  4. Tendered above the full amount               -> REJECTED_OVER
  5. Anything else                                -> REJECTED_UNDER

INSTALLMENTS DURING PENALTY:
  Installment numbers 2 and 3 still validate at the plain installment
  amount during the penalty period; only a first (or unnumbered)
  installment is refused once penalty has begun. No per-installment due
  dates are tracked.

PURITY:
  Validate is a pure function of its inputs: no database access, no side
  effects, identical inputs always yield identical results. A rejection is
  a normal outcome, not an error - it is the caller's job to record the
  attempt and exit nonzero.
*/
package tax

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RESULT CODES
// =============================================================================

type ResultCode string

const (
	AcceptedFull               ResultCode = "ACCEPTED_FULL"
	AcceptedInstallment        ResultCode = "ACCEPTED_INSTALLMENT"
	AcceptedInstallmentPenalty ResultCode = "ACCEPTED_INSTALLMENT_PENALTY"
	RejectedInstallmentLate    ResultCode = "REJECTED_INSTALLMENT_LATE"
	RejectedOver               ResultCode = "REJECTED_OVER"
	RejectedUnder              ResultCode = "REJECTED_UNDER"
)

// Result is the discriminated outcome of payment validation. It is a value,
// not an error: rejected payments are expected business outcomes that must
// still be recorded for compliance.
type Result struct {
	Accepted bool
	Code     ResultCode
	Message  string
	Period   Period
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator judges tendered payments against a parcel's billed amounts.
type Validator struct {
	Calc Calculator
}

func NewValidator(calc Calculator) Validator {
	return Validator{Calc: calc}
}

// installmentPenaltyRate is the statutory 10% surcharge on late installments.
var installmentPenaltyRate = decimal.RequireFromString("1.10")

// Validate checks a tendered amount against the parcel for the given
// postmark date. installmentNum is 0 when the payer did not indicate one.
func (v Validator) Validate(p Parcel, tendered decimal.Decimal, postmark time.Time, installmentNum int) Result {
	period := v.Calc.DeterminePeriod(postmark, p.BillIssueDate)
	expectedFull := p.AmountFor(period)

	if SameAmount(tendered, expectedFull) {
		return Result{
			Accepted: true,
			Code:     AcceptedFull,
			Message:  "Exact Match (Full Payment)",
			Period:   period,
		}
	}

	if p.Installment {
		if period == PeriodPenalty && installmentNum <= 1 {
			return Result{
				Code:    RejectedInstallmentLate,
				Message: "Installment plan invalid during Penalty Period. Full penalty amount required.",
				Period:  period,
			}
		}

		// Three equal installments on the face amount.
		expectedInstallment := p.FaceAmount.Div(decimal.NewFromInt(3)).Round(2)
		if SameAmount(tendered, expectedInstallment) {
			n := installmentNum
			if n == 0 {
				n = 1
			}
			return Result{
				Accepted: true,
				Code:     AcceptedInstallment,
				Message:  fmt.Sprintf("Exact Match (Installment %d)", n),
				Period:   period,
			}
		}

		expectedPenalized := expectedInstallment.Mul(installmentPenaltyRate).Round(2)
		if SameAmount(tendered, expectedPenalized) {
			return Result{
				Accepted: true,
				Code:     AcceptedInstallmentPenalty,
				Message:  fmt.Sprintf("Exact Match (Penalty Installment %d)", installmentNum),
				Period:   period,
			}
		}
	}

	if tendered.GreaterThan(expectedFull) {
		diff := tendered.Sub(expectedFull).Round(2)
		return Result{
			Code:    RejectedOver,
			Message: fmt.Sprintf("OVERPAYMENT of $%s. Do not deposit. Issue Refund/Return Check.", diff.StringFixed(2)),
			Period:  period,
		}
	}

	diff := expectedFull.Sub(tendered).Round(2)
	return Result{
		Code:    RejectedUnder,
		Message: fmt.Sprintf("UNDERPAYMENT of $%s. Exact amount required or valid installment.", diff.StringFixed(2)),
		Period:  period,
	}
}
