/*
ledger.go - Validate-then-record orchestration

PURPOSE:
  Ledger wraps the Store with the collection office's business flow:
  every tendered payment is validated first, and BOTH outcomes are
  persisted. An accepted payment becomes a PAYMENT row with its derived
  period and remaining balance; a rejected one becomes a REJECTED_PAYMENT
  row carrying the reason, without touching parcel status.

WHY RECORD REJECTIONS?
  Compliance. The office must be able to prove a check was tendered and
  refused, and why. A rejection is therefore a normal result here, never
  an error - only persistence failures abort.

BALANCE DERIVATION:
  - Full payments settle the period amount exactly: balance remaining 0.
  - Installment payments credit against the face amount: balance is
    face minus the net of all prior payments and reversals minus the
    tendered amount.
  - Rejected payments record the face amount as balance remaining, since
    no cash moved.

SEE ALSO:
  - validate.go: The pure validation rules
  - store.go: Atomicity contract
*/
package tax

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER - Domain operations over the Store
// =============================================================================

type Ledger struct {
	store     Store
	validator Validator
}

func NewLedger(store Store, validator Validator) *Ledger {
	return &Ledger{store: store, validator: validator}
}

// PaymentRequest is a candidate payment from manual entry or ingestion.
type PaymentRequest struct {
	ParcelID       ParcelID
	Amount         decimal.Decimal
	Postmark       time.Time
	DateReceived   time.Time // defaults to Postmark when zero
	CheckNumber    string
	InstallmentNum int
	DepositBatchID string
}

func (r PaymentRequest) method() PaymentMethod {
	if r.CheckNumber == "" || r.CheckNumber == "CASH" {
		return MethodCash
	}
	return MethodCheck
}

func (r PaymentRequest) received() time.Time {
	if r.DateReceived.IsZero() {
		return r.Postmark
	}
	return r.DateReceived
}

// RecordPayment validates the request against its parcel and persists the
// outcome. The returned Result reports acceptance or the rejection reason;
// err is non-nil only for lookup or persistence failures.
func (l *Ledger) RecordPayment(ctx context.Context, req PaymentRequest) (Result, TransactionID, error) {
	parcel, err := l.store.GetParcel(ctx, req.ParcelID)
	if err != nil {
		return Result{}, 0, err
	}

	res := l.validator.Validate(parcel, req.Amount, req.Postmark, req.InstallmentNum)

	if !res.Accepted {
		id, err := l.store.Append(ctx, Transaction{
			DateReceived:     req.received(),
			PostmarkDate:     req.Postmark,
			ParcelID:         req.ParcelID,
			Type:             TxRejectedPayment,
			Method:           req.method(),
			CheckNumber:      req.CheckNumber,
			Amount:           req.Amount,
			BalanceRemaining: parcel.FaceAmount,
			InstallmentNum:   req.InstallmentNum,
			DepositBatchID:   req.DepositBatchID,
			Notes:            fmt.Sprintf("Rejected: %s (%s)", res.Message, res.Code),
		})
		if err != nil {
			return res, 0, fmt.Errorf("recording rejected payment: %w", err)
		}
		return res, id, nil
	}

	balance, err := l.balanceAfter(ctx, parcel, res, req.Amount)
	if err != nil {
		return res, 0, fmt.Errorf("reading payment history: %w", err)
	}
	id, err := l.store.Append(ctx, Transaction{
		DateReceived:     req.received(),
		PostmarkDate:     req.Postmark,
		ParcelID:         req.ParcelID,
		Type:             TxPayment,
		Method:           req.method(),
		CheckNumber:      req.CheckNumber,
		Amount:           req.Amount,
		BalanceRemaining: balance,
		Period:           res.Period,
		InstallmentNum:   req.InstallmentNum,
		DepositBatchID:   req.DepositBatchID,
	})
	if err != nil {
		return res, 0, err
	}
	return res, id, nil
}

// balanceAfter derives the remaining balance a payment leaves behind. A
// failed history read aborts the payment; recording a balance that ignores
// prior installments would corrupt the books.
func (l *Ledger) balanceAfter(ctx context.Context, parcel Parcel, res Result, tendered decimal.Decimal) (decimal.Decimal, error) {
	if res.Code == AcceptedFull {
		return decimal.Zero, nil
	}

	// Installments credit against the face amount, netting out prior
	// payments and reversals.
	history, err := l.store.TransactionsForParcel(ctx, parcel.ID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	prior := decimal.Zero
	for _, tx := range history {
		switch tx.Type {
		case TxPayment, TxNSFReversal:
			prior = prior.Add(tx.Amount)
		}
	}
	return parcel.FaceAmount.Sub(prior).Sub(tendered).Round(2), nil
}

// Exonerate forgives an obligation, recording an EXONERATION row and
// moving the parcel to EXONERATED.
func (l *Ledger) Exonerate(ctx context.Context, id ParcelID, amount decimal.Decimal, on time.Time, reason string) (TransactionID, error) {
	return l.store.Append(ctx, Transaction{
		DateReceived: on,
		PostmarkDate: on,
		ParcelID:     id,
		Type:         TxExoneration,
		Method:       MethodNone,
		Amount:       amount,
		Notes:        reason,
	})
}

// RecordReturn hands an unpaid obligation to the collection authority,
// recording a RETURN row and moving the parcel to RETURNED. The amounts
// owed stay on the parcel; the row itself carries no cash.
func (l *Ledger) RecordReturn(ctx context.Context, id ParcelID, on time.Time, notes string) (TransactionID, error) {
	return l.store.Append(ctx, Transaction{
		DateReceived: on,
		PostmarkDate: on,
		ParcelID:     id,
		Type:         TxReturn,
		Method:       MethodNone,
		Amount:       decimal.Zero,
		Notes:        notes,
	})
}
