/*
errors.go - Centralized error types for the tax engine

PURPOSE:
  All error kinds in one place. Business rejections are NOT errors here -
  PaymentValidator returns a Result value for those (see validate.go).
  Everything in this file aborts the current operation, rolls back any
  partial ledger mutation, and surfaces as a fatal command failure.

ERROR CATEGORIES:
  1. Not-found errors   - Referenced parcel or transaction does not exist
  2. Duplicate errors   - Interim add on an existing parcel id
  3. Locked periods     - Writes into an already-closed month
  4. Logic guards       - Undeclared parcel status transitions
  5. Integrity errors   - Unexpected persistence failures

USAGE:
  if errors.Is(err, tax.ErrPeriodClosed) { ... }
*/
package tax

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrParcelNotFound is returned when a referenced parcel id does not exist.
	ErrParcelNotFound = errors.New("parcel not found")

	// ErrTransactionNotFound is returned when a referenced transaction id
	// does not exist (e.g., NSF reversal of an unknown payment).
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateParcel is returned by an interim add on an existing id.
	ErrDuplicateParcel = errors.New("parcel already exists")

	// ErrPeriodClosed is returned when a mutating write targets a month
	// that has already been closed. Rejected-payment records are exempt:
	// they are compliance evidence, not cash movement.
	ErrPeriodClosed = errors.New("month is closed")

	// ErrInvalidTransition is returned when a transaction would move a
	// parcel through a status transition the state machine does not define.
	ErrInvalidTransition = errors.New("undefined status transition")

	// ErrIntegrity is returned on unexpected persistence failures.
	ErrIntegrity = errors.New("ledger integrity failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string // "parcel" or "transaction"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == "transaction" {
		return ErrTransactionNotFound
	}
	return ErrParcelNotFound
}

// DuplicateParcelError reports an interim add against an existing parcel.
type DuplicateParcelError struct {
	ID ParcelID
}

func (e *DuplicateParcelError) Error() string {
	return fmt.Sprintf("parcel %s already exists", e.ID)
}

func (e *DuplicateParcelError) Unwrap() error { return ErrDuplicateParcel }

// LockedPeriodError reports a write into a closed month.
type LockedPeriodError struct {
	Month int
	Year  int
}

func (e *LockedPeriodError) Error() string {
	return fmt.Sprintf("month %d/%d is already closed; no new transactions accepted", e.Month, e.Year)
}

func (e *LockedPeriodError) Unwrap() error { return ErrPeriodClosed }

// TransitionError reports an undeclared status transition.
type TransitionError struct {
	ParcelID ParcelID
	From     ParcelStatus
	TxType   TransactionType
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("parcel %s: no transition from %s on %s", e.ParcelID, e.From, e.TxType)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrParcelNotFound) || errors.Is(err, ErrTransactionNotFound)
}

// IsClientError reports whether the error is caused by bad caller input
// rather than a persistence defect.
func IsClientError(err error) bool {
	return IsNotFound(err) ||
		errors.Is(err, ErrDuplicateParcel) ||
		errors.Is(err, ErrPeriodClosed)
}
