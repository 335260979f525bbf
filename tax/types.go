/*
Package tax provides the core tax collection engine.

PURPOSE:
  This package contains the domain types and algorithms for administering
  real-estate and per-capita tax collection: statutory payment periods,
  strict payment validation, the append-only transaction ledger, and the
  settlement reconciliation that proves the books balance.

KEY CONCEPTS IN THIS FILE (types.go):
  - Parcel: One property's tax obligation for one billing cycle
  - Transaction: An immutable ledger entry recording a financial event
  - AuditEntry: One record per field-level mutation anywhere in the data
  - Period: The statutory payment window (DISCOUNT, FACE, PENALTY)

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs, periods, and statuses
  4. Auditability: Every mutation is traceable through the audit log

SEE ALSO:
  - period.go: Statutory period calculation
  - validate.go: Payment validation rules
  - ledger.go: Validate-then-record orchestration
  - settlement.go: Charges-vs-credits reconciliation
*/
package tax

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - All amounts are dollar values with 2-digit precision
// =============================================================================

// Cent is the smallest unit the books care about. Equality between amounts
// is always tested after rounding the difference to 2 decimal places.
var Cent = decimal.New(1, -2)

// paidThreshold: a remaining balance at or below this counts as paid in full.
var paidThreshold = decimal.RequireFromString("0.009")

// Dollars parses a decimal dollar string, panicking on malformed input.
// For trusted literals (tests, fixtures) only; runtime input goes through
// decimal.NewFromString directly.
func Dollars(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// SameAmount reports whether two amounts are equal at cent precision.
func SameAmount(a, b decimal.Decimal) bool {
	return a.Sub(b).Round(2).IsZero()
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ParcelID string
type TransactionID int64

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Period is the statutory payment window a postmark falls into.
type Period string

const (
	PeriodDiscount Period = "DISCOUNT"
	PeriodFace     Period = "FACE"
	PeriodPenalty  Period = "PENALTY"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxPayment         TransactionType = "PAYMENT"
	TxRejectedPayment TransactionType = "REJECTED_PAYMENT"
	TxReturn          TransactionType = "RETURN"
	TxExoneration     TransactionType = "EXONERATION"
	TxNSFReversal     TransactionType = "NSF_REVERSAL"
)

// ParcelStatus is the derived collection state of a parcel.
type ParcelStatus string

const (
	StatusUnpaid     ParcelStatus = "UNPAID"
	StatusPartial    ParcelStatus = "PARTIAL"
	StatusPaid       ParcelStatus = "PAID"
	StatusReturned   ParcelStatus = "RETURNED"
	StatusExonerated ParcelStatus = "EXONERATED"
)

// TaxType distinguishes the billing roll a parcel belongs to.
type TaxType string

const (
	TaxRealEstate TaxType = "Real Estate"
	TaxPerCapita  TaxType = "Per Capita"
)

// PaymentMethod records how funds were tendered.
type PaymentMethod string

const (
	MethodCheck      PaymentMethod = "CHECK"
	MethodCash       PaymentMethod = "CASH"
	MethodAdjustment PaymentMethod = "ADJUSTMENT"
	MethodNone       PaymentMethod = "NONE"
)

// =============================================================================
// PARCEL - One tax obligation for one property/owner for one billing cycle
// =============================================================================

// Parcel is a row of the tax duplicate (the master tax roll).
//
// INVARIANT: DiscountAmount <= FaceAmount <= PenaltyAmount.
// Parcels are created by bulk import or an interim add, mutated only through
// ledger transactions or explicit owner/address corrections, never deleted.
type Parcel struct {
	ID              ParcelID
	OwnerName       string
	PropertyAddress string
	MailingAddress  string
	BillNumber      string
	AssessedValue   decimal.Decimal
	FaceAmount      decimal.Decimal
	DiscountAmount  decimal.Decimal
	PenaltyAmount   decimal.Decimal
	TaxType         TaxType
	BillIssueDate   time.Time
	Installment     bool // eligible for the three-part installment plan
	Interim         bool // created mid-cycle rather than on the original roll
	Status          ParcelStatus
}

// AmountFor returns the exact expected amount for a payment period.
func (p Parcel) AmountFor(period Period) decimal.Decimal {
	switch period {
	case PeriodDiscount:
		return p.DiscountAmount
	case PeriodFace:
		return p.FaceAmount
	default:
		return p.PenaltyAmount
	}
}

// =============================================================================
// TRANSACTION - One immutable ledger entry
// =============================================================================

// Transaction records a single financial event against a parcel.
//
// INVARIANTS:
//   - Append-only: rows are inserted once, never updated or deleted.
//   - The only permitted mutation is the Closed flag transition false->true
//     during month close. A closed row is immutable forever after.
type Transaction struct {
	ID               TransactionID
	DateReceived     time.Time
	PostmarkDate     time.Time
	ParcelID         ParcelID
	Type             TransactionType
	Method           PaymentMethod
	CheckNumber      string
	Amount           decimal.Decimal // signed; negative for NSF reversals
	BalanceRemaining decimal.Decimal
	Period           Period // empty for exonerations/returns
	InstallmentNum   int    // 0 when not an installment payment
	DepositBatchID   string
	Closed           bool
	Notes            string
}

// =============================================================================
// AUDIT ENTRY - One record per field-level mutation
// =============================================================================

type AuditAction string

const (
	AuditInsert AuditAction = "INSERT"
	AuditUpdate AuditAction = "UPDATE"
)

// AuditEntry is an append-only change-log row, ordered by LogID.
type AuditEntry struct {
	LogID     int64
	Timestamp time.Time
	Table     string
	RecordID  string
	Action    AuditAction
	Field     string
	OldValue  string
	NewValue  string
}
