/*
store.go - Persistence interface for the tax duplicate and ledger

PURPOSE:
  Defines the interface between the domain logic and the database. The
  Store owns atomicity: every mutating operation commits the row insert,
  the derived parcel-status update, and the audit entries as one unit, or
  rolls all of them back.

APPEND-ONLY CONTRACT:
  Transactions are inserted once and never updated or deleted. The single
  exception is the Closed flag, which CloseMonth flips false->true.
  Corrections happen through compensating NSF_REVERSAL rows.

CONCURRENCY:
  One logical writer. Implementations serialize mutating calls; reads may
  run concurrently and observe a consistent snapshot.

IMPLEMENTATIONS:
  - store/sqlite: production embedded store

SEE ALSO:
  - ledger.go: Validate-then-record orchestration over this interface
  - settlement.go: Read-only reconciliation over AllParcels/AllTransactions
*/
package tax

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Atomic persistence for parcels, transactions, and the audit log
// =============================================================================

type Store interface {
	// Append inserts a transaction and applies its derived effects
	// atomically: parcel status via the transition table, audit rows, and
	// the month-close guard (rejected payments bypass the guard). Returns
	// the assigned monotonic transaction id.
	Append(ctx context.Context, tx Transaction) (TransactionID, error)

	// CloseMonth marks every open transaction received in the calendar
	// month as closed and reports the count newly closed. Idempotent;
	// closure is permanent.
	CloseMonth(ctx context.Context, month time.Month, year int) (int, error)

	// ReverseNSF compensates a bounced check: inserts an NSF_REVERSAL
	// mirroring the original transaction with negated amount and resets
	// the parcel to UNPAID. receivedOn stamps the reversal row.
	ReverseNSF(ctx context.Context, originalID TransactionID, receivedOn time.Time) (TransactionID, error)

	// UpdateParcelInfo corrects owner name and/or mailing address, writing
	// one audit row per changed field. Empty arguments leave the field
	// untouched. No status effect.
	UpdateParcelInfo(ctx context.Context, id ParcelID, newName, newAddress string) error

	// AddInterim inserts a brand-new mid-cycle parcel with status UNPAID.
	// Amounts are caller-supplied, not recomputed.
	AddInterim(ctx context.Context, p Parcel) error

	// ImportParcels bulk-loads roll records, replacing existing rows
	// keyed by parcel id.
	ImportParcels(ctx context.Context, parcels []Parcel) (int, error)

	// Reads.
	GetParcel(ctx context.Context, id ParcelID) (Parcel, error)
	GetTransaction(ctx context.Context, id TransactionID) (Transaction, error)
	TransactionsForParcel(ctx context.Context, id ParcelID) ([]Transaction, error)
	AllParcels(ctx context.Context) ([]Parcel, error)
	AllTransactions(ctx context.Context) ([]Transaction, error)

	// Lookup finds a parcel by exact id or owner-name substring, with its
	// transaction history. Returns ErrParcelNotFound when nothing matches.
	Lookup(ctx context.Context, term string) (Parcel, []Transaction, error)

	// AuditTail returns the most recent audit entries, newest first.
	AuditTail(ctx context.Context, limit int) ([]AuditEntry, error)
}
