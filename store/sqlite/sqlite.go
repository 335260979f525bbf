/*
Package sqlite provides the SQLite-backed implementation of tax.Store.

PURPOSE:
  Implements the persisted state layout: a parcels table keyed by parcel
  id, an append-only transactions table with monotonic ids, the audit_log,
  and a system_log for operational events.

ATOMICITY:
  Every mutating operation runs inside a single database transaction:
  ledger row insert, derived parcel-status update, and audit entries
  commit or roll back as one unit. Partial application is never
  observable.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE on ledger rows, except the closed flag, which
    CloseMonth flips false->true exactly once
  - Corrections happen via compensating NSF_REVERSAL rows

MONTH CLOSE:
  A closed calendar month rejects new rows dated inside it with
  tax.LockedPeriodError. REJECTED_PAYMENT rows bypass the guard: they are
  compliance evidence, not cash movement.

CONCURRENCY:
  sync.RWMutex serializes mutating calls (single logical writer); reads
  take the read lock and observe a committed snapshot.

WAL MODE:
  SQLite is opened with WAL so readers don't block behind the writer and
  crash recovery is clean.

BACKUPS:
  Backup() takes a timestamped point-in-time copy of the database file
  and rotates old copies, keeping the most recent five. Callers take a
  backup before any mutating command.

SEE ALSO:
  - tax/store.go: Interface contract
  - tax/status.go: The transition table applied on append
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tioga/tax-ledger/tax"
)

// Store implements tax.Store on an embedded SQLite database.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	log  zerolog.Logger
	path string
}

// New opens (creating if needed) a store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, log: log, path: dbPath}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- The tax duplicate (master roll)
	CREATE TABLE IF NOT EXISTS parcels (
		parcel_id        TEXT PRIMARY KEY,
		owner_name       TEXT NOT NULL,
		property_address TEXT NOT NULL,
		mailing_address  TEXT NOT NULL,
		bill_number      TEXT NOT NULL,
		assessed_value   TEXT NOT NULL,
		face_amount      TEXT NOT NULL,
		discount_amount  TEXT NOT NULL,
		penalty_amount   TEXT NOT NULL,
		tax_type         TEXT NOT NULL,
		bill_issue_date  TEXT NOT NULL,
		is_installment   INTEGER NOT NULL DEFAULT 0,
		is_interim       INTEGER NOT NULL DEFAULT 0,
		status           TEXT NOT NULL DEFAULT 'UNPAID'
	);

	CREATE INDEX IF NOT EXISTS idx_parcels_owner ON parcels(owner_name);
	CREATE INDEX IF NOT EXISTS idx_parcels_status ON parcels(status);

	-- Ledger (append-only)
	CREATE TABLE IF NOT EXISTS transactions (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		date_received     TEXT NOT NULL,
		postmark_date     TEXT NOT NULL,
		parcel_id         TEXT NOT NULL REFERENCES parcels(parcel_id),
		tx_type           TEXT NOT NULL,
		method            TEXT,
		check_number      TEXT,
		amount            TEXT NOT NULL,
		balance_remaining TEXT NOT NULL,
		period            TEXT,
		installment_num   INTEGER,
		deposit_batch_id  TEXT,
		closed            INTEGER NOT NULL DEFAULT 0,
		notes             TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_parcel
		ON transactions(parcel_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_received
		ON transactions(date_received);
	CREATE INDEX IF NOT EXISTS idx_transactions_type
		ON transactions(tx_type);

	-- Audit trail (append-only, one row per field-level mutation)
	CREATE TABLE IF NOT EXISTS audit_log (
		log_id     INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp  TEXT NOT NULL,
		table_name TEXT NOT NULL,
		record_id  TEXT NOT NULL,
		action     TEXT NOT NULL,
		field_name TEXT,
		old_value  TEXT,
		new_value  TEXT
	);

	-- Operational event log (outside the correctness surface)
	CREATE TABLE IF NOT EXISTS system_log (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		action    TEXT NOT NULL,
		details   TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer abstracts *sql.DB and *sql.Tx for shared helpers.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// =============================================================================
// APPEND - Ledger insert with derived status and audit rows
// =============================================================================

// Append inserts a transaction and applies its derived effects atomically.
func (s *Store) Append(ctx context.Context, tx tax.Transaction) (tax.TransactionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id tax.TransactionID
	err := s.withTx(ctx, func(dbtx *sql.Tx) error {
		var err error
		id, err = s.appendTx(ctx, dbtx, tx)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logEvent(ctx, "TRANSACTION",
		fmt.Sprintf("Added %s for %s: %s", tx.Type, tx.ParcelID, tx.Amount.StringFixed(2)))
	return id, nil
}

func (s *Store) appendTx(ctx context.Context, dbtx *sql.Tx, tx tax.Transaction) (tax.TransactionID, error) {
	// Month-close guard. Rejected payments are always recorded.
	if tx.Type != tax.TxRejectedPayment {
		closed, err := s.monthClosed(ctx, dbtx, tx.DateReceived)
		if err != nil {
			return 0, err
		}
		if closed {
			return 0, &tax.LockedPeriodError{
				Month: int(tx.DateReceived.Month()),
				Year:  tx.DateReceived.Year(),
			}
		}
	}

	current, err := s.parcelStatus(ctx, dbtx, tx.ParcelID)
	if err != nil {
		return 0, err
	}

	next, ok := tax.NextStatus(current, tx.Type, tax.Settled(tx.BalanceRemaining))
	if !ok {
		return 0, &tax.TransitionError{ParcelID: tx.ParcelID, From: current, TxType: tx.Type}
	}

	res, err := dbtx.ExecContext(ctx, `
		INSERT INTO transactions
		(date_received, postmark_date, parcel_id, tx_type, method, check_number,
		 amount, balance_remaining, period, installment_num, deposit_batch_id, closed, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		tax.FormatDate(tx.DateReceived),
		tax.FormatDate(tx.PostmarkDate),
		tx.ParcelID,
		tx.Type,
		tx.Method,
		tx.CheckNumber,
		tx.Amount.StringFixed(2),
		tx.BalanceRemaining.StringFixed(2),
		nullString(string(tx.Period)),
		nullInt(tx.InstallmentNum),
		nullString(tx.DepositBatchID),
		nullString(tx.Notes),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: inserting transaction: %v", tax.ErrIntegrity, err)
	}

	rawID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: reading transaction id: %v", tax.ErrIntegrity, err)
	}
	id := tax.TransactionID(rawID)

	// Every ledger insert produces exactly one audit row.
	if err := s.audit(ctx, dbtx, "transactions", fmt.Sprintf("%d", id),
		tax.AuditInsert, "amount", "0.00", tx.Amount.StringFixed(2)); err != nil {
		return 0, err
	}

	if next != current {
		if err := s.setParcelStatus(ctx, dbtx, tx.ParcelID, current, next); err != nil {
			return 0, err
		}
	}

	return id, nil
}

func (s *Store) monthClosed(ctx context.Context, q execer, received time.Time) (bool, error) {
	start, end := monthRange(received.Month(), received.Year())
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE date_received >= ? AND date_received < ? AND closed = 1`,
		start, end,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("%w: checking month closure: %v", tax.ErrIntegrity, err)
	}
	return count > 0, nil
}

func (s *Store) parcelStatus(ctx context.Context, q execer, id tax.ParcelID) (tax.ParcelStatus, error) {
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM parcels WHERE parcel_id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &tax.NotFoundError{Kind: "parcel", ID: string(id)}
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading parcel status: %v", tax.ErrIntegrity, err)
	}
	return tax.ParcelStatus(status), nil
}

func (s *Store) setParcelStatus(ctx context.Context, dbtx *sql.Tx, id tax.ParcelID, old, next tax.ParcelStatus) error {
	if _, err := dbtx.ExecContext(ctx,
		`UPDATE parcels SET status = ? WHERE parcel_id = ?`, next, id); err != nil {
		return fmt.Errorf("%w: updating parcel status: %v", tax.ErrIntegrity, err)
	}
	return s.audit(ctx, dbtx, "parcels", string(id), tax.AuditUpdate, "status", string(old), string(next))
}

// =============================================================================
// MONTH CLOSE
// =============================================================================

// CloseMonth locks all open transactions for a calendar month. Idempotent:
// re-running on a closed range closes zero additional rows.
func (s *Store) CloseMonth(ctx context.Context, month time.Month, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, end := monthRange(month, year)

	var count int64
	err := s.withTx(ctx, func(dbtx *sql.Tx) error {
		res, err := dbtx.ExecContext(ctx, `
			UPDATE transactions SET closed = 1
			WHERE date_received >= ? AND date_received < ? AND closed = 0`,
			start, end,
		)
		if err != nil {
			return fmt.Errorf("%w: closing month: %v", tax.ErrIntegrity, err)
		}
		count, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logEvent(ctx, "CLOSE_MONTH", fmt.Sprintf("Closed %d transactions for %d/%d", count, month, year))
	return int(count), nil
}

func monthRange(month time.Month, year int) (string, string) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return tax.FormatDate(start), tax.FormatDate(start.AddDate(0, 1, 0))
}

// =============================================================================
// NSF REVERSAL
// =============================================================================

// ReverseNSF inserts a compensating reversal for a bounced check and
// resets the parcel to UNPAID.
func (s *Store) ReverseNSF(ctx context.Context, originalID tax.TransactionID, receivedOn time.Time) (tax.TransactionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id tax.TransactionID
	err := s.withTx(ctx, func(dbtx *sql.Tx) error {
		orig, err := s.getTransaction(ctx, dbtx, originalID)
		if err != nil {
			return err
		}

		reversal := tax.Transaction{
			DateReceived:     receivedOn,
			PostmarkDate:     receivedOn,
			ParcelID:         orig.ParcelID,
			Type:             tax.TxNSFReversal,
			Method:           tax.MethodAdjustment,
			CheckNumber:      orig.CheckNumber,
			Amount:           orig.Amount.Neg(),
			BalanceRemaining: orig.Amount,
			Period:           orig.Period,
			InstallmentNum:   orig.InstallmentNum,
			Notes:            fmt.Sprintf("NSF Reversal for Trans ID %d", originalID),
		}

		id, err = s.appendTx(ctx, dbtx, reversal)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logEvent(ctx, "NSF_REVERSAL", fmt.Sprintf("Reversed transaction %d", originalID))
	return id, nil
}

// =============================================================================
// PARCEL MUTATIONS - Corrections, interim adds, bulk import
// =============================================================================

// UpdateParcelInfo corrects owner name and/or mailing address with one
// audit row per changed field. Empty arguments leave the field alone.
func (s *Store) UpdateParcelInfo(ctx context.Context, id tax.ParcelID, newName, newAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(dbtx *sql.Tx) error {
		var oldName, oldAddress string
		err := dbtx.QueryRowContext(ctx,
			`SELECT owner_name, mailing_address FROM parcels WHERE parcel_id = ?`, id,
		).Scan(&oldName, &oldAddress)
		if errors.Is(err, sql.ErrNoRows) {
			return &tax.NotFoundError{Kind: "parcel", ID: string(id)}
		}
		if err != nil {
			return fmt.Errorf("%w: reading parcel: %v", tax.ErrIntegrity, err)
		}

		if newName != "" && newName != oldName {
			if _, err := dbtx.ExecContext(ctx,
				`UPDATE parcels SET owner_name = ? WHERE parcel_id = ?`, newName, id); err != nil {
				return fmt.Errorf("%w: updating owner name: %v", tax.ErrIntegrity, err)
			}
			if err := s.audit(ctx, dbtx, "parcels", string(id), tax.AuditUpdate, "owner_name", oldName, newName); err != nil {
				return err
			}
		}

		if newAddress != "" && newAddress != oldAddress {
			if _, err := dbtx.ExecContext(ctx,
				`UPDATE parcels SET mailing_address = ? WHERE parcel_id = ?`, newAddress, id); err != nil {
				return fmt.Errorf("%w: updating mailing address: %v", tax.ErrIntegrity, err)
			}
			if err := s.audit(ctx, dbtx, "parcels", string(id), tax.AuditUpdate, "mailing_address", oldAddress, newAddress); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logEvent(ctx, "UPDATE_PARCEL", fmt.Sprintf("Updated info for %s", id))
	return nil
}

// AddInterim inserts a brand-new mid-cycle parcel with status UNPAID.
func (s *Store) AddInterim(ctx context.Context, p tax.Parcel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(dbtx *sql.Tx) error {
		var count int
		if err := dbtx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM parcels WHERE parcel_id = ?`, p.ID).Scan(&count); err != nil {
			return fmt.Errorf("%w: checking parcel existence: %v", tax.ErrIntegrity, err)
		}
		if count > 0 {
			return &tax.DuplicateParcelError{ID: p.ID}
		}

		p.Interim = true
		p.Status = tax.StatusUnpaid
		return s.insertParcel(ctx, dbtx, p, false)
	})
	if err != nil {
		return err
	}

	s.logEvent(ctx, "ADD_INTERIM", fmt.Sprintf("Added Interim Parcel %s", p.ID))
	return nil
}

// ImportParcels bulk-loads roll records, replacing existing rows keyed by
// parcel id.
func (s *Store) ImportParcels(ctx context.Context, parcels []tax.Parcel) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	err := s.withTx(ctx, func(dbtx *sql.Tx) error {
		for _, p := range parcels {
			if p.Status == "" {
				p.Status = tax.StatusUnpaid
			}
			if err := s.insertParcel(ctx, dbtx, p, true); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logEvent(ctx, "IMPORT", fmt.Sprintf("Imported %d duplicate records", count))
	return count, nil
}

func (s *Store) insertParcel(ctx context.Context, dbtx *sql.Tx, p tax.Parcel, replace bool) error {
	verb := "INSERT"
	if replace {
		verb = "INSERT OR REPLACE"
	}
	mailing := p.MailingAddress
	if mailing == "" {
		mailing = p.PropertyAddress
	}
	_, err := dbtx.ExecContext(ctx, verb+` INTO parcels
		(parcel_id, owner_name, property_address, mailing_address, bill_number,
		 assessed_value, face_amount, discount_amount, penalty_amount,
		 tax_type, bill_issue_date, is_installment, is_interim, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerName, p.PropertyAddress, mailing, p.BillNumber,
		p.AssessedValue.String(),
		p.FaceAmount.StringFixed(2),
		p.DiscountAmount.StringFixed(2),
		p.PenaltyAmount.StringFixed(2),
		p.TaxType,
		tax.FormatDate(p.BillIssueDate),
		boolInt(p.Installment),
		boolInt(p.Interim),
		p.Status,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting parcel %s: %v", tax.ErrIntegrity, p.ID, err)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) GetParcel(ctx context.Context, id tax.ParcelID) (tax.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectParcel+` WHERE parcel_id = ?`, id)
	p, err := scanParcel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tax.Parcel{}, &tax.NotFoundError{Kind: "parcel", ID: string(id)}
	}
	return p, err
}

func (s *Store) GetTransaction(ctx context.Context, id tax.TransactionID) (tax.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTransaction(ctx, s.db, id)
}

func (s *Store) getTransaction(ctx context.Context, q execer, id tax.TransactionID) (tax.Transaction, error) {
	row := q.QueryRowContext(ctx, selectTransaction+` WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tax.Transaction{}, &tax.NotFoundError{Kind: "transaction", ID: fmt.Sprintf("%d", id)}
	}
	return t, err
}

func (s *Store) TransactionsForParcel(ctx context.Context, id tax.ParcelID) ([]tax.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTransactions(ctx,
		selectTransaction+` WHERE parcel_id = ? ORDER BY date_received ASC, id ASC`, id)
}

func (s *Store) AllParcels(ctx context.Context) ([]tax.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectParcel+` ORDER BY parcel_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying parcels: %v", tax.ErrIntegrity, err)
	}
	defer rows.Close()

	var parcels []tax.Parcel
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, err
		}
		parcels = append(parcels, p)
	}
	return parcels, rows.Err()
}

func (s *Store) AllTransactions(ctx context.Context) ([]tax.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTransactions(ctx, selectTransaction+` ORDER BY id ASC`)
}

// Lookup finds a parcel by exact id or owner-name substring.
func (s *Store) Lookup(ctx context.Context, term string) (tax.Parcel, []tax.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		selectParcel+` WHERE parcel_id = ? OR owner_name LIKE ? LIMIT 1`,
		term, "%"+term+"%")
	p, err := scanParcel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tax.Parcel{}, nil, &tax.NotFoundError{Kind: "parcel", ID: term}
	}
	if err != nil {
		return tax.Parcel{}, nil, err
	}

	txs, err := s.queryTransactions(ctx,
		selectTransaction+` WHERE parcel_id = ? ORDER BY date_received ASC, id ASC`, p.ID)
	if err != nil {
		return tax.Parcel{}, nil, err
	}
	return p, txs, nil
}

func (s *Store) AuditTail(ctx context.Context, limit int) ([]tax.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT log_id, timestamp, table_name, record_id, action, field_name, old_value, new_value
		FROM audit_log ORDER BY log_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying audit log: %v", tax.ErrIntegrity, err)
	}
	defer rows.Close()

	var entries []tax.AuditEntry
	for rows.Next() {
		var (
			e      tax.AuditEntry
			ts     string
			field  sql.NullString
			oldVal sql.NullString
			newVal sql.NullString
		)
		if err := rows.Scan(&e.LogID, &ts, &e.Table, &e.RecordID, &e.Action, &field, &oldVal, &newVal); err != nil {
			return nil, fmt.Errorf("%w: scanning audit entry: %v", tax.ErrIntegrity, err)
		}
		e.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed stored timestamp %q", tax.ErrIntegrity, ts)
		}
		e.Field = field.String
		e.OldValue = oldVal.String
		e.NewValue = newVal.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// BACKUPS - Point-in-time file copies, keep the most recent five
// =============================================================================

const backupRetention = 5

// Backup copies the database file into dir with a timestamped name and
// rotates old backups. No-op for in-memory databases.
func (s *Store) Backup(dir string) (string, error) {
	if s.path == ":memory:" || strings.HasPrefix(s.path, "file::memory:") {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup dir: %w", err)
	}

	stamp := time.Now().Format("20060102_150405")
	base := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	dest := filepath.Join(dir, fmt.Sprintf("%s_backup_%s.db", base, stamp))

	if err := copyFile(s.path, dest); err != nil {
		return "", fmt.Errorf("backup failed: %w", err)
	}

	if err := s.rotateBackups(dir, base); err != nil {
		return dest, err
	}

	s.log.Info().Str("backup", dest).Msg("database backup created")
	return dest, nil
}

func (s *Store) rotateBackups(dir, base string) error {
	pattern := filepath.Join(dir, base+"_backup_*.db")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	if len(matches) <= backupRetention {
		return nil
	}

	sort.Strings(matches) // timestamped names sort chronologically
	for _, old := range matches[:len(matches)-backupRetention] {
		if err := os.Remove(old); err != nil {
			return fmt.Errorf("rotating backup %s: %w", old, err)
		}
		s.log.Info().Str("backup", old).Msg("rotated old backup")
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", tax.ErrIntegrity, err)
	}
	defer dbtx.Rollback()

	if err := fn(dbtx); err != nil {
		return err
	}
	return dbtx.Commit()
}

func (s *Store) audit(ctx context.Context, dbtx *sql.Tx, table, recordID string, action tax.AuditAction, field, oldVal, newVal string) error {
	_, err := dbtx.ExecContext(ctx, `
		INSERT INTO audit_log (timestamp, table_name, record_id, action, field_name, old_value, new_value)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), table, recordID, action, field, oldVal, newVal,
	)
	if err != nil {
		return fmt.Errorf("%w: writing audit entry: %v", tax.ErrIntegrity, err)
	}
	return nil
}

// logEvent records an operational event. Failures are logged, not fatal:
// the system log sits outside the correctness surface.
func (s *Store) logEvent(ctx context.Context, action, details string) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system_log (timestamp, action, details) VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), action, details,
	)
	if err != nil {
		s.log.Error().Err(err).Str("action", action).Msg("failed to write system log")
		return
	}
	s.log.Info().Str("action", action).Msg(details)
}

const selectParcel = `
	SELECT parcel_id, owner_name, property_address, mailing_address, bill_number,
	       assessed_value, face_amount, discount_amount, penalty_amount,
	       tax_type, bill_issue_date, is_installment, is_interim, status
	FROM parcels`

const selectTransaction = `
	SELECT id, date_received, postmark_date, parcel_id, tx_type, method, check_number,
	       amount, balance_remaining, period, installment_num, deposit_batch_id, closed, notes
	FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParcel(row rowScanner) (tax.Parcel, error) {
	var (
		p           tax.Parcel
		assessed    string
		face        string
		discount    string
		penalty     string
		issueDate   string
		installment int
		interim     int
	)
	err := row.Scan(
		&p.ID, &p.OwnerName, &p.PropertyAddress, &p.MailingAddress, &p.BillNumber,
		&assessed, &face, &discount, &penalty,
		&p.TaxType, &issueDate, &installment, &interim, &p.Status,
	)
	if err != nil {
		return p, err
	}

	if p.AssessedValue, err = parseDecimal(assessed); err != nil {
		return p, err
	}
	if p.FaceAmount, err = parseDecimal(face); err != nil {
		return p, err
	}
	if p.DiscountAmount, err = parseDecimal(discount); err != nil {
		return p, err
	}
	if p.PenaltyAmount, err = parseDecimal(penalty); err != nil {
		return p, err
	}
	if p.BillIssueDate, err = parseStoredDate(issueDate); err != nil {
		return p, err
	}
	p.Installment = installment != 0
	p.Interim = interim != 0
	return p, nil
}

func scanTransaction(row rowScanner) (tax.Transaction, error) {
	var (
		t           tax.Transaction
		received    string
		postmark    string
		method      sql.NullString
		check       sql.NullString
		amount      string
		balance     string
		period      sql.NullString
		installment sql.NullInt64
		batch       sql.NullString
		closed      int
		notes       sql.NullString
	)
	err := row.Scan(
		&t.ID, &received, &postmark, &t.ParcelID, &t.Type, &method, &check,
		&amount, &balance, &period, &installment, &batch, &closed, &notes,
	)
	if err != nil {
		return t, err
	}

	if t.DateReceived, err = parseStoredDate(received); err != nil {
		return t, err
	}
	if t.PostmarkDate, err = parseStoredDate(postmark); err != nil {
		return t, err
	}
	t.Method = tax.PaymentMethod(method.String)
	t.CheckNumber = check.String
	if t.Amount, err = parseDecimal(amount); err != nil {
		return t, err
	}
	if t.BalanceRemaining, err = parseDecimal(balance); err != nil {
		return t, err
	}
	t.Period = tax.Period(period.String)
	t.InstallmentNum = int(installment.Int64)
	t.DepositBatchID = batch.String
	t.Closed = closed != 0
	t.Notes = notes.String
	return t, nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]tax.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying transactions: %v", tax.ErrIntegrity, err)
	}
	defer rows.Close()

	var txs []tax.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning transaction: %v", tax.ErrIntegrity, err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// parseDecimal and parseStoredDate read values this store wrote itself; a
// parse failure means the row was corrupted or hand-edited.
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: malformed stored amount %q", tax.ErrIntegrity, s)
	}
	return d, nil
}

func parseStoredDate(s string) (time.Time, error) {
	t, err := time.Parse(tax.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed stored date %q", tax.ErrIntegrity, s)
	}
	return t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
