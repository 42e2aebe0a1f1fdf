// Package sqlite is a store.Store on a local SQLite file.
//
// Every unit of work begins with BEGIN IMMEDIATE, so it holds the database
// write lock from its first statement. Numbering and balance updates of
// concurrent units therefore never interleave.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Store wraps a SQLite connection pool.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the database at dbPath and applies Schema.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunAtomic implements store.Store.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&tx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

type tx struct {
	tx *sql.Tx
}

type scanner interface {
	Scan(dest ...any) error
}

const accountColumns = `id, business_id, code, name, type, balance, is_active, created_at`

func scanAccount(row scanner) (model.Account, error) {
	var (
		a       model.Account
		created string
	)
	if err := row.Scan(&a.ID, &a.BusinessID, &a.Code, &a.Name, &a.Type, &a.Balance, &a.IsActive, &created); err != nil {
		return model.Account{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return model.Account{}, err
	}
	a.CreatedAt = t
	return a, nil
}

func (t *tx) FindAccount(ctx context.Context, businessID, accountID string) (model.Account, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? AND business_id = ?`, accountID, businessID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, store.ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("finding account %s: %w", accountID, err)
	}
	return a, nil
}

func (t *tx) ListAccounts(ctx context.Context, businessID string) ([]model.Account, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE business_id = ? ORDER BY code`, businessID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *tx) InsertAccount(ctx context.Context, a model.Account) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO accounts (id, business_id, code, name, type, balance, is_active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.BusinessID, a.Code, a.Name, string(a.Type), a.Balance.String(), a.IsActive, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting account %s: %w", a.Code, mapErr(err))
	}
	return nil
}

const transactionColumns = `id, business_id, transaction_number, transaction_date, description, reference,
	type, is_reversed, reversed_by_transaction_id, created_by, created_at`

func scanTransaction(row scanner) (model.Transaction, error) {
	var (
		txn              model.Transaction
		txnDate, created string
		reversedBy       sql.NullString
	)
	if err := row.Scan(&txn.ID, &txn.BusinessID, &txn.TransactionNumber, &txnDate, &txn.Description, &txn.Reference,
		&txn.Type, &txn.IsReversed, &reversedBy, &txn.CreatedBy, &created); err != nil {
		return model.Transaction{}, err
	}
	var err error
	if txn.TransactionDate, err = parseTime(txnDate); err != nil {
		return model.Transaction{}, err
	}
	if txn.CreatedAt, err = parseTime(created); err != nil {
		return model.Transaction{}, err
	}
	txn.ReversedByTransactionID = reversedBy.String
	return txn, nil
}

func (t *tx) FindTransaction(ctx context.Context, transactionID string) (model.Transaction, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, transactionID)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("finding transaction %s: %w", transactionID, err)
	}
	return txn, nil
}

func (t *tx) ListTransactions(ctx context.Context, businessID string) ([]model.Transaction, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE business_id = ? ORDER BY transaction_number`, businessID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

func (t *tx) FindTransactionLines(ctx context.Context, transactionID string) ([]model.TransactionLine, error) {
	rows, err := t.tx.QueryContext(ctx, `
SELECT id, transaction_id, position, account_id, debit_amount, credit_amount, description
FROM transaction_lines
WHERE transaction_id = ?
ORDER BY position`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("listing lines of %s: %w", transactionID, err)
	}
	defer rows.Close()

	var out []model.TransactionLine
	for rows.Next() {
		var l model.TransactionLine
		if err := rows.Scan(&l.ID, &l.TransactionID, &l.Position, &l.AccountID, &l.DebitAmount, &l.CreditAmount, &l.Description); err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *tx) FindMaxTransactionNumber(ctx context.Context, businessID, prefix string) (string, bool, error) {
	var number string
	err := t.tx.QueryRowContext(ctx, `
SELECT transaction_number
FROM transactions
WHERE business_id = ? AND substr(transaction_number, 1, length(?)) = ?
ORDER BY transaction_number DESC
LIMIT 1`, businessID, prefix, prefix).Scan(&number)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading max transaction number: %w", err)
	}
	return number, true, nil
}

func (t *tx) InsertTransaction(ctx context.Context, txn model.Transaction) error {
	var reversedBy sql.NullString
	if txn.ReversedByTransactionID != "" {
		reversedBy = sql.NullString{String: txn.ReversedByTransactionID, Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO transactions (`+transactionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.BusinessID, txn.TransactionNumber, formatTime(txn.TransactionDate), txn.Description, txn.Reference,
		string(txn.Type), txn.IsReversed, reversedBy, txn.CreatedBy, formatTime(txn.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting transaction %s: %w", txn.TransactionNumber, mapErr(err))
	}
	return nil
}

func (t *tx) InsertTransactionLines(ctx context.Context, lines []model.TransactionLine) error {
	stmt, err := t.tx.PrepareContext(ctx, `
INSERT INTO transaction_lines (id, transaction_id, position, account_id, debit_amount, credit_amount, description)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing line insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range lines {
		if _, err := stmt.ExecContext(ctx, l.ID, l.TransactionID, l.Position, l.AccountID,
			l.DebitAmount.String(), l.CreditAmount.String(), l.Description); err != nil {
			return fmt.Errorf("inserting line %d: %w", l.Position, mapErr(err))
		}
	}
	return nil
}

// IncrementAccountBalance reads and rewrites the balance in Go so the
// decimal text keeps full precision. The unit already holds the write lock,
// so no other unit can slip in between.
func (t *tx) IncrementAccountBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	var balance decimal.Decimal
	err := t.tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("account %s: %w", accountID, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading balance of %s: %w", accountID, err)
	}

	if _, err := t.tx.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`,
		balance.Add(delta).String(), accountID); err != nil {
		return fmt.Errorf("updating balance of %s: %w", accountID, err)
	}
	return nil
}

func (t *tx) MarkReversed(ctx context.Context, transactionID, reversedByID string) error {
	res, err := t.tx.ExecContext(ctx, `
UPDATE transactions
SET is_reversed = 1, reversed_by_transaction_id = ?
WHERE id = ? AND is_reversed = 0`, reversedByID, transactionID)
	if err != nil {
		return fmt.Errorf("marking %s reversed: %w", transactionID, mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking %s reversed: %w", transactionID, err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM transactions WHERE id = ?`, transactionID).Scan(&exists); err != nil {
		return fmt.Errorf("checking transaction %s: %w", transactionID, err)
	}
	if exists == 0 {
		return fmt.Errorf("transaction %s: %w", transactionID, store.ErrNotFound)
	}
	return fmt.Errorf("transaction %s: %w", transactionID, store.ErrAlreadyReversed)
}

func mapErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", store.ErrNotFound, err)
		}
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}
