// Package postgres is a store.Store on PostgreSQL via lib/pq.
//
// Units run at READ COMMITTED. Numbering is serialized per business with a
// transaction-scoped advisory lock, balances move with single UPDATE
// statements, and reversal marking is a conditional UPDATE.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// PostgreSQL error codes mapped onto store sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store wraps a PostgreSQL connection pool.
type Store struct {
	db *sql.DB
}

// Open connects to dsn, configures the pool and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db.SetMaxIdleConns(20)
	db.SetMaxOpenConns(30)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(15 * time.Minute)

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// DB exposes the pool for tests and maintenance.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunAtomic implements store.Store.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
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
		return fmt.Errorf("commit tx: %w", err)
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
	var a model.Account
	err := row.Scan(&a.ID, &a.BusinessID, &a.Code, &a.Name, &a.Type, &a.Balance, &a.IsActive, &a.CreatedAt)
	return a, err
}

func (t *tx) FindAccount(ctx context.Context, businessID, accountID string) (model.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND business_id = $2`

	a, err := scanAccount(t.tx.QueryRowContext(ctx, query, accountID, businessID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, store.ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (t *tx) ListAccounts(ctx context.Context, businessID string) ([]model.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE business_id = $1 ORDER BY code`

	rows, err := t.tx.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *tx) InsertAccount(ctx context.Context, a model.Account) error {
	const query = `
INSERT INTO accounts (id, business_id, code, name, type, balance, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := t.tx.ExecContext(ctx, query,
		a.ID, a.BusinessID, a.Code, a.Name, string(a.Type), a.Balance, a.IsActive, a.CreatedAt); err != nil {
		return fmt.Errorf("create account: %w", mapErr(err))
	}
	return nil
}

const transactionColumns = `id, business_id, transaction_number, transaction_date, description, reference,
	type, is_reversed, reversed_by_transaction_id, created_by, created_at`

func scanTransaction(row scanner) (model.Transaction, error) {
	var (
		txn        model.Transaction
		reversedBy sql.NullString
	)
	err := row.Scan(&txn.ID, &txn.BusinessID, &txn.TransactionNumber, &txn.TransactionDate, &txn.Description,
		&txn.Reference, &txn.Type, &txn.IsReversed, &reversedBy, &txn.CreatedBy, &txn.CreatedAt)
	txn.ReversedByTransactionID = reversedBy.String
	return txn, err
}

// FindTransaction locks the row so a concurrent reversal of the same
// transaction waits for this unit to finish.
func (t *tx) FindTransaction(ctx context.Context, transactionID string) (model.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	txn, err := scanTransaction(t.tx.QueryRowContext(ctx, query, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return txn, nil
}

func (t *tx) ListTransactions(ctx context.Context, businessID string) ([]model.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions WHERE business_id = $1 ORDER BY transaction_number`

	rows, err := t.tx.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

func (t *tx) FindTransactionLines(ctx context.Context, transactionID string) ([]model.TransactionLine, error) {
	const query = `
SELECT id, transaction_id, position, account_id, debit_amount, credit_amount, description
FROM transaction_lines
WHERE transaction_id = $1
ORDER BY position`

	rows, err := t.tx.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list transaction lines: %w", err)
	}
	defer rows.Close()

	var out []model.TransactionLine
	for rows.Next() {
		var l model.TransactionLine
		if err := rows.Scan(&l.ID, &l.TransactionID, &l.Position, &l.AccountID, &l.DebitAmount, &l.CreditAmount, &l.Description); err != nil {
			return nil, fmt.Errorf("scan transaction line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// FindMaxTransactionNumber takes the business's numbering lock before
// reading. The lock is held until the unit commits or rolls back, so the
// next unit reads a maximum that already includes this unit's insert.
func (t *tx) FindMaxTransactionNumber(ctx context.Context, businessID, prefix string) (string, bool, error) {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, businessID); err != nil {
		return "", false, fmt.Errorf("lock numbering: %w", err)
	}

	const query = `
SELECT transaction_number
FROM transactions
WHERE business_id = $1 AND left(transaction_number, length($2)) = $2
ORDER BY transaction_number DESC
LIMIT 1`

	var number string
	err := t.tx.QueryRowContext(ctx, query, businessID, prefix).Scan(&number)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("max transaction number: %w", err)
	}
	return number, true, nil
}

func (t *tx) InsertTransaction(ctx context.Context, txn model.Transaction) error {
	const query = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var reversedBy sql.NullString
	if txn.ReversedByTransactionID != "" {
		reversedBy = sql.NullString{String: txn.ReversedByTransactionID, Valid: true}
	}
	if _, err := t.tx.ExecContext(ctx, query,
		txn.ID, txn.BusinessID, txn.TransactionNumber, txn.TransactionDate, txn.Description, txn.Reference,
		string(txn.Type), txn.IsReversed, reversedBy, txn.CreatedBy, txn.CreatedAt); err != nil {
		return fmt.Errorf("create transaction: %w", mapErr(err))
	}
	return nil
}

func (t *tx) InsertTransactionLines(ctx context.Context, lines []model.TransactionLine) error {
	const query = `
INSERT INTO transaction_lines (id, transaction_id, position, account_id, debit_amount, credit_amount, description)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, l := range lines {
		if _, err := t.tx.ExecContext(ctx, query,
			l.ID, l.TransactionID, l.Position, l.AccountID, l.DebitAmount, l.CreditAmount, l.Description); err != nil {
			return fmt.Errorf("create transaction line %d: %w", l.Position, mapErr(err))
		}
	}
	return nil
}

func (t *tx) IncrementAccountBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	const query = `UPDATE accounts SET balance = balance + $2::numeric WHERE id = $1`

	res, err := t.tx.ExecContext(ctx, query, accountID, delta.String())
	if err != nil {
		return fmt.Errorf("increment balance: %w", err)
	}
	return requireRows(res, fmt.Errorf("account %s: %w", accountID, store.ErrNotFound))
}

func (t *tx) MarkReversed(ctx context.Context, transactionID, reversedByID string) error {
	const query = `
UPDATE transactions
SET is_reversed = TRUE, reversed_by_transaction_id = $2
WHERE id = $1 AND NOT is_reversed`

	res, err := t.tx.ExecContext(ctx, query, transactionID, reversedByID)
	if err != nil {
		return fmt.Errorf("mark reversed: %w", mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark reversed rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, transactionID).Scan(&exists); err != nil {
		return fmt.Errorf("check transaction: %w", err)
	}
	if !exists {
		return fmt.Errorf("transaction %s: %w", transactionID, store.ErrNotFound)
	}
	return fmt.Errorf("transaction %s: %w", transactionID, store.ErrAlreadyReversed)
}

func requireRows(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func mapErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %v", store.ErrNotFound, err)
		}
	}
	return err
}
