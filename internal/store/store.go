// Package store defines the persistence contract the ledger posts through.
// Backends live in sub-packages and must pass storetest.Run.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique key (account code, transaction
	// number) is already taken.
	ErrDuplicate = errors.New("duplicate record")

	// ErrAlreadyReversed is returned by MarkReversed when the transaction
	// already carries a reversal link.
	ErrAlreadyReversed = errors.New("transaction already reversed")
)

// Store is a durable home for accounts, transactions and transaction lines.
type Store interface {
	// RunAtomic runs fn as one unit of work. Every write made through the
	// Tx commits together when fn returns nil; any error rolls all of them
	// back. Units that assign transaction numbers for the same business never
	// interleave.
	RunAtomic(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is the view of the store inside one atomic unit. A Tx must not be used
// after the RunAtomic call that produced it returns.
type Tx interface {
	// ListAccounts orders by code, ListTransactions by transaction number and
	// FindTransactionLines by line position.
	FindAccount(ctx context.Context, businessID, accountID string) (model.Account, error)
	ListAccounts(ctx context.Context, businessID string) ([]model.Account, error)
	InsertAccount(ctx context.Context, account model.Account) error

	FindTransaction(ctx context.Context, transactionID string) (model.Transaction, error)
	ListTransactions(ctx context.Context, businessID string) ([]model.Transaction, error)
	FindTransactionLines(ctx context.Context, transactionID string) ([]model.TransactionLine, error)

	// FindMaxTransactionNumber returns the highest number of businessID that
	// starts with prefix. found is false when there is none.
	FindMaxTransactionNumber(ctx context.Context, businessID, prefix string) (number string, found bool, err error)

	InsertTransaction(ctx context.Context, txn model.Transaction) error
	InsertTransactionLines(ctx context.Context, lines []model.TransactionLine) error

	// IncrementAccountBalance adds delta to the account balance without a
	// read-modify-write race against other units.
	IncrementAccountBalance(ctx context.Context, accountID string, delta decimal.Decimal) error

	// MarkReversed flags a transaction as reversed by reversedByID. It fails
	// with ErrAlreadyReversed if the flag is already set.
	MarkReversed(ctx context.Context, transactionID, reversedByID string) error
}
