// Package storetest is the conformance suite every store.Store backend runs
// from its own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Opener returns an empty store. The suite closes it.
type Opener func(t *testing.T) store.Store

// Run executes the whole suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, open(t)) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, open(t)) })
	t.Run("MaxTransactionNumber", func(t *testing.T) { testMaxTransactionNumber(t, open(t)) })
	t.Run("IncrementBalance", func(t *testing.T) { testIncrementBalance(t, open(t)) })
	t.Run("MarkReversed", func(t *testing.T) { testMarkReversed(t, open(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("ConcurrentUnits", func(t *testing.T) { testConcurrentUnits(t, open(t)) })
}

var day = time.Date(2025, 2, 14, 9, 30, 0, 0, time.UTC)

func atomic(t *testing.T, s store.Store, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.RunAtomic(ctx, func(tx store.Tx) error { return fn(ctx, tx) }))
}

func account(businessID, code string, typ model.AccountType) model.Account {
	return model.Account{
		ID:         id.New(),
		BusinessID: businessID,
		Code:       code,
		Name:       "Account " + code,
		Type:       typ,
		Balance:    decimal.Zero,
		IsActive:   true,
		CreatedAt:  day,
	}
}

func transaction(businessID, number string) model.Transaction {
	return model.Transaction{
		ID:                id.New(),
		BusinessID:        businessID,
		TransactionNumber: number,
		TransactionDate:   day,
		Description:       "test " + number,
		Reference:         "REF-" + number,
		Type:              model.TypeManualJournal,
		CreatedBy:         "tester",
		CreatedAt:         day,
	}
}

func testAccounts(t *testing.T, s store.Store) {
	defer s.Close()

	cash := account("biz", "1000", model.AccountTypeAsset)
	revenue := account("biz", "4000", model.AccountTypeIncome)
	revenue.IsActive = false
	other := account("other", "1000", model.AccountTypeAsset)

	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		for _, a := range []model.Account{revenue, cash, other} {
			if err := tx.InsertAccount(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})

	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.FindAccount(ctx, "biz", cash.ID)
		require.NoError(t, err)
		assert.Equal(t, cash.Code, got.Code)
		assert.Equal(t, cash.Name, got.Name)
		assert.Equal(t, model.AccountTypeAsset, got.Type)
		assert.True(t, got.IsActive)
		assert.True(t, got.Balance.IsZero())
		assert.True(t, got.CreatedAt.Equal(day))

		got, err = tx.FindAccount(ctx, "biz", revenue.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		_, err = tx.FindAccount(ctx, "other", cash.ID)
		assert.ErrorIs(t, err, store.ErrNotFound, "account is scoped to its business")
		_, err = tx.FindAccount(ctx, "biz", "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)

		list, err := tx.ListAccounts(ctx, "biz")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "1000", list[0].Code)
		assert.Equal(t, "4000", list[1].Code)
		return nil
	})

	dup := account("biz", "1000", model.AccountTypeAsset)
	err := s.RunAtomic(context.Background(), func(tx store.Tx) error {
		return tx.InsertAccount(context.Background(), dup)
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func testTransactions(t *testing.T, s store.Store) {
	defer s.Close()

	cash := account("biz", "1000", model.AccountTypeAsset)
	revenue := account("biz", "4000", model.AccountTypeIncome)
	first := transaction("biz", "JE-2025-000001")
	second := transaction("biz", "JE-2025-000002")

	lines := []model.TransactionLine{
		{ID: id.New(), TransactionID: first.ID, Position: 2, AccountID: revenue.ID, CreditAmount: decimal.RequireFromString("1234.5678"), DebitAmount: decimal.Zero, Description: "credit side"},
		{ID: id.New(), TransactionID: first.ID, Position: 1, AccountID: cash.ID, DebitAmount: decimal.RequireFromString("1234.5678"), CreditAmount: decimal.Zero, Description: "debit side"},
	}

	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertAccount(ctx, cash))
		require.NoError(t, tx.InsertAccount(ctx, revenue))
		require.NoError(t, tx.InsertTransaction(ctx, second))
		require.NoError(t, tx.InsertTransaction(ctx, first))
		return tx.InsertTransactionLines(ctx, lines)
	})

	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.FindTransaction(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.TransactionNumber, got.TransactionNumber)
		assert.Equal(t, first.Description, got.Description)
		assert.Equal(t, first.Reference, got.Reference)
		assert.Equal(t, first.Type, got.Type)
		assert.Equal(t, first.CreatedBy, got.CreatedBy)
		assert.True(t, got.TransactionDate.Equal(day))
		assert.False(t, got.IsReversed)
		assert.Empty(t, got.ReversedByTransactionID)

		_, err = tx.FindTransaction(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)

		list, err := tx.ListTransactions(ctx, "biz")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, first.ID, list[0].ID)
		assert.Equal(t, second.ID, list[1].ID)

		gotLines, err := tx.FindTransactionLines(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, gotLines, 2)
		assert.Equal(t, 1, gotLines[0].Position)
		assert.Equal(t, cash.ID, gotLines[0].AccountID)
		assert.Equal(t, "debit side", gotLines[0].Description)
		assert.True(t, gotLines[0].DebitAmount.Equal(decimal.RequireFromString("1234.5678")))
		assert.True(t, gotLines[0].CreditAmount.IsZero())
		assert.True(t, gotLines[1].CreditAmount.Equal(decimal.RequireFromString("1234.5678")))

		none, err := tx.FindTransactionLines(ctx, second.ID)
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	})

	dup := transaction("biz", "JE-2025-000001")
	err := s.RunAtomic(context.Background(), func(tx store.Tx) error {
		return tx.InsertTransaction(context.Background(), dup)
	})
	assert.ErrorIs(t, err, store.ErrDuplicate, "numbers are unique per business")

	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertTransaction(ctx, transaction("other", "JE-2025-000001"))
	})
}

func testMaxTransactionNumber(t *testing.T, s store.Store) {
	defer s.Close()

	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		_, found, err := tx.FindMaxTransactionNumber(ctx, "biz", id.TransactionNumberPrefix(2025))
		require.NoError(t, err)
		assert.False(t, found)

		for _, n := range []string{"JE-2025-000002", "JE-2025-000010", "JE-2025-000003", "JE-2026-000001"} {
			require.NoError(t, tx.InsertTransaction(ctx, transaction("biz", n)))
		}
		require.NoError(t, tx.InsertTransaction(ctx, transaction("other", "JE-2025-000099")))
		return nil
	})

	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		n, found, err := tx.FindMaxTransactionNumber(ctx, "biz", id.TransactionNumberPrefix(2025))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "JE-2025-000010", n)

		n, found, err = tx.FindMaxTransactionNumber(ctx, "biz", id.TransactionNumberPrefix(2026))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "JE-2026-000001", n)

		_, found, err = tx.FindMaxTransactionNumber(ctx, "biz", id.TransactionNumberPrefix(2024))
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	})
}

func testIncrementBalance(t *testing.T, s store.Store) {
	defer s.Close()

	cash := account("biz", "1000", model.AccountTypeAsset)
	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertAccount(ctx, cash))
		require.NoError(t, tx.IncrementAccountBalance(ctx, cash.ID, decimal.RequireFromString("100.25")))
		return tx.IncrementAccountBalance(ctx, cash.ID, decimal.RequireFromString("-40.10"))
	})

	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.FindAccount(ctx, "biz", cash.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.RequireFromString("60.15")), "got %s", got.Balance)

		err = tx.IncrementAccountBalance(ctx, "missing", decimal.NewFromInt(1))
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
}

func testMarkReversed(t *testing.T, s store.Store) {
	defer s.Close()

	orig := transaction("biz", "JE-2025-000001")
	rev := transaction("biz", "JE-2025-000002")
	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertTransaction(ctx, orig))
		require.NoError(t, tx.InsertTransaction(ctx, rev))
		return tx.MarkReversed(ctx, orig.ID, rev.ID)
	})

	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.FindTransaction(ctx, orig.ID)
		require.NoError(t, err)
		assert.True(t, got.IsReversed)
		assert.Equal(t, rev.ID, got.ReversedByTransactionID)

		err = tx.MarkReversed(ctx, orig.ID, rev.ID)
		assert.ErrorIs(t, err, store.ErrAlreadyReversed)

		err = tx.MarkReversed(ctx, "missing", rev.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
}

func testRollback(t *testing.T, s store.Store) {
	defer s.Close()

	cash := account("biz", "1000", model.AccountTypeAsset)
	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertAccount(ctx, cash)
	})

	boom := errors.New("boom")
	txn := transaction("biz", "JE-2025-000001")
	err := s.RunAtomic(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		require.NoError(t, tx.InsertTransaction(ctx, txn))
		require.NoError(t, tx.InsertTransactionLines(ctx, []model.TransactionLine{
			{ID: id.New(), TransactionID: txn.ID, Position: 1, AccountID: cash.ID, DebitAmount: decimal.NewFromInt(5), CreditAmount: decimal.Zero},
		}))
		require.NoError(t, tx.IncrementAccountBalance(ctx, cash.ID, decimal.NewFromInt(5)))
		return boom
	})
	require.ErrorIs(t, err, boom, "the unit's own error is returned")

	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.FindTransaction(ctx, txn.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		lines, err := tx.FindTransactionLines(ctx, txn.ID)
		require.NoError(t, err)
		assert.Empty(t, lines)

		got, err := tx.FindAccount(ctx, "biz", cash.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.IsZero())

		_, found, err := tx.FindMaxTransactionNumber(ctx, "biz", "JE-")
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	})
}

// testConcurrentUnits runs read-increment-write numbering from many
// goroutines; every unit must see the previous one's number.
func testConcurrentUnits(t *testing.T, s store.Store) {
	defer s.Close()

	cash := account("biz", "1000", model.AccountTypeAsset)
	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertAccount(ctx, cash)
	})

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			errs[i] = s.RunAtomic(ctx, func(tx store.Tx) error {
				cur, found, err := tx.FindMaxTransactionNumber(ctx, "biz", id.TransactionNumberPrefix(2025))
				if err != nil {
					return err
				}
				next, err := id.NextTransactionNumber(2025, cur, found)
				if err != nil {
					return err
				}
				if err := tx.InsertTransaction(ctx, transaction("biz", next)); err != nil {
					return fmt.Errorf("insert %s: %w", next, err)
				}
				return tx.IncrementAccountBalance(ctx, cash.ID, decimal.NewFromInt(1))
			})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	atomic(t, s, func(ctx context.Context, tx store.Tx) error {
		n, found, err := tx.FindMaxTransactionNumber(ctx, "biz", id.TransactionNumberPrefix(2025))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, id.FormatTransactionNumber(2025, workers), n)

		got, err := tx.FindAccount(ctx, "biz", cash.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.NewFromInt(workers)), "got %s", got.Balance)
		return nil
	})
}
