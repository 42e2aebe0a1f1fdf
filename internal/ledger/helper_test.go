package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/store/memory"
)

const testBusiness = "biz-1"

var testNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store    store.Store
	svc      *Service
	cash     string
	revenue  string
	expense  string
	payable  string
	inactive string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.New())
}

func newFixtureWithStore(t *testing.T, st store.Store) *fixture {
	t.Helper()
	svc := NewService(st, WithClock(func() time.Time { return testNow }))
	f := &fixture{store: st, svc: svc}

	ctx := context.Background()
	create := func(code, name string, typ model.AccountType, active bool) string {
		acct, err := svc.CreateAccount(ctx, model.Account{
			BusinessID: testBusiness,
			Code:       code,
			Name:       name,
			Type:       typ,
			IsActive:   active,
		})
		require.NoError(t, err)
		return acct.ID
	}
	f.cash = create("1000", "Cash", model.AccountTypeAsset, true)
	f.payable = create("2000", "Accounts Payable", model.AccountTypeLiability, true)
	f.revenue = create("4000", "Sales Revenue", model.AccountTypeIncome, true)
	f.expense = create("5000", "Operating Expenses", model.AccountTypeExpense, true)
	f.inactive = create("1900", "Old Bank", model.AccountTypeAsset, false)
	return f
}

func (f *fixture) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	var bal decimal.Decimal
	err := f.store.RunAtomic(context.Background(), func(tx store.Tx) error {
		a, err := tx.FindAccount(context.Background(), testBusiness, accountID)
		bal = a.Balance
		return err
	})
	require.NoError(t, err)
	return bal
}

func (f *fixture) transactionCount(t *testing.T) int {
	t.Helper()
	txns, err := f.svc.Transactions(context.Background(), testBusiness)
	require.NoError(t, err)
	return len(txns)
}

// faultyStore wraps a store and makes the n-th balance increment of every
// unit fail.
type faultyStore struct {
	store.Store
	failOn int
}

var errInjected = errors.New("injected balance failure")

func (s *faultyStore) RunAtomic(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.RunAtomic(ctx, func(tx store.Tx) error {
		return fn(&faultyTx{Tx: tx, failOn: s.failOn})
	})
}

type faultyTx struct {
	store.Tx
	failOn int
	calls  int
}

func (t *faultyTx) IncrementAccountBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	t.calls++
	if t.calls == t.failOn {
		return errInjected
	}
	return t.Tx.IncrementAccountBalance(ctx, accountID, delta)
}
