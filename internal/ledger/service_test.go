package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

func TestPostJournalEntry_Balanced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.svc.PostJournalEntry(ctx, JournalEntry{
		BusinessID:      testBusiness,
		TransactionDate: date(2025, 3, 1),
		Description:     "Supplies on credit",
		Reference:       "INV-77",
		Lines: []Line{
			{AccountID: f.expense, Debit: dec("120.50"), Description: "paper"},
			{AccountID: f.payable, Credit: dec("120.50"), Description: "owed to supplier"},
		},
		ActorID: "user-7",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, "JE-2025-000001", txn.TransactionNumber)
	assert.Equal(t, model.TypeManualJournal, txn.Type)
	assert.False(t, txn.IsReversed)
	assert.Equal(t, "user-7", txn.CreatedBy)

	got, lines, err := f.svc.Transaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.TransactionNumber, got.TransactionNumber)
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].Position)
	assert.Equal(t, f.expense, lines[0].AccountID)
	assert.Equal(t, "paper", lines[0].Description)

	debits, credits := decimal.Zero, decimal.Zero
	for _, l := range lines {
		debits = debits.Add(l.DebitAmount)
		credits = credits.Add(l.CreditAmount)
	}
	assert.True(t, debits.Equal(credits), "entry must balance")

	assert.True(t, f.balance(t, f.expense).Equal(dec("120.50")))
	assert.True(t, f.balance(t, f.payable).Equal(dec("120.50")), "liability credit increases balance")
}

func TestPostJournalEntry_Imbalanced(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PostJournalEntry(context.Background(), JournalEntry{
		BusinessID: testBusiness,
		Lines: []Line{
			{AccountID: f.cash, Debit: dec("100")},
			{AccountID: f.revenue, Credit: dec("90")},
		},
	})
	var imbalanced *ImbalancedEntryError
	require.ErrorAs(t, err, &imbalanced)
	assert.True(t, imbalanced.Debits.Equal(dec("100")))
	assert.True(t, imbalanced.Credits.Equal(dec("90")))
	assert.Contains(t, err.Error(), "100")
	assert.Contains(t, err.Error(), "90")
	assert.True(t, IsValidation(err))

	assert.Zero(t, f.transactionCount(t))
	assert.True(t, f.balance(t, f.cash).IsZero())
	assert.True(t, f.balance(t, f.revenue).IsZero())
}

func TestPostJournalEntry_ZeroTotal(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		lines []Line
	}{
		{"no lines", nil},
		{"zero line", []Line{{AccountID: f.cash, Debit: decimal.Zero, Credit: decimal.Zero}}},
		{"zero pair", []Line{{AccountID: f.cash, Debit: dec("0.00")}, {AccountID: f.revenue, Credit: dec("0")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PostJournalEntry(context.Background(), JournalEntry{
				BusinessID: testBusiness,
				Lines:      tt.lines,
			})
			var empty *EmptyEntryError
			assert.ErrorAs(t, err, &empty)
		})
	}
	assert.Zero(t, f.transactionCount(t))
}

func TestPostJournalEntry_InactiveAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PostJournalEntry(context.Background(), JournalEntry{
		BusinessID: testBusiness,
		Lines: []Line{
			{AccountID: f.cash, Debit: dec("50")},
			{AccountID: f.inactive, Credit: dec("50")},
		},
	})
	var acctErr *UnknownOrInactiveAccountError
	require.ErrorAs(t, err, &acctErr)
	assert.Equal(t, f.inactive, acctErr.AccountID)
	assert.True(t, acctErr.Inactive)

	assert.Zero(t, f.transactionCount(t))
	assert.True(t, f.balance(t, f.cash).IsZero(), "no partial writes")
}

func TestPostJournalEntry_UnknownAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PostJournalEntry(context.Background(), JournalEntry{
		BusinessID: testBusiness,
		Lines: []Line{
			{AccountID: f.cash, Debit: dec("50")},
			{AccountID: "missing", Credit: dec("50")},
		},
	})
	var acctErr *UnknownOrInactiveAccountError
	require.ErrorAs(t, err, &acctErr)
	assert.Equal(t, "missing", acctErr.AccountID)
	assert.False(t, acctErr.Inactive)
}

func TestPostJournalEntry_AccountOfOtherBusiness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.svc.CreateAccount(ctx, model.Account{
		BusinessID: "biz-2", Code: "1000", Name: "Cash", Type: model.AccountTypeAsset, IsActive: true,
	})
	require.NoError(t, err)

	_, err = f.svc.PostJournalEntry(ctx, JournalEntry{
		BusinessID: testBusiness,
		Lines: []Line{
			{AccountID: other.ID, Debit: dec("10")},
			{AccountID: f.revenue, Credit: dec("10")},
		},
	})
	var acctErr *UnknownOrInactiveAccountError
	require.ErrorAs(t, err, &acctErr)
	assert.Equal(t, other.ID, acctErr.AccountID)
}

func TestPostJournalEntry_NegativeAmount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PostJournalEntry(context.Background(), JournalEntry{
		BusinessID: testBusiness,
		Lines: []Line{
			{AccountID: f.cash, Debit: dec("-10")},
			{AccountID: f.revenue, Debit: dec("-10")},
		},
	})
	var amountErr *InvalidAmountError
	require.ErrorAs(t, err, &amountErr)
	assert.True(t, amountErr.Amount.Equal(dec("-10")))
}

func TestPostJournalEntry_MissingBusiness(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PostJournalEntry(context.Background(), JournalEntry{
		Lines: []Line{
			{AccountID: f.cash, Debit: dec("10")},
			{AccountID: f.revenue, Credit: dec("10")},
		},
	})
	var invalid *InvalidEntryError
	require.ErrorAs(t, err, &invalid)
	assert.True(t, IsValidation(err))
}

func TestPostJournalEntry_DefaultsDateToNow(t *testing.T) {
	f := newFixture(t)

	txn, err := f.svc.PostJournalEntry(context.Background(), JournalEntry{
		BusinessID: testBusiness,
		Lines: []Line{
			{AccountID: f.cash, Debit: dec("10")},
			{AccountID: f.revenue, Credit: dec("10")},
		},
	})
	require.NoError(t, err)
	assert.True(t, txn.TransactionDate.Equal(testNow))
	assert.Equal(t, "JE-2025-000001", txn.TransactionNumber)
}

func TestPostIncome(t *testing.T) {
	f := newFixture(t)

	txn, err := f.svc.PostIncome(context.Background(), Movement{
		BusinessID:    testBusiness,
		AccountID:     f.revenue,
		CashAccountID: f.cash,
		Amount:        dec("500"),
		Date:          date(2025, 4, 2),
		Description:   "Consulting",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TypeIncome, txn.Type)

	assert.True(t, f.balance(t, f.cash).Equal(dec("500")), "asset debit increases")
	assert.True(t, f.balance(t, f.revenue).Equal(dec("500")), "income credit increases")
}

func TestPostExpense(t *testing.T) {
	f := newFixture(t)

	txn, err := f.svc.PostExpense(context.Background(), Movement{
		BusinessID:    testBusiness,
		AccountID:     f.expense,
		CashAccountID: f.cash,
		Amount:        dec("200"),
		Date:          date(2025, 4, 3),
		Description:   "Rent",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TypeExpense, txn.Type)

	assert.True(t, f.balance(t, f.expense).Equal(dec("200")))
	assert.True(t, f.balance(t, f.cash).Equal(dec("-200")))
}

func TestPostIncomeExpense_InvalidAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, amount := range []string{"0", "-5"} {
		m := Movement{
			BusinessID:    testBusiness,
			AccountID:     f.revenue,
			CashAccountID: f.cash,
			Amount:        dec(amount),
		}
		_, err := f.svc.PostIncome(ctx, m)
		var amountErr *InvalidAmountError
		assert.ErrorAs(t, err, &amountErr, "income %s", amount)

		m.AccountID = f.expense
		_, err = f.svc.PostExpense(ctx, m)
		assert.ErrorAs(t, err, &amountErr, "expense %s", amount)
	}
	assert.Zero(t, f.transactionCount(t))
}

func TestReverseTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	income, err := f.svc.PostIncome(ctx, Movement{
		BusinessID:    testBusiness,
		AccountID:     f.revenue,
		CashAccountID: f.cash,
		Amount:        dec("500"),
		Date:          date(2025, 4, 2),
		Description:   "Consulting",
	})
	require.NoError(t, err)

	rev, err := f.svc.ReverseTransaction(ctx, income.ID, "entered twice", "user-9")
	require.NoError(t, err)
	assert.NotEqual(t, income.ID, rev.ID)
	assert.Equal(t, "JE-2025-000002", rev.TransactionNumber)
	assert.Equal(t, "Reversal: Consulting - entered twice", rev.Description)
	assert.Equal(t, "REV-"+income.TransactionNumber, rev.Reference)
	assert.Equal(t, model.TypeIncome, rev.Type)
	assert.True(t, rev.TransactionDate.Equal(testNow))
	assert.Equal(t, "user-9", rev.CreatedBy)

	_, lines, err := f.svc.Transaction(ctx, rev.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, f.cash, lines[0].AccountID)
	assert.True(t, lines[0].CreditAmount.Equal(dec("500")))
	assert.True(t, lines[0].DebitAmount.IsZero())
	assert.Equal(t, f.revenue, lines[1].AccountID)
	assert.True(t, lines[1].DebitAmount.Equal(dec("500")))
	assert.Equal(t, "Reversal: Consulting", lines[1].Description)

	assert.True(t, f.balance(t, f.cash).IsZero())
	assert.True(t, f.balance(t, f.revenue).IsZero())

	orig, _, err := f.svc.Transaction(ctx, income.ID)
	require.NoError(t, err)
	assert.True(t, orig.IsReversed)
	assert.Equal(t, rev.ID, orig.ReversedByTransactionID)
	assert.False(t, rev.IsReversed)
}

func TestReverseTransaction_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.svc.PostExpense(ctx, Movement{
		BusinessID: testBusiness, AccountID: f.expense, CashAccountID: f.cash, Amount: dec("40"),
	})
	require.NoError(t, err)

	rev, err := f.svc.ReverseTransaction(ctx, txn.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Reversal: ", rev.Description)

	_, err = f.svc.ReverseTransaction(ctx, txn.ID, "again", "")
	var already *AlreadyReversedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, txn.ID, already.TransactionID)
	assert.Equal(t, rev.ID, already.ReversedBy)
	assert.False(t, IsValidation(err))

	assert.Equal(t, 2, f.transactionCount(t), "failed reversal writes nothing")
	assert.True(t, f.balance(t, f.cash).IsZero())
}

func TestReverseTransaction_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ReverseTransaction(context.Background(), "nope", "typo", "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.TransactionID)
}

func TestReverseTransaction_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.svc.PostIncome(ctx, Movement{
		BusinessID: testBusiness, AccountID: f.revenue, CashAccountID: f.cash, Amount: dec("75"),
	})
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ReverseTransaction(ctx, txn.ID, "race", "")
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 2, f.transactionCount(t))
	assert.True(t, f.balance(t, f.cash).IsZero())
}

func TestSequentialNumbering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	post := func(d int, year int) model.Transaction {
		t.Helper()
		txn, err := f.svc.PostIncome(ctx, Movement{
			BusinessID:    testBusiness,
			AccountID:     f.revenue,
			CashAccountID: f.cash,
			Amount:        dec("1"),
			Date:          date(year, 1, d),
		})
		require.NoError(t, err)
		return txn
	}

	assert.Equal(t, "JE-2025-000001", post(1, 2025).TransactionNumber)
	assert.Equal(t, "JE-2025-000002", post(2, 2025).TransactionNumber)
	assert.Equal(t, "JE-2025-000003", post(3, 2025).TransactionNumber)
	assert.Equal(t, "JE-2026-000001", post(1, 2026).TransactionNumber)
	assert.Equal(t, "JE-2025-000004", post(4, 2025).TransactionNumber)
}

func TestSequentialNumbering_PerBusiness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for _, code := range []string{"1000", "4000"} {
		typ := model.AccountTypeAsset
		if code == "4000" {
			typ = model.AccountTypeIncome
		}
		a, err := f.svc.CreateAccount(ctx, model.Account{BusinessID: "biz-2", Code: code, Name: code, Type: typ, IsActive: true})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	_, err := f.svc.PostIncome(ctx, Movement{BusinessID: testBusiness, AccountID: f.revenue, CashAccountID: f.cash, Amount: dec("5")})
	require.NoError(t, err)
	txn, err := f.svc.PostIncome(ctx, Movement{BusinessID: "biz-2", AccountID: ids[1], CashAccountID: ids[0], Amount: dec("5")})
	require.NoError(t, err)
	assert.Equal(t, "JE-2025-000001", txn.TransactionNumber)
}

func TestConcurrentPostings_UniqueNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 20
	numbers := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txn, err := f.svc.PostIncome(ctx, Movement{
				BusinessID: testBusiness, AccountID: f.revenue, CashAccountID: f.cash, Amount: dec("2.50"),
			})
			if assert.NoError(t, err) {
				numbers[i] = txn.TransactionNumber
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, n := range numbers {
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	assert.True(t, f.balance(t, f.cash).Equal(dec("50")), "no lost updates")
	assert.True(t, f.balance(t, f.revenue).Equal(dec("50")))
}

func TestAtomicity_BalanceFailureRollsBack(t *testing.T) {
	base := newFixture(t)
	faulty := &faultyStore{Store: base.store, failOn: 2}
	svc := NewService(faulty, WithClock(func() time.Time { return testNow }))

	_, err := svc.PostJournalEntry(context.Background(), JournalEntry{
		BusinessID: testBusiness,
		Lines: []Line{
			{AccountID: base.expense, Debit: dec("30")},
			{AccountID: base.cash, Credit: dec("20")},
			{AccountID: base.payable, Credit: dec("10")},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInjected))
	assert.False(t, IsValidation(err))

	assert.Zero(t, base.transactionCount(t), "no transaction left behind")
	assert.True(t, base.balance(t, base.expense).IsZero(), "first increment rolled back")
	assert.True(t, base.balance(t, base.cash).IsZero())
	assert.True(t, base.balance(t, base.payable).IsZero())

	err = base.store.RunAtomic(context.Background(), func(tx store.Tx) error {
		n, found, err := tx.FindMaxTransactionNumber(context.Background(), testBusiness, "JE-")
		assert.False(t, found)
		assert.Empty(t, n)
		return err
	})
	require.NoError(t, err)
}

func TestAtomicity_ReversalFailureKeepsOriginalActive(t *testing.T) {
	base := newFixture(t)
	ctx := context.Background()

	txn, err := base.svc.PostIncome(ctx, Movement{
		BusinessID: testBusiness, AccountID: base.revenue, CashAccountID: base.cash, Amount: dec("500"),
	})
	require.NoError(t, err)

	faulty := &faultyStore{Store: base.store, failOn: 2}
	_, err = NewService(faulty).ReverseTransaction(ctx, txn.ID, "oops", "")
	require.ErrorIs(t, err, errInjected)

	orig, _, err := base.svc.Transaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.False(t, orig.IsReversed)
	assert.Empty(t, orig.ReversedByTransactionID)
	assert.Equal(t, 1, base.transactionCount(t))
	assert.True(t, base.balance(t, base.cash).Equal(dec("500")))
}
