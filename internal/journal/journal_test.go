package journal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store/memory"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleRows() []Row {
	return []Row{
		{
			TransactionNumber: "JE-2025-000001",
			Date:              date(2025, 1, 3),
			Type:              model.TypeExpense,
			Line:              1,
			AccountCode:       "5000",
			AccountName:       "Operating Expenses",
			Debit:             dec("4.00"),
			Description:       "GitHub Pro, monthly",
			Reference:         "gh-123",
		},
		{
			TransactionNumber: "JE-2025-000001",
			Date:              date(2025, 1, 3),
			Type:              model.TypeExpense,
			Line:              2,
			AccountCode:       "1100",
			AccountName:       "Bank",
			Credit:            dec("4.00"),
			Description:       "GitHub Pro, monthly",
			Reference:         "gh-123",
		},
	}
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, sampleRows()))

	got, err := ReadRows(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	want := sampleRows()
	for i := range want {
		assert.Equal(t, want[i].TransactionNumber, got[i].TransactionNumber)
		assert.True(t, want[i].Date.Equal(got[i].Date))
		assert.Equal(t, want[i].Line, got[i].Line)
		assert.Equal(t, want[i].AccountCode, got[i].AccountCode)
		assert.True(t, want[i].Debit.Equal(got[i].Debit))
		assert.True(t, want[i].Credit.Equal(got[i].Credit))
		assert.Equal(t, want[i].Description, got[i].Description)
	}
}

func TestMarshalRow_BlankZeroSide(t *testing.T) {
	rec := MarshalRow(sampleRows()[0])
	assert.Equal(t, "4.00", rec[colDebit])
	assert.Equal(t, "", rec[colCredit])
	assert.Equal(t, "2025-01-03", rec[colDate])
}

func TestUnmarshalRow_Errors(t *testing.T) {
	good := MarshalRow(sampleRows()[0])

	_, err := UnmarshalRow(good[:5])
	assert.Error(t, err)

	bad := append([]string(nil), good...)
	bad[colDate] = "01/03/2025"
	_, err = UnmarshalRow(bad)
	assert.Error(t, err)

	bad = append([]string(nil), good...)
	bad[colDebit] = "four"
	_, err = UnmarshalRow(bad)
	assert.Error(t, err)
}

func TestReadRows_Empty(t *testing.T) {
	rows, err := ReadRows(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCheck(t *testing.T) {
	chart := accounts.NewService(accounts.DefaultChart("llc_single_member"))

	assert.Empty(t, Check(sampleRows(), chart, 2025, 1))

	tests := []struct {
		name   string
		mutate func(rows []Row)
	}{
		{"imbalanced", func(rows []Row) { rows[1].Credit = dec("3.99") }},
		{"negative", func(rows []Row) { rows[0].Debit = dec("-4.00"); rows[1].Credit = dec("-4.00") }},
		{"sub-cent", func(rows []Row) { rows[0].Debit = dec("4.001"); rows[1].Credit = dec("4.001") }},
		{"unknown account", func(rows []Row) { rows[0].AccountCode = "9999" }},
		{"wrong month", func(rows []Row) { rows[0].Date = date(2025, 2, 1) }},
		{"bad number", func(rows []Row) { rows[0].TransactionNumber = "X-1"; rows[1].TransactionNumber = "X-1" }},
		{"number year mismatch", func(rows []Row) {
			rows[0].TransactionNumber = "JE-2024-000001"
			rows[1].TransactionNumber = "JE-2024-000001"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := sampleRows()
			tt.mutate(rows)
			assert.NotEmpty(t, Check(rows, chart, 2025, 1))
		})
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	svc := ledger.NewService(memory.New())
	chart := accounts.DefaultChart("llc_single_member")
	seeded, err := accounts.Seed(ctx, svc, "biz-1", chart)
	require.NoError(t, err)

	ids := make(map[string]string)
	for _, a := range seeded {
		ids[a.Code] = a.ID
	}

	income, err := svc.PostIncome(ctx, ledger.Movement{
		BusinessID: "biz-1", AccountID: ids["4000"], CashAccountID: ids["1100"],
		Amount: dec("1500"), Date: date(2025, 1, 15), Description: "Invoice 7",
	})
	require.NoError(t, err)
	_, err = svc.PostExpense(ctx, ledger.Movement{
		BusinessID: "biz-1", AccountID: ids["5000"], CashAccountID: ids["1100"],
		Amount: dec("42.10"), Date: date(2025, 3, 2), Description: "Staples",
	})
	require.NoError(t, err)
	_, err = svc.ReverseTransaction(ctx, income.ID, "wrong client", "tester")
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := Export(ctx, svc, "biz-1", dir)
	require.NoError(t, err)
	// The reversal is dated today, so it lands in its own month.
	require.GreaterOrEqual(t, len(paths), 2)
	assert.Equal(t, MonthPath(dir, 2025, 1), paths[0])
	assert.Equal(t, MonthPath(dir, 2025, 3), paths[1])

	jan, err := ReadMonth(dir, 2025, 1)
	require.NoError(t, err)
	require.Len(t, jan, 2)
	assert.Equal(t, income.TransactionNumber, jan[0].TransactionNumber)
	assert.Equal(t, "1100", jan[0].AccountCode)
	assert.Equal(t, "1500.00", jan[0].Debit.StringFixed(2))
	assert.NotEmpty(t, jan[0].ReversedBy)

	months, err := Months(dir)
	require.NoError(t, err)
	assert.Equal(t, Month{Year: 2025, Month: 1}, months[0])
	assert.Equal(t, Month{Year: 2025, Month: 3}, months[1])

	checker := accounts.NewService(chart)
	for _, m := range months {
		rows, err := ReadMonth(dir, m.Year, m.Month)
		require.NoError(t, err)
		assert.Empty(t, Check(rows, checker, m.Year, m.Month), "%04d-%02d", m.Year, m.Month)
	}
}

func TestReadMonth_Missing(t *testing.T) {
	rows, err := ReadMonth(t.TempDir(), 2025, 1)
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestMonths_IgnoresOtherDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2025", "13"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2025", "13", "journal.csv"), nil, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "accounts"), 0o755))

	months, err := Months(dir)
	require.NoError(t, err)
	assert.Empty(t, months)
}
