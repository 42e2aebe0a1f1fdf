package journal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/id"
)

// ValidationError describes one problem found in a journal file.
type ValidationError struct {
	TransactionNumber string
	Description       string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s]: %s", e.TransactionNumber, e.Description)
}

// AccountChecker tests whether an account code exists in the chart of accounts.
type AccountChecker interface {
	Exists(code string) bool
}

// Check reports rows of a year/month journal that could not have been
// written by the ledger: unbalanced transactions, negative or sub-cent
// amounts, unknown account codes, dates outside the month, and numbers
// from another year.
func Check(rows []Row, accounts AccountChecker, year, month int) []ValidationError {
	var errs []ValidationError

	type totals struct{ debit, credit decimal.Decimal }
	sums := make(map[string]*totals)
	var order []string

	for _, row := range rows {
		t, ok := sums[row.TransactionNumber]
		if !ok {
			t = &totals{}
			sums[row.TransactionNumber] = t
			order = append(order, row.TransactionNumber)
		}
		t.debit = t.debit.Add(row.Debit)
		t.credit = t.credit.Add(row.Credit)

		fail := func(format string, args ...any) {
			errs = append(errs, ValidationError{
				TransactionNumber: row.TransactionNumber,
				Description:       fmt.Sprintf("line %d: ", row.Line) + fmt.Sprintf(format, args...),
			})
		}

		if row.Debit.IsNegative() || row.Credit.IsNegative() {
			fail("negative amount")
		}
		if !row.Debit.Equal(row.Debit.Round(2)) || !row.Credit.Equal(row.Credit.Round(2)) {
			fail("amount has more than 2 decimal places")
		}
		if !accounts.Exists(row.AccountCode) {
			fail("unknown account %s", row.AccountCode)
		}
		if row.Date.Year() != year || int(row.Date.Month()) != month {
			fail("date %s not in %04d-%02d", row.Date.Format(dateFormat), year, month)
		}
		if y, _, err := id.ParseTransactionNumber(row.TransactionNumber); err != nil {
			fail("invalid transaction number: %v", err)
		} else if y != row.Date.Year() {
			fail("number year %d does not match date %s", y, row.Date.Format(dateFormat))
		}
	}

	for _, number := range order {
		t := sums[number]
		if !t.debit.Equal(t.credit) {
			errs = append(errs, ValidationError{
				TransactionNumber: number,
				Description:       fmt.Sprintf("debits (%s) != credits (%s)", t.debit.StringFixed(2), t.credit.StringFixed(2)),
			})
		}
	}

	return errs
}
