package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Totals returns the debit and credit sums of lines.
func Totals(lines []Line) (debits, credits decimal.Decimal) {
	debits, credits = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debits = debits.Add(l.Debit)
		credits = credits.Add(l.Credit)
	}
	return debits, credits
}

// ValidateEntry checks everything about entry that needs no store access.
// Rules run in order: business and type, non-negative amounts, balance,
// non-zero total.
func ValidateEntry(entry JournalEntry) error {
	if entry.BusinessID == "" {
		return &InvalidEntryError{Reason: "business ID is required"}
	}
	if entry.Type != "" && !entry.Type.Valid() {
		return &InvalidEntryError{Reason: fmt.Sprintf("unknown transaction type %q", entry.Type)}
	}

	for _, l := range entry.Lines {
		if l.Debit.IsNegative() {
			return &InvalidAmountError{Amount: l.Debit}
		}
		if l.Credit.IsNegative() {
			return &InvalidAmountError{Amount: l.Credit}
		}
	}

	debits, credits := Totals(entry.Lines)
	if !debits.Equal(credits) {
		return &ImbalancedEntryError{Debits: debits, Credits: credits}
	}
	if !debits.IsPositive() {
		return &EmptyEntryError{}
	}
	return nil
}

// resolveAccounts loads every account referenced by lines and checks that it
// belongs to businessID and is active.
func resolveAccounts(ctx context.Context, tx store.Tx, businessID string, lines []Line) (map[string]model.Account, error) {
	accounts := make(map[string]model.Account, len(lines))
	for _, l := range lines {
		if _, seen := accounts[l.AccountID]; seen {
			continue
		}
		acct, err := tx.FindAccount(ctx, businessID, l.AccountID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, &UnknownOrInactiveAccountError{AccountID: l.AccountID}
		}
		if err != nil {
			return nil, fmt.Errorf("loading account %s: %w", l.AccountID, err)
		}
		if !acct.IsActive {
			return nil, &UnknownOrInactiveAccountError{AccountID: l.AccountID, Inactive: true}
		}
		accounts[l.AccountID] = acct
	}
	return accounts, nil
}
