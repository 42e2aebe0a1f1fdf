package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ImbalancedEntryError reports an entry whose debits and credits differ.
type ImbalancedEntryError struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

func (e *ImbalancedEntryError) Error() string {
	return fmt.Sprintf("entry does not balance: debits (%s) != credits (%s)", e.Debits.String(), e.Credits.String())
}

// EmptyEntryError reports a balanced entry that moves nothing.
type EmptyEntryError struct{}

func (e *EmptyEntryError) Error() string {
	return "entry total must be greater than zero"
}

// UnknownOrInactiveAccountError names an account that cannot be posted to.
type UnknownOrInactiveAccountError struct {
	AccountID string
	Inactive  bool // false: the account does not exist in the business
}

func (e *UnknownOrInactiveAccountError) Error() string {
	if e.Inactive {
		return fmt.Sprintf("account %q is inactive", e.AccountID)
	}
	return fmt.Sprintf("unknown account %q", e.AccountID)
}

// InvalidAmountError reports a negative line amount or a non-positive
// income/expense amount.
type InvalidAmountError struct {
	Amount decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %s", e.Amount.String())
}

// InvalidEntryError reports a malformed request that is not about amounts or
// accounts, such as a missing business ID.
type InvalidEntryError struct {
	Reason string
}

func (e *InvalidEntryError) Error() string {
	return "invalid entry: " + e.Reason
}

// NotFoundError reports a transaction that does not exist.
type NotFoundError struct {
	TransactionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("transaction %q not found", e.TransactionID)
}

// AlreadyReversedError reports a second reversal attempt.
type AlreadyReversedError struct {
	TransactionID string
	ReversedBy    string
}

func (e *AlreadyReversedError) Error() string {
	if e.ReversedBy == "" {
		return fmt.Sprintf("transaction %q is already reversed", e.TransactionID)
	}
	return fmt.Sprintf("transaction %q is already reversed by %q", e.TransactionID, e.ReversedBy)
}

// IsValidation reports whether err is caused by caller input rather than by
// the store. Callers must fix the input; retrying will not help.
func IsValidation(err error) bool {
	var (
		imbalanced *ImbalancedEntryError
		empty      *EmptyEntryError
		account    *UnknownOrInactiveAccountError
		amount     *InvalidAmountError
		invalid    *InvalidEntryError
	)
	return errors.As(err, &imbalanced) ||
		errors.As(err, &empty) ||
		errors.As(err, &account) ||
		errors.As(err, &amount) ||
		errors.As(err, &invalid)
}
