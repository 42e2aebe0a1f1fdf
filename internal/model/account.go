package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// SignFor returns +1 for debit-normal account types (asset, expense) and -1
// for credit-normal ones (liability, equity, income).
func SignFor(t AccountType) int {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return 1
	default:
		return -1
	}
}

// Account is one entry in a business's chart of accounts.
type Account struct {
	ID         string          `json:"id"`
	BusinessID string          `json:"businessId"`
	Code       string          `json:"code"` // unique per business, e.g. "1000"
	Name       string          `json:"name"`
	Type       AccountType     `json:"type"`
	Balance    decimal.Decimal `json:"balance"`
	IsActive   bool            `json:"isActive"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Apply returns the balance change caused by posting debit and credit to a.
func (a Account) Apply(debit, credit decimal.Decimal) decimal.Decimal {
	return debit.Sub(credit).Mul(decimal.NewFromInt(int64(SignFor(a.Type))))
}
