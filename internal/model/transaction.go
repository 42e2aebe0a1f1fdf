package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType records what kind of business event produced a journal entry.
type TransactionType string

const (
	TypeManualJournal  TransactionType = "manual_journal"
	TypeIncome         TransactionType = "income"
	TypeExpense        TransactionType = "expense"
	TypeInvoice        TransactionType = "invoice"
	TypeInvoicePayment TransactionType = "invoice_payment"
	TypeOpeningBalance TransactionType = "opening_balance"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeManualJournal, TypeIncome, TypeExpense, TypeInvoice, TypeInvoicePayment, TypeOpeningBalance:
		return true
	}
	return false
}

// Transaction is a committed journal entry. Its lines never change after
// insert; a reversal is a separate transaction.
type Transaction struct {
	ID                      string          `json:"id"`
	BusinessID              string          `json:"businessId"`
	TransactionNumber       string          `json:"transactionNumber"` // JE-2025-000001
	TransactionDate         time.Time       `json:"transactionDate"`
	Description             string          `json:"description"`
	Reference               string          `json:"reference,omitempty"`
	Type                    TransactionType `json:"type"`
	IsReversed              bool            `json:"isReversed"`
	ReversedByTransactionID string          `json:"reversedByTransactionId,omitempty"`
	CreatedBy               string          `json:"createdBy,omitempty"`
	CreatedAt               time.Time       `json:"createdAt"`
}

// TransactionLine is one debit/credit row of a transaction.
type TransactionLine struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transactionId"`
	Position      int             `json:"position"` // 1-based order within the transaction
	AccountID     string          `json:"accountId"`
	DebitAmount   decimal.Decimal `json:"debitAmount"`
	CreditAmount  decimal.Decimal `json:"creditAmount"`
	Description   string          `json:"description,omitempty"`
}

// Net returns debit minus credit.
func (l TransactionLine) Net() decimal.Decimal {
	return l.DebitAmount.Sub(l.CreditAmount)
}

// BankTransaction represents a parsed bank CSV row.
type BankTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // negative = expense, positive = income
	Reference   string
	Type        string // bank transaction type (ACH_DEBIT, etc.)
}
