package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
)

// LineRequest is one line of a journal entry. The account is named either by
// id or by code.
type LineRequest struct {
	AccountID   string          `json:"accountId,omitempty"`
	AccountCode string          `json:"accountCode,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

// JournalEntryRequest is the body of POST /businesses/{id}/journal-entries.
type JournalEntryRequest struct {
	TransactionDate string                `json:"transactionDate,omitempty"` // 2006-01-02 or RFC 3339
	Description     string                `json:"description"`
	Reference       string                `json:"reference,omitempty"`
	Type            model.TransactionType `json:"type,omitempty"`
	Lines           []LineRequest         `json:"lines"`
}

// MovementRequest is the body of the income and expense endpoints.
type MovementRequest struct {
	AccountID       string          `json:"accountId,omitempty"`
	AccountCode     string          `json:"accountCode,omitempty"`
	CashAccountID   string          `json:"cashAccountId,omitempty"`
	CashAccountCode string          `json:"cashAccountCode,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Date            string          `json:"date,omitempty"`
	Description     string          `json:"description"`
	Reference       string          `json:"reference,omitempty"`
}

// ReverseRequest is the body of POST /transactions/{id}/reverse.
type ReverseRequest struct {
	Reason string `json:"reason"`
}

// AccountRequest is the body of POST /businesses/{id}/accounts.
type AccountRequest struct {
	Code     string            `json:"code"`
	Name     string            `json:"name"`
	Type     model.AccountType `json:"type"`
	IsActive *bool             `json:"isActive,omitempty"` // default true
}

// TransactionResponse wraps a transaction and, when loaded, its lines.
type TransactionResponse struct {
	Transaction model.Transaction       `json:"transaction"`
	Lines       []model.TransactionLine `json:"lines,omitempty"`
}

// parseDate accepts a calendar date or a full timestamp. Empty means "let
// the ledger pick".
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &ledger.InvalidEntryError{Reason: fmt.Sprintf("invalid date %q", s)}
	}
	return t, nil
}

// resolveAccount returns id when set, otherwise the id of the account with
// code in the business.
func (s *Server) resolveAccount(ctx context.Context, businessID, id, code string) (string, error) {
	if id != "" || code == "" {
		return id, nil
	}
	acct, err := s.ledger.AccountByCode(ctx, businessID, code)
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}
