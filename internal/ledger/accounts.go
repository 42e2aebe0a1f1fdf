package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// CreateAccount adds an account to a business's chart. The balance always
// starts at zero; ID and CreatedAt are assigned when empty.
func (s *Service) CreateAccount(ctx context.Context, acct model.Account) (model.Account, error) {
	acct.Code = strings.TrimSpace(acct.Code)
	acct.Name = strings.TrimSpace(acct.Name)
	switch {
	case acct.BusinessID == "":
		return model.Account{}, &InvalidEntryError{Reason: "business ID is required"}
	case acct.Code == "":
		return model.Account{}, &InvalidEntryError{Reason: "account code is required"}
	case acct.Name == "":
		return model.Account{}, &InvalidEntryError{Reason: "account name is required"}
	case !acct.Type.Valid():
		return model.Account{}, &InvalidEntryError{Reason: fmt.Sprintf("unknown account type %q", acct.Type)}
	}

	if acct.ID == "" {
		acct.ID = id.New()
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = s.now()
	}
	acct.Balance = decimal.Zero

	err := s.store.RunAtomic(ctx, func(tx store.Tx) error {
		return tx.InsertAccount(ctx, acct)
	})
	if err != nil {
		return model.Account{}, fmt.Errorf("creating account %s: %w", acct.Code, err)
	}

	s.log.Info("account created", "business", acct.BusinessID, "account", acct.ID, "code", acct.Code, "type", acct.Type)
	return acct, nil
}

// Accounts returns a business's chart of accounts ordered by code.
func (s *Service) Accounts(ctx context.Context, businessID string) ([]model.Account, error) {
	var out []model.Account
	err := s.store.RunAtomic(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListAccounts(ctx, businessID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return out, nil
}

// AccountByCode looks up an account by its business-scoped code.
func (s *Service) AccountByCode(ctx context.Context, businessID, code string) (model.Account, error) {
	accts, err := s.Accounts(ctx, businessID)
	if err != nil {
		return model.Account{}, err
	}
	for _, a := range accts {
		if a.Code == code {
			return a, nil
		}
	}
	return model.Account{}, &UnknownOrInactiveAccountError{AccountID: code}
}

// Transaction returns a transaction and its lines.
func (s *Service) Transaction(ctx context.Context, transactionID string) (model.Transaction, []model.TransactionLine, error) {
	var (
		txn   model.Transaction
		lines []model.TransactionLine
	)
	err := s.store.RunAtomic(ctx, func(tx store.Tx) error {
		var err error
		txn, err = tx.FindTransaction(ctx, transactionID)
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{TransactionID: transactionID}
		}
		if err != nil {
			return err
		}
		lines, err = tx.FindTransactionLines(ctx, transactionID)
		return err
	})
	if err != nil {
		return model.Transaction{}, nil, err
	}
	return txn, lines, nil
}

// Transactions returns every transaction of a business ordered by number.
func (s *Service) Transactions(ctx context.Context, businessID string) ([]model.Transaction, error) {
	var out []model.Transaction
	err := s.store.RunAtomic(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, businessID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return out, nil
}
