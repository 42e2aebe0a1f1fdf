package importer

import (
	"context"
	"fmt"

	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
)

// Poster is the part of the ledger that books bank rows.
type Poster interface {
	PostIncome(ctx context.Context, m ledger.Movement) (model.Transaction, error)
	PostExpense(ctx context.Context, m ledger.Movement) (model.Transaction, error)
}

// Accounts names the ledger accounts bank rows are booked against.
type Accounts struct {
	BusinessID string
	Cash       string // bank/cash account id
	Income     string // credited for deposits
	Expense    string // debited for withdrawals
	ActorID    string
}

// Result reports what Post did.
type Result struct {
	Posted  []model.Transaction
	Skipped []model.BankTransaction // zero-amount rows
}

// Post books each row as its own ledger entry: deposits through PostIncome,
// withdrawals through PostExpense with the absolute amount. It stops at the
// first failure; rows before it stay posted and are returned in Result.
func Post(ctx context.Context, p Poster, rows []model.BankTransaction, accts Accounts) (Result, error) {
	var res Result
	for i, row := range rows {
		m := ledger.Movement{
			BusinessID:    accts.BusinessID,
			CashAccountID: accts.Cash,
			Amount:        row.Amount.Abs(),
			Date:          row.Date,
			Description:   row.Description,
			Reference:     row.Reference,
			ActorID:       accts.ActorID,
		}

		var (
			txn model.Transaction
			err error
		)
		switch {
		case row.Amount.IsPositive():
			m.AccountID = accts.Income
			txn, err = p.PostIncome(ctx, m)
		case row.Amount.IsNegative():
			m.AccountID = accts.Expense
			txn, err = p.PostExpense(ctx, m)
		default:
			res.Skipped = append(res.Skipped, row)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("posting row %d (%s): %w", i+1, row.Reference, err)
		}
		res.Posted = append(res.Posted, txn)
	}
	return res, nil
}
