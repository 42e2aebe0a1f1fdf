package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
)

type movementKind struct {
	use         string
	short       string
	action      string
	accountHelp string
	// defaultAccount picks the income or expense code from the config.
	defaultAccount func(e *env) string
	post           func(svc *ledger.Service, ctx context.Context, m ledger.Movement) (model.Transaction, error)
}

func newIncomeCommand(g *globals) *cobra.Command {
	return newMovementCommand(g, movementKind{
		use:            "income",
		short:          "Record money received into cash",
		action:         auditlog.ActionPostIncome,
		accountHelp:    "income account code (default from ledger.yaml)",
		defaultAccount: func(e *env) string { return e.cfg.Defaults.IncomeAccount },
		post:           (*ledger.Service).PostIncome,
	})
}

func newExpenseCommand(g *globals) *cobra.Command {
	return newMovementCommand(g, movementKind{
		use:            "expense",
		short:          "Record money paid out of cash",
		action:         auditlog.ActionPostExpense,
		accountHelp:    "expense account code (default from ledger.yaml)",
		defaultAccount: func(e *env) string { return e.cfg.Defaults.ExpenseAccount },
		post:           (*ledger.Service).PostExpense,
	})
}

func newMovementCommand(g *globals, kind movementKind) *cobra.Command {
	var (
		amount      string
		account     string
		cash        string
		date        string
		description string
		reference   string
	)

	cmd := &cobra.Command{
		Use:   kind.use,
		Short: kind.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			amt, err := parseAmount(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}
			txnDate, err := parseDate(date)
			if err != nil {
				return err
			}

			if account == "" {
				account = kind.defaultAccount(e)
			}
			if cash == "" {
				cash = e.cfg.Defaults.CashAccount
			}
			accountID, err := e.accountID(ctx, account)
			if err != nil {
				return err
			}
			cashID, err := e.accountID(ctx, cash)
			if err != nil {
				return err
			}

			txn, err := kind.post(e.ledger, ctx, ledger.Movement{
				BusinessID:    e.businessID(),
				AccountID:     accountID,
				CashAccountID: cashID,
				Amount:        amt,
				Date:          txnDate,
				Description:   description,
				Reference:     reference,
				ActorID:       e.cfg.Actor,
			})
			if err != nil {
				return err
			}
			g.record(e, kind.action, fmt.Sprintf("%s %s", amt.StringFixed(2), description), txn.TransactionNumber)

			printPosted(cmd, txn)
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount, positive (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&account, "account", "", kind.accountHelp)
	cmd.Flags().StringVar(&cash, "cash", "", "cash account code (default from ledger.yaml)")
	cmd.Flags().StringVar(&date, "date", "", "transaction date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&reference, "reference", "", "external reference")

	return cmd
}
