package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/model"
)

func newAccountsCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(newAccountsListCommand(g), newAccountsAddCommand(g))
	return cmd
}

func newAccountsListCommand(g *globals) *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			chart, err := e.loadChart(cmd.Context())
			if err != nil {
				return err
			}
			accts := chart.All()
			if typ != "" {
				t := model.AccountType(typ)
				if !t.Valid() {
					return fmt.Errorf("unknown account type %q", typ)
				}
				accts = chart.ByType(t)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tTYPE\tBALANCE\tACTIVE")
			for _, a := range accts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", a.Code, a.Name, a.Type, a.Balance.StringFixed(2), a.IsActive)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "only list accounts of this type")

	return cmd
}

func newAccountsAddCommand(g *globals) *cobra.Command {
	var (
		code     string
		name     string
		typ      string
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account to the chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			acct, err := e.ledger.CreateAccount(ctx, model.Account{
				BusinessID: e.businessID(),
				Code:       code,
				Name:       name,
				Type:       model.AccountType(typ),
				IsActive:   !inactive,
			})
			if err != nil {
				return err
			}
			if err := e.syncChart(ctx); err != nil {
				return err
			}
			g.record(e, auditlog.ActionCreateAccount, fmt.Sprintf("%s %s (%s)", acct.Code, acct.Name, acct.Type), "")

			fmt.Fprintf(cmd.OutOrStdout(), "Created account %s %s (%s)\n", acct.Code, acct.Name, acct.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "account code (required)")
	cmd.Flags().StringVar(&name, "name", "", "account name (required)")
	cmd.Flags().StringVar(&typ, "type", "", "asset, liability, equity, income or expense (required)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the account inactive")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}
