package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/auditlog"
)

func newReverseCommand(g *globals) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reverse <transaction-id|number>",
		Short: "Post a reversing entry for a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			orig, _, err := e.findTransaction(ctx, args[0])
			if err != nil {
				return err
			}

			rev, err := e.ledger.ReverseTransaction(ctx, orig.ID, reason, e.cfg.Actor)
			if err != nil {
				return err
			}
			g.record(e, auditlog.ActionReverse, fmt.Sprintf("reversed %s: %s", orig.TransactionNumber, reason), rev.TransactionNumber)

			fmt.Fprintf(cmd.OutOrStdout(), "Reversed %s with %s (%s)\n", orig.TransactionNumber, rev.TransactionNumber, rev.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the transaction is being reversed")

	return cmd
}

func newShowCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <transaction-id|number>",
		Short: "Show a transaction and its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			txn, lines, err := e.findTransaction(ctx, args[0])
			if err != nil {
				return err
			}
			accts, err := e.ledger.Accounts(ctx, e.businessID())
			if err != nil {
				return err
			}
			codes := make(map[string]string, len(accts))
			for _, a := range accts {
				codes[a.ID] = a.Code + " " + a.Name
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s  %s\n", txn.TransactionNumber, txn.TransactionDate.Format("2006-01-02"), txn.Type)
			fmt.Fprintf(out, "ID:          %s\n", txn.ID)
			fmt.Fprintf(out, "Description: %s\n", txn.Description)
			if txn.Reference != "" {
				fmt.Fprintf(out, "Reference:   %s\n", txn.Reference)
			}
			if txn.IsReversed {
				fmt.Fprintf(out, "Reversed by: %s\n", txn.ReversedByTransactionID)
			}
			fmt.Fprintln(out)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "#\tACCOUNT\tDEBIT\tCREDIT\tMEMO\t")
			for _, l := range lines {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n",
					l.Position, codes[l.AccountID], l.DebitAmount.StringFixed(2), l.CreditAmount.StringFixed(2), l.Description)
			}
			return w.Flush()
		},
	}
}

func newTransactionsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "transactions",
		Short: "List transactions in number order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			txns, err := e.ledger.Transactions(cmd.Context(), e.businessID())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NUMBER\tDATE\tTYPE\tDESCRIPTION\tREVERSED")
			for _, t := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
					t.TransactionNumber, t.TransactionDate.Format("2006-01-02"), t.Type, t.Description, t.IsReversed)
			}
			return w.Flush()
		},
	}
}
