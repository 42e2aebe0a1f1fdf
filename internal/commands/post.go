package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
)

func newPostCommand(g *globals) *cobra.Command {
	var (
		date        string
		description string
		reference   string
		typ         string
		lines       []string
	)

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a balanced journal entry",
		Long: `Post a journal entry made of two or more lines.

Each --line is CODE:DEBIT:CREDIT[:MEMO], for example

  ledger post --description "Owner contribution" \
    --line 1100:5000:0 --line 3000:0:5000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			txnDate, err := parseDate(date)
			if err != nil {
				return err
			}
			parsed, err := e.parseLines(ctx, lines)
			if err != nil {
				return err
			}

			txn, err := e.ledger.PostJournalEntry(ctx, ledger.JournalEntry{
				BusinessID:      e.businessID(),
				TransactionDate: txnDate,
				Description:     description,
				Reference:       reference,
				Type:            model.TransactionType(typ),
				Lines:           parsed,
				ActorID:         e.cfg.Actor,
			})
			if err != nil {
				return err
			}
			g.record(e, auditlog.ActionPostJournal, description, txn.TransactionNumber)

			printPosted(cmd, txn)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "transaction date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&description, "description", "", "entry description")
	cmd.Flags().StringVar(&reference, "reference", "", "external reference")
	cmd.Flags().StringVar(&typ, "type", string(model.TypeManualJournal), "transaction type")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "CODE:DEBIT:CREDIT[:MEMO] (repeatable)")

	return cmd
}

// parseLines turns CODE:DEBIT:CREDIT[:MEMO] flags into ledger lines. Empty
// amounts mean zero; the memo may itself contain colons.
func (e *env) parseLines(ctx context.Context, flags []string) ([]ledger.Line, error) {
	out := make([]ledger.Line, 0, len(flags))
	for _, raw := range flags {
		parts := strings.SplitN(raw, ":", 4)
		if len(parts) < 3 {
			return nil, fmt.Errorf("invalid --line %q (want CODE:DEBIT:CREDIT[:MEMO])", raw)
		}

		accountID, err := e.accountID(ctx, strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, err
		}
		debit, err := parseAmount(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid debit in --line %q: %w", raw, err)
		}
		credit, err := parseAmount(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid credit in --line %q: %w", raw, err)
		}

		l := ledger.Line{AccountID: accountID, Debit: debit, Credit: credit}
		if len(parts) == 4 {
			l.Description = parts[3]
		}
		out = append(out, l)
	}
	return out, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func printPosted(cmd *cobra.Command, txn model.Transaction) {
	fmt.Fprintf(cmd.OutOrStdout(), "Posted %s (%s) %s\n",
		txn.TransactionNumber, txn.ID, txn.TransactionDate.Format("2006-01-02"))
}
